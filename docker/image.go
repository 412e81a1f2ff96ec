// Copyright (c) 2022-present archrun authors

package docker

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Resolve contacts the registry and returns the manifest digest of the
// image reference, for linux/amd64. used as a preflight so a typo in
// the image name fails before the gpu machine is tied up
func Resolve(ctx context.Context, strref string) (string, error) {

	ref, err := name.ParseReference(strref)
	if err != nil {
		return "", fmt.Errorf("parsing reference %q: %w", strref, err)
	}

	rmt, err := remote.Get(ref,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
		remote.WithPlatform(v1.Platform{
			Architecture: "amd64",
			OS:           "linux",
		}),
	)
	if err != nil {
		return "", err
	}

	return rmt.Digest.String(), nil
}
