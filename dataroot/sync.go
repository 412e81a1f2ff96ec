// Copyright (c) 2022-present archrun authors

package dataroot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// s3 compatible source of datasets
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// ConfigFromEnv fills unset fields from ARCHRUN_S3_* variables
func (c *Config) ConfigFromEnv() {
	if c.Endpoint == "" {
		c.Endpoint = os.Getenv("ARCHRUN_S3_ENDPOINT")
	}
	if c.AccessKey == "" {
		c.AccessKey = os.Getenv("ARCHRUN_S3_ACCESS_KEY")
	}
	if c.SecretKey == "" {
		c.SecretKey = os.Getenv("ARCHRUN_S3_SECRET_KEY")
	}
	if c.Bucket == "" {
		c.Bucket = os.Getenv("ARCHRUN_S3_BUCKET")
	}
}

// Sync downloads every object under prefix into dest, preserving keys.
// objects already present locally with the same size are skipped.
// returns the number of objects downloaded and their total size
func Sync(ctx context.Context, cfg Config, prefix string, dest string) (int, uint64, error) {

	if cfg.Endpoint == "" {
		return 0, 0, fmt.Errorf("no s3 endpoint, set ARCHRUN_S3_ENDPOINT")
	}
	if cfg.Bucket == "" {
		return 0, 0, fmt.Errorf("no s3 bucket, set ARCHRUN_S3_BUCKET")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return 0, 0, err
	}

	var count int
	var total uint64

	for obj := range mc.ListObjects(ctx, cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return count, total, obj.Err
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		local := filepath.Join(dest, filepath.FromSlash(obj.Key))

		st, err := os.Stat(local)
		if err == nil && st.Size() == obj.Size {
			continue
		}

		log.Info("dataroot: fetching ", humanize.Bytes(uint64(obj.Size)), " ", obj.Key)

		err = mc.FGetObject(ctx, cfg.Bucket, obj.Key, local, minio.GetObjectOptions{})
		if err != nil {
			return count, total, fmt.Errorf("%s: %w", obj.Key, err)
		}

		count += 1
		total += uint64(obj.Size)
	}

	return count, total, nil
}
