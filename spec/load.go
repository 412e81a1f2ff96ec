// Copyright (c) 2022-present archrun authors

package spec

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadCatalog reads and validates a catalog file.
// relative entry points resolve against the catalog workdir,
// which defaults to the directory of the file itself.
func LoadCatalog(path string) (*Catalog, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var c Catalog
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	err = dec.Decode(&c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if c.Workdir == "" {
		c.Workdir = filepath.Dir(path)
	}

	err = c.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &c, nil
}

func (c *Catalog) Validate() error {

	seen := map[string]bool{}

	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile %d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("profile %q: duplicate name", p.Name)
		}
		seen[p.Name] = true

		if p.EntryPoint == "" {
			return fmt.Errorf("profile %q: no entry point", p.Name)
		}
		if p.Dist != nil && p.Dist.NProc < 1 {
			return fmt.Errorf("profile %q: dist.nproc must be >= 1", p.Name)
		}
	}

	return nil
}

func (c *Catalog) Profile(name string) (*Profile, error) {

	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], nil
		}
	}

	known := []string{}
	for _, p := range c.Profiles {
		known = append(known, p.Name)
	}

	return nil, fmt.Errorf("no such profile %q, have %v", name, known)
}

// ResolveEntryPoint joins the profile entry point against the catalog
// workdir and verifies the file exists
func (c *Catalog) ResolveEntryPoint(p *Profile) (string, error) {

	ep := p.EntryPoint
	if !filepath.IsAbs(ep) {
		ep = filepath.Join(c.Workdir, ep)
	}

	st, err := os.Stat(ep)
	if err != nil {
		return "", fmt.Errorf("profile %q: entry point: %w", p.Name, err)
	}
	if st.IsDir() {
		return "", fmt.Errorf("profile %q: entry point %s is a directory", p.Name, ep)
	}

	return ep, nil
}

// ProfileWorkdir is the working directory of the child process
func (c *Catalog) ProfileWorkdir(p *Profile) string {
	if p.Workdir != "" {
		if filepath.IsAbs(p.Workdir) {
			return p.Workdir
		}
		return filepath.Join(c.Workdir, p.Workdir)
	}
	return c.Workdir
}
