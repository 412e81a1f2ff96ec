// Copyright (c) 2022-present archrun authors

package spec

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"
)

// subset of a vscode launch.json configuration entry
type vscodeConfig struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Request string            `json:"request"`
	Program string            `json:"program"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
	Cwd     string            `json:"cwd"`
	Console string            `json:"console"`
}

type vscodeLaunch struct {
	Version        string         `json:"version"`
	Configurations []vscodeConfig `json:"configurations"`
}

// ImportVSCode converts a .vscode/launch.json into a catalog.
// the file is json with comments and trailing commas, so it goes
// through jsonc first. configurations without a program, or with a
// request other than launch, are skipped.
func ImportVSCode(r io.Reader) (*Catalog, error) {

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var lj vscodeLaunch
	err = json.Unmarshal(jsonc.ToJSON(raw), &lj)
	if err != nil {
		return nil, fmt.Errorf("launch.json: %w", err)
	}

	c := &Catalog{Version: 1}

	for _, cfg := range lj.Configurations {
		if cfg.Request != "" && cfg.Request != "launch" {
			continue
		}
		if cfg.Program == "" {
			continue
		}

		p := Profile{
			Name:       cfg.Name,
			EntryPoint: stripWorkspaceFolder(cfg.Program),
			Args:       cfg.Args,
			Env:        cfg.Env,
			Workdir:    stripWorkspaceFolder(cfg.Cwd),
		}
		if cfg.Console == "integratedTerminal" || cfg.Console == "externalTerminal" {
			p.Tty = true
		}

		c.Profiles = append(c.Profiles, p)
	}

	err = c.Validate()
	if err != nil {
		return nil, err
	}

	return c, nil
}

// vscode paths are usually anchored at ${workspaceFolder}. the catalog
// workdir takes over that role, so the variable just gets cut off
func stripWorkspaceFolder(s string) string {
	for _, prefix := range []string{"${workspaceFolder}/", "${workspaceFolder}"} {
		if strings.HasPrefix(s, prefix) {
			return strings.TrimPrefix(s, prefix)
		}
	}
	return s
}
