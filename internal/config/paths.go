// Package config resolves, loads and watches testloop configuration.
//
// Settings live under the `test-loop` key of a YAML file. The default file
// is .testloop.yaml at the workspace root, which can be overridden with the
// --config flag or the TESTLOOP_CONFIG environment variable. Missing or
// malformed settings fall back to built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the default configuration file name at the workspace root.
const FileName = ".testloop.yaml"

// EnvConfig overrides the configuration file location.
const EnvConfig = "TESTLOOP_CONFIG"

// Paths contains the filesystem paths used by testloop.
type Paths struct {
	// Workspace is the root of the watched tree
	Workspace string

	// Config is the path to the configuration file (may not exist)
	Config string
}

// DefaultPaths returns the paths for the given workspace.
// The config path is taken from override, then TESTLOOP_CONFIG, then
// <workspace>/.testloop.yaml. Relative config paths resolve against the
// workspace.
func DefaultPaths(workspace, override string) (*Paths, error) {
	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	cfg := override
	if cfg == "" {
		cfg = os.Getenv(EnvConfig)
	}
	if cfg == "" {
		cfg = FileName
	}
	if !filepath.IsAbs(cfg) {
		cfg = filepath.Join(absWorkspace, cfg)
	}

	return &Paths{
		Workspace: absWorkspace,
		Config:    filepath.Clean(cfg),
	}, nil
}

// ConfigExists reports whether the configuration file is present.
func (p *Paths) ConfigExists() (bool, error) {
	_, err := os.Stat(p.Config)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat config %s: %w", p.Config, err)
}
