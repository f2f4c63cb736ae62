package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPaths(t *testing.T) {
	t.Run("defaults to workspace config file", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		workspace := t.TempDir()

		paths, err := DefaultPaths(workspace, "")
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}

		if paths.Workspace != workspace {
			t.Errorf("Workspace = %s, want %s", paths.Workspace, workspace)
		}
		if want := filepath.Join(workspace, FileName); paths.Config != want {
			t.Errorf("Config = %s, want %s", paths.Config, want)
		}
	})

	t.Run("respects TESTLOOP_CONFIG", func(t *testing.T) {
		custom := filepath.Join(t.TempDir(), "custom.yaml")
		t.Setenv(EnvConfig, custom)

		paths, err := DefaultPaths(t.TempDir(), "")
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}
		if paths.Config != custom {
			t.Errorf("Config = %s, want %s", paths.Config, custom)
		}
	})

	t.Run("override wins over environment (highest priority)", func(t *testing.T) {
		t.Setenv(EnvConfig, "/from/env.yaml")
		override := filepath.Join(t.TempDir(), "flag.yaml")

		paths, err := DefaultPaths(t.TempDir(), override)
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}
		if paths.Config != override {
			t.Errorf("Config = %s, want %s", paths.Config, override)
		}
	})

	t.Run("relative config resolves against workspace", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		workspace := t.TempDir()

		paths, err := DefaultPaths(workspace, "conf/loop.yaml")
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}
		if want := filepath.Join(workspace, "conf", "loop.yaml"); paths.Config != want {
			t.Errorf("Config = %s, want %s", paths.Config, want)
		}
	})

	t.Run("relative workspace becomes absolute", func(t *testing.T) {
		t.Setenv(EnvConfig, "")

		paths, err := DefaultPaths(".", "")
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}
		if !filepath.IsAbs(paths.Workspace) {
			t.Errorf("Workspace should be absolute, got %s", paths.Workspace)
		}
	})
}

func TestPaths_ConfigExists(t *testing.T) {
	workspace := t.TempDir()
	paths := &Paths{Workspace: workspace, Config: filepath.Join(workspace, FileName)}

	exists, err := paths.ConfigExists()
	if err != nil {
		t.Fatalf("ConfigExists failed: %v", err)
	}
	if exists {
		t.Error("ConfigExists = true before the file was written")
	}

	if err := os.WriteFile(paths.Config, []byte("test-loop: {}\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	exists, err = paths.ConfigExists()
	if err != nil {
		t.Fatalf("ConfigExists failed: %v", err)
	}
	if !exists {
		t.Error("ConfigExists = false after the file was written")
	}
}
