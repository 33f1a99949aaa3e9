package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Load()
	if cfg.Pipeline.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.Pipeline.PageSize)
	}
	if cfg.Verbose {
		t.Error("Verbose should default to false")
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	content := "state_dir: /tmp/hub\npipeline:\n  page_size: 25\n  exclude_sidechain: true\n"
	if err := os.MkdirAll(filepath.Join(dir, "sessionhub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sessionhub", "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	if cfg.StateDir != "/tmp/hub" {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}
	if cfg.Pipeline.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", cfg.Pipeline.PageSize)
	}
	if !cfg.Pipeline.ExcludeSidechain {
		t.Error("ExcludeSidechain should be true")
	}
}

func TestLoadInvalidYAMLFallsBack(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := os.MkdirAll(filepath.Join(dir, "sessionhub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sessionhub", "config.yaml"), []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	if cfg.Pipeline.PageSize != 50 {
		t.Errorf("PageSize = %d, want default 50", cfg.Pipeline.PageSize)
	}
}
