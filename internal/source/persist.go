package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opensesh/sessionhub/internal/model"
)

const (
	sourcesFile = "sources.json"
	uiFile      = "ui.json"
)

// persistedState is the durable shape of the registry: the full source
// list plus the default id, rewritten after every mutation.
type persistedState struct {
	Sources   []model.Source `json:"sources"`
	DefaultID string         `json:"defaultId,omitempty"`
}

// uiState holds the ephemeral selection, persisted separately as a
// convenience so restarts reopen where the user left off.
type uiState struct {
	SelectedID string `json:"selectedId,omitempty"`
}

// DefaultStateDir returns the per-user config directory the registry
// persists into.
func DefaultStateDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessionhub"), nil
}

func loadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// saveJSON writes v atomically: a temp file in the same directory renamed
// over the target, so a crash never leaves a half-written state file.
func saveJSON(dir, name string, v interface{}) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
