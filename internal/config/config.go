// Package config loads optional application settings from a YAML file.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Pipeline contains message-loading configuration.
type Pipeline struct {
	PageSize         int  `yaml:"page_size,omitempty"`
	ExcludeSidechain bool `yaml:"exclude_sidechain,omitempty"`
}

// Config holds all configuration options.
type Config struct {
	StateDir string   `yaml:"state_dir,omitempty"`
	Pipeline Pipeline `yaml:"pipeline"`
	Verbose  bool     `yaml:"verbose,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: Pipeline{
			PageSize: 50,
		},
	}
}

// configPath returns the path to the config file
func configPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sessionhub", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sessionhub", "config.yaml")
}

// Load loads config from file, falling back to defaults
func Load() *Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath())
	if err != nil {
		return cfg
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig()
	}

	if cfg.Pipeline.PageSize <= 0 {
		cfg.Pipeline.PageSize = 50
	}

	return cfg
}

// Path returns the config file path (for help text)
func Path() string {
	return configPath()
}
