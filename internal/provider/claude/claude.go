// Package claude implements the provider adapter for Claude Code logs:
// one JSONL file per session under <root>/projects/<encoded-project-dir>/.
package claude

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

// ProviderID is the stable id this adapter registers under.
const ProviderID = "claude-code"

// Adapter reads and writes Claude Code session logs.
type Adapter struct {
	logger *zap.Logger
}

var (
	_ provider.Adapter = (*Adapter)(nil)
	_ provider.Writer  = (*Adapter)(nil)
)

// New creates a Claude Code adapter.
func New(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) ID() string { return ProviderID }

func (a *Adapter) Name() string { return "Claude Code" }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		CanWrite:      true,
		ResumeCommand: "claude --resume {session_id}",
	}
}

// DefaultRoot returns ~/.claude.
func (a *Adapter) DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude"), nil
}

var detectionPatterns = []provider.Pattern{
	{Kind: provider.PatternDir, Path: "projects", Required: true},
	{Kind: provider.PatternFile, Path: "settings.json", Weight: 40},
	{Kind: provider.PatternDir, Path: "todos", Weight: 30},
	{Kind: provider.PatternDir, Path: "statsig", Weight: 15},
	{Kind: provider.PatternFile, Path: "CLAUDE.md", Weight: 15},
}

func (a *Adapter) Detect(path string) provider.DetectionScore {
	return provider.EvaluatePatterns(path, detectionPatterns)
}

func (a *Adapter) HealthCheck(ctx context.Context, root string) model.HealthStatus {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return model.HealthOffline
	}

	projects := filepath.Join(root, "projects")
	if info, err := os.Stat(projects); err != nil || !info.IsDir() {
		return model.HealthDegraded
	}
	if _, err := os.ReadDir(projects); err != nil {
		return model.HealthDegraded
	}
	return model.HealthHealthy
}
