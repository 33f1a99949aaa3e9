// Package codex implements the provider adapter for Codex CLI rollout
// logs: flat JSONL event files named rollout-<stamp>-<uuid>.jsonl under
// <root>/sessions, grouped into projects by each session's working
// directory.
package codex

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

// ProviderID is the stable id this adapter registers under.
const ProviderID = "codex"

// Adapter reads Codex rollout files. Rollouts are append-only logs owned
// by the Codex CLI; this adapter never writes them.
type Adapter struct {
	logger *zap.Logger
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates a Codex adapter.
func New(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) ID() string { return ProviderID }

func (a *Adapter) Name() string { return "Codex" }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{ResumeCommand: "codex resume {session_id}"}
}

// DefaultRoot returns ~/.codex.
func (a *Adapter) DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codex"), nil
}

var detectionPatterns = []provider.Pattern{
	{Kind: provider.PatternDir, Path: "sessions", Required: true},
	{Kind: provider.PatternFile, Path: "config.toml", Weight: 40},
	{Kind: provider.PatternFile, Path: "auth.json", Weight: 35},
	{Kind: provider.PatternDir, Path: "log", Weight: 25},
}

func (a *Adapter) Detect(path string) provider.DetectionScore {
	return provider.EvaluatePatterns(path, detectionPatterns)
}

// HealthCheck reports offline when the root is missing and degraded when
// the sessions directory is absent or unreadable.
func (a *Adapter) HealthCheck(ctx context.Context, root string) model.HealthStatus {
	if _, err := os.Stat(root); err != nil {
		return model.HealthOffline
	}
	if _, err := os.ReadDir(filepath.Join(root, "sessions")); err != nil {
		return model.HealthDegraded
	}
	return model.HealthHealthy
}
