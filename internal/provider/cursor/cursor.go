// Package cursor implements the provider adapter for Cursor's
// workspace-scoped store: a SQLite database (state.vscdb) whose
// cursorDiskKV table holds composers (sessions) and bubbles (messages),
// with workspaceStorage entries mapping conversations to project folders.
package cursor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

// ProviderID is the stable id this adapter registers under.
const ProviderID = "cursor"

// GlobalProjectID is the synthetic project holding composers that are not
// associated with any workspace.
const GlobalProjectID = "global"

// Adapter reads Cursor conversation data. The store is opened read-only;
// this adapter has no write capability.
type Adapter struct {
	logger *zap.Logger
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates a Cursor adapter.
func New(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) ID() string { return ProviderID }

func (a *Adapter) Name() string { return "Cursor" }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{ResumeCommand: "cursor ."}
}

// DefaultRoot returns the Cursor User directory for the current OS.
func (a *Adapter) DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library/Application Support/Cursor/User"), nil
	case "linux":
		return filepath.Join(home, ".config/Cursor/User"), nil
	default:
		return "", apperr.New(apperr.CodeUnsupported, "no known Cursor storage location on %s", runtime.GOOS)
	}
}

var detectionPatterns = []provider.Pattern{
	{Kind: provider.PatternFile, Path: "globalStorage/state.vscdb", Required: true},
	{Kind: provider.PatternDir, Path: "workspaceStorage", Weight: 60},
	{Kind: provider.PatternDir, Path: "History", Weight: 25},
	{Kind: provider.PatternFile, Path: "globalStorage/storage.json", Weight: 15},
}

func (a *Adapter) Detect(path string) provider.DetectionScore {
	return provider.EvaluatePatterns(path, detectionPatterns)
}

// HealthCheck opens the global store read-only and pings it. A missing
// database is offline; an unreadable one is degraded.
func (a *Adapter) HealthCheck(ctx context.Context, root string) model.HealthStatus {
	dbPath := globalDBPath(root)
	if _, err := os.Stat(dbPath); err != nil {
		return model.HealthOffline
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return model.HealthDegraded
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return model.HealthDegraded
	}
	return model.HealthHealthy
}

func globalDBPath(root string) string {
	return filepath.Join(root, "globalStorage", "state.vscdb")
}
