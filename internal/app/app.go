// Package app wires the long-lived services together: the adapter
// registry with every built-in provider, the source store, and the
// loading pipeline. One App is constructed at process start and passed to
// consumers; Initialize is idempotent.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/pipeline"
	"github.com/opensesh/sessionhub/internal/provider"
	"github.com/opensesh/sessionhub/internal/provider/claude"
	"github.com/opensesh/sessionhub/internal/provider/codex"
	"github.com/opensesh/sessionhub/internal/provider/cursor"
	"github.com/opensesh/sessionhub/internal/source"
)

// App owns the process-lifetime services.
type App struct {
	Registry *provider.Registry
	Sources  *source.Store
	Pipeline *pipeline.Pipeline

	logger   *zap.Logger
	initOnce sync.Once
	initErr  error
}

// New creates an App persisting source state under stateDir. An empty
// stateDir falls back to the user config dir.
func New(stateDir string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stateDir == "" {
		dir, err := source.DefaultStateDir()
		if err != nil {
			return nil, err
		}
		stateDir = dir
	}

	registry := provider.NewRegistry(logger)
	sources := source.NewStore(registry, stateDir, logger)
	return &App{
		Registry: registry,
		Sources:  sources,
		Pipeline: pipeline.New(registry, sources, logger),
		logger:   logger,
	}, nil
}

// Initialize registers the built-in adapters. Registration order matters:
// detection ties break toward the first registered provider.
func (a *App) Initialize() error {
	a.initOnce.Do(func() {
		a.initErr = a.Registry.Initialize(
			claude.New(a.logger),
			cursor.New(a.logger),
			codex.New(a.logger),
		)
	})
	return a.initErr
}

// AddDefaultRoot registers a provider's conventional root as a source, a
// convenience for first-run setup.
func (a *App) AddDefaultRoot(ctx context.Context, providerID, name string) (*model.Source, error) {
	adapter, err := a.Registry.Get(providerID)
	if err != nil {
		return nil, err
	}
	root, err := adapter.DefaultRoot()
	if err != nil {
		return nil, err
	}
	return a.Sources.Add(ctx, root, name)
}
