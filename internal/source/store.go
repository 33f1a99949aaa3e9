// Package source implements the source registry: the set of
// user-registered root paths, each bound to exactly one provider, with
// health state and cached aggregate statistics. The in-memory state is
// authoritative; persistence is best-effort JSON under the user config
// dir.
package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

// refreshConcurrency bounds how many sources RefreshAll probes at once.
const refreshConcurrency = 4

// Store owns the registered sources. All mutation goes through its
// methods; Source values handed out are copies.
type Store struct {
	mu       sync.Mutex
	registry *provider.Registry
	logger   *zap.Logger

	stateDir string

	sources    map[string]*model.Source
	order      []string
	defaultID  string
	selectedID string
}

// NewStore creates a source store backed by stateDir, loading any
// previously persisted sources. A missing or unreadable state file starts
// the store empty rather than failing.
func NewStore(registry *provider.Registry, stateDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		registry: registry,
		logger:   logger,
		stateDir: stateDir,
		sources:  make(map[string]*model.Source),
	}
	s.load()
	return s
}

func (s *Store) load() {
	var state persistedState
	if err := loadJSON(filepath.Join(s.stateDir, sourcesFile), &state); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to load persisted sources", zap.Error(err))
		}
		return
	}

	for i := range state.Sources {
		src := state.Sources[i]
		if src.ID == "" || src.RootPath == "" {
			continue
		}
		s.sources[src.ID] = &src
		s.order = append(s.order, src.ID)
	}
	if _, ok := s.sources[state.DefaultID]; ok {
		s.defaultID = state.DefaultID
	} else if len(s.order) > 0 {
		s.defaultID = s.order[0]
	}

	var ui uiState
	if err := loadJSON(filepath.Join(s.stateDir, uiFile), &ui); err == nil {
		if _, ok := s.sources[ui.SelectedID]; ok {
			s.selectedID = ui.SelectedID
		}
	}
}

// persist writes the source list. Failures are logged, not propagated:
// in-memory state stays authoritative for the running process.
func (s *Store) persist() {
	state := persistedState{DefaultID: s.defaultID}
	for _, id := range s.order {
		state.Sources = append(state.Sources, *s.sources[id])
	}
	if err := saveJSON(s.stateDir, sourcesFile, state); err != nil {
		s.logger.Warn("failed to persist sources", zap.Error(err))
	}
}

func (s *Store) persistUI() {
	if err := saveJSON(s.stateDir, uiFile, uiState{SelectedID: s.selectedID}); err != nil {
		s.logger.Warn("failed to persist selection", zap.Error(err))
	}
}

// normalizePath is the identity sources are deduplicated on.
func normalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Add registers a new source. The path must be claimed by some provider;
// a path already registered is rejected. The initial scan populates
// stats but its failure is non-fatal: the source is still added with
// zero stats. The first source ever added becomes the default.
func (s *Store) Add(ctx context.Context, path, name string) (*model.Source, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	detection, err := s.registry.DetectProvider(normalized)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, id := range s.order {
		if s.sources[id].RootPath == normalized {
			s.mu.Unlock()
			return nil, apperr.New(apperr.CodeDuplicateSource, "source already registered for %s", normalized)
		}
	}

	if name == "" {
		name = filepath.Base(normalized)
	}
	src := &model.Source{
		ID:           uuid.NewString(),
		Name:         name,
		RootPath:     normalized,
		ProviderID:   detection.ProviderID,
		IsAvailable:  true,
		HealthStatus: model.HealthHealthy,
		AddedAt:      time.Now().UTC(),
	}
	s.sources[src.ID] = src
	s.order = append(s.order, src.ID)
	if len(s.order) == 1 {
		s.defaultID = src.ID
		src.IsDefault = true
	}
	s.mu.Unlock()

	if err := s.Refresh(ctx, src.ID); err != nil {
		s.logger.Warn("initial scan failed, source added with zero stats",
			zap.String("source", src.ID), zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist()
	out := *s.sources[src.ID]
	return &out, nil
}

// Remove deletes a source. Removing the last remaining source is refused
// so the registry never goes empty; if the removed source was the default
// or the selection, both reassign to the first remaining source.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[id]; !ok {
		return apperr.New(apperr.CodeSourceNotFound, "no source with id %s", id)
	}
	if len(s.order) == 1 {
		return apperr.New(apperr.CodeLastSource, "cannot remove the last remaining source")
	}

	delete(s.sources, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if s.defaultID == id {
		s.defaultID = s.order[0]
	}
	if s.selectedID == id {
		s.selectedID = s.order[0]
		s.persistUI()
	}
	s.syncDefaultFlags()
	s.persist()
	return nil
}

// SetDefault marks one source as the default, persisted with the list.
func (s *Store) SetDefault(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[id]; !ok {
		return apperr.New(apperr.CodeSourceNotFound, "no source with id %s", id)
	}
	s.defaultID = id
	s.syncDefaultFlags()
	s.persist()
	return nil
}

// Select records the UI selection. An empty id clears it.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, ok := s.sources[id]; !ok {
			return apperr.New(apperr.CodeSourceNotFound, "no source with id %s", id)
		}
	}
	s.selectedID = id
	s.persistUI()
	return nil
}

func (s *Store) syncDefaultFlags() {
	for _, src := range s.sources {
		src.IsDefault = src.ID == s.defaultID
	}
}

// Refresh re-runs health check and scan for one source. A failing health
// check or scan marks the source offline instead of removing it.
func (s *Store) Refresh(ctx context.Context, id string) error {
	s.mu.Lock()
	src, ok := s.sources[id]
	if !ok {
		s.mu.Unlock()
		return apperr.New(apperr.CodeSourceNotFound, "no source with id %s", id)
	}
	providerID, root := src.ProviderID, src.RootPath
	s.mu.Unlock()

	adapter, err := s.registry.Get(providerID)
	if err != nil {
		s.markOffline(id, err)
		return err
	}

	health := adapter.HealthCheck(ctx, root)
	if health == model.HealthOffline {
		s.markOffline(id, apperr.New(apperr.CodeProviderUnavailable, "health check reported offline"))
		return nil
	}

	projects, err := adapter.ScanProjects(ctx, root, id)
	if err != nil {
		s.markOffline(id, err)
		return err
	}

	stats := model.SourceStats{ProjectCount: len(projects)}
	for _, p := range projects {
		stats.SessionCount += p.SessionCount
		stats.MessageCount += p.TotalMessages
	}

	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[id]; ok {
		src.HealthStatus = health
		src.IsAvailable = true
		src.ValidationError = ""
		src.Stats = stats
		src.LastScanAt = &now
		s.persist()
	}
	return nil
}

func (s *Store) markOffline(id string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[id]; ok {
		src.HealthStatus = model.HealthOffline
		src.IsAvailable = false
		if cause != nil {
			src.ValidationError = cause.Error()
		}
		s.persist()
	}
}

// RefreshAll refreshes every source concurrently. Per-source failures are
// recorded on the source itself and never abort the batch.
func (s *Store) RefreshAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := s.Refresh(ctx, id); err != nil {
				s.logger.Warn("source refresh failed",
					zap.String("source", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// List returns copies of all sources in registration order.
func (s *Store) List() []model.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Source, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.sources[id])
	}
	return out
}

// Available returns the sources aggregate operations may use: registered,
// reachable, not marked offline.
func (s *Store) Available() []model.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Source, 0, len(s.order))
	for _, id := range s.order {
		if src := s.sources[id]; src.IsAvailable {
			out = append(out, *src)
		}
	}
	return out
}

// Get returns a copy of one source.
func (s *Store) Get(id string) (*model.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, apperr.New(apperr.CodeSourceNotFound, "no source with id %s", id)
	}
	out := *src
	return &out, nil
}

// Default returns the default source, or nil when the store is empty.
func (s *Store) Default() *model.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[s.defaultID]; ok {
		out := *src
		return &out
	}
	return nil
}

// Selected returns the selected source, falling back to the default.
func (s *Store) Selected() *model.Source {
	s.mu.Lock()
	selected := s.selectedID
	s.mu.Unlock()
	if selected != "" {
		if src, err := s.Get(selected); err == nil {
			return src
		}
	}
	return s.Default()
}
