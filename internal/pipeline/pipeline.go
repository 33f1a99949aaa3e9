// Package pipeline converts provider-native records into the universal
// model and manages the stateful part of session loading: the per-project
// session cache, the paginated deduplicating message list for the active
// session, and parallel aggregation across all registered sources.
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
	"github.com/opensesh/sessionhub/internal/source"
)

// State is the pagination state of the active session.
type State string

const (
	StateIdle           State = "idle"
	StateLoadingInitial State = "loading"
	StateLoaded         State = "loaded"
	StateLoadingMore    State = "loading_more"
	StateExhausted      State = "exhausted"
)

const (
	// DefaultPageSize is the message page size used when none is set.
	DefaultPageSize = 50
	// maxLoadAll caps the single-fetch escape hatch so a pathological
	// session cannot request unbounded pages.
	maxLoadAll = 100_000
)

// Pipeline owns the loading state for one consumer (one UI). Adapter
// calls happen outside its lock; a generation counter discards any page
// that resolves after the session selection has moved on.
type Pipeline struct {
	registry *provider.Registry
	sources  *source.Store
	cache    *SessionCache
	logger   *zap.Logger

	pageSize         int
	excludeSidechain bool

	mu         sync.Mutex
	state      State
	generation uint64
	pagination model.Pagination
	messages   []model.Message

	selectedSession *model.Session
	selectedProject *model.Project
	projects        []model.Project
}

// New creates a pipeline over the given registries.
func New(registry *provider.Registry, sources *source.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		registry: registry,
		sources:  sources,
		cache:    NewSessionCache(),
		logger:   logger,
		pageSize: DefaultPageSize,
		state:    StateIdle,
	}
}

// SetPageSize overrides the message page size.
func (p *Pipeline) SetPageSize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > 0 {
		p.pageSize = n
	}
}

// SetExcludeSidechain controls whether sidechain records are filtered.
func (p *Pipeline) SetExcludeSidechain(exclude bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.excludeSidechain = exclude
}

// State returns the active session's loading state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pagination returns the active session's cursor.
func (p *Pipeline) Pagination() model.Pagination {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pagination
}

// Messages returns a copy of the active session's in-memory message list,
// oldest first.
func (p *Pipeline) Messages() []model.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// SelectedSession returns the active session, or nil.
func (p *Pipeline) SelectedSession() *model.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selectedSession == nil {
		return nil
	}
	out := *p.selectedSession
	return &out
}

// SelectedProject returns the active project, or nil.
func (p *Pipeline) SelectedProject() *model.Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selectedProject == nil {
		return nil
	}
	out := *p.selectedProject
	return &out
}

// SelectSession makes session the active one: pagination resets, the
// in-memory list is replaced wholesale by the newest page, and the owning
// project is derived from the session itself without blocking the message
// load. A page resolving after a later SelectSession call is discarded.
func (p *Pipeline) SelectSession(ctx context.Context, session model.Session) error {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.state = StateLoadingInitial
	p.pagination = model.Pagination{PageSize: p.pageSize}
	p.messages = nil
	s := session
	p.selectedSession = &s
	p.deriveProjectLocked(session)
	pageSize := p.pageSize
	exclude := p.excludeSidechain
	p.mu.Unlock()

	adapter, err := p.registry.Get(session.ProviderID)
	if err != nil {
		p.abandonLoad(gen)
		return err
	}

	page, err := adapter.LoadMessages(ctx, session.Metadata.FilePath, session.ID, provider.LoadOptions{
		Limit:            pageSize,
		SortOrder:        provider.SortDescending,
		ExcludeSidechain: exclude,
	})
	if err != nil {
		p.abandonLoad(gen)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return nil // stale page, user moved on
	}
	p.messages = page.Messages
	p.pagination = model.Pagination{
		CurrentOffset: page.NextOffset,
		PageSize:      pageSize,
		TotalCount:    page.TotalCount,
		HasMore:       page.HasMore,
	}
	if page.HasMore {
		p.state = StateLoaded
	} else {
		p.state = StateExhausted
	}
	return nil
}

// abandonLoad resets the state machine after a failed load, unless the
// selection has already moved on.
func (p *Pipeline) abandonLoad(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.generation {
		p.state = StateIdle
	}
}

// deriveProjectLocked resolves the owning project from the session's own
// ids, never from whatever project is currently selected. Caller holds
// the lock.
func (p *Pipeline) deriveProjectLocked(session model.Session) {
	if p.selectedProject != nil && p.selectedProject.ID == session.ProjectID {
		return
	}
	for i := range p.projects {
		if p.projects[i].ID == session.ProjectID && p.projects[i].ProviderID == session.ProviderID {
			proj := p.projects[i]
			p.selectedProject = &proj
			return
		}
	}
	// Unknown project: synthesize a minimal one from the session so the
	// selection invariant holds even for search jumps before any scan.
	p.selectedProject = &model.Project{
		ID:         session.ProjectID,
		ProviderID: session.ProviderID,
	}
}

// LoadMore fetches the next (older) page and prepends it. It is a no-op
// unless the state machine is Loaded with more pages available and no
// load already in flight.
func (p *Pipeline) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateLoaded || !p.pagination.HasMore || p.selectedSession == nil {
		p.mu.Unlock()
		return nil
	}
	gen := p.generation
	p.state = StateLoadingMore
	session := *p.selectedSession
	offset := p.pagination.CurrentOffset
	pageSize := p.pagination.PageSize
	exclude := p.excludeSidechain
	p.mu.Unlock()

	adapter, err := p.registry.Get(session.ProviderID)
	if err != nil {
		p.failLoadMore(gen)
		return err
	}

	page, err := adapter.LoadMessages(ctx, session.Metadata.FilePath, session.ID, provider.LoadOptions{
		Offset:           offset,
		Limit:            pageSize,
		SortOrder:        provider.SortDescending,
		ExcludeSidechain: exclude,
	})
	if err != nil {
		p.failLoadMore(gen)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return nil
	}
	p.messages = MergeMessages(p.messages, page.Messages)
	p.pagination.CurrentOffset = page.NextOffset
	p.pagination.TotalCount = page.TotalCount
	p.pagination.HasMore = page.HasMore
	if page.HasMore {
		p.state = StateLoaded
	} else {
		p.state = StateExhausted
	}
	return nil
}

func (p *Pipeline) failLoadMore(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.generation && p.state == StateLoadingMore {
		p.state = StateLoaded
	}
}

// LoadAll replaces the in-memory list with the whole session in one
// capped fetch instead of looping page by page.
func (p *Pipeline) LoadAll(ctx context.Context) error {
	p.mu.Lock()
	if p.selectedSession == nil {
		p.mu.Unlock()
		return apperr.New(apperr.CodeUnknown, "no session selected")
	}
	gen := p.generation
	session := *p.selectedSession
	exclude := p.excludeSidechain
	p.mu.Unlock()

	adapter, err := p.registry.Get(session.ProviderID)
	if err != nil {
		return err
	}

	page, err := adapter.LoadMessages(ctx, session.Metadata.FilePath, session.ID, provider.LoadOptions{
		Limit:            maxLoadAll,
		SortOrder:        provider.SortDescending,
		ExcludeSidechain: exclude,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return nil
	}
	p.messages = page.Messages
	p.pagination = model.Pagination{
		CurrentOffset: page.NextOffset,
		PageSize:      p.pageSize,
		TotalCount:    page.TotalCount,
		HasMore:       false,
	}
	p.state = StateExhausted
	return nil
}

// Sessions returns the session list for one project, serving from cache
// unless force is set. A fresh load always replaces the cache entry
// wholesale.
func (p *Pipeline) Sessions(ctx context.Context, providerID, projectPath, projectID string, force bool) ([]model.Session, error) {
	if !force {
		if sessions, ok := p.cache.Get(projectPath); ok {
			return sessions, nil
		}
	}

	adapter, err := p.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	exclude := p.excludeSidechain
	p.mu.Unlock()

	sessions, err := adapter.LoadSessions(ctx, projectPath, projectID, exclude)
	if err != nil {
		return nil, err
	}
	p.cache.Put(projectPath, sessions)
	return sessions, nil
}

// ForceRefresh drops the whole session cache and the remembered project
// list. The next reads go back to the adapters.
func (p *Pipeline) ForceRefresh() {
	p.cache.Clear()
	p.mu.Lock()
	p.projects = nil
	p.mu.Unlock()
}

// Cache exposes the session cache for consumers that manage their own
// invalidation.
func (p *Pipeline) Cache() *SessionCache { return p.cache }
