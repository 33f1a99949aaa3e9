package pipeline

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

// aggregateConcurrency bounds the fan-out of scan-all and search-all.
const aggregateConcurrency = 8

// ScanAllSources scans every available source concurrently and returns
// the union of their projects. A failing source contributes zero projects
// and a log line, never an error at this boundary.
func (p *Pipeline) ScanAllSources(ctx context.Context) []model.Project {
	sources := p.sources.Available()

	var mu sync.Mutex
	var all []model.Project

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(aggregateConcurrency)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			adapter := p.registry.TryGet(src.ProviderID)
			if adapter == nil {
				p.logger.Warn("scan skipping source with unknown provider",
					zap.String("source", src.ID), zap.String("provider", src.ProviderID))
				return nil
			}
			projects, err := adapter.ScanProjects(ctx, src.RootPath, src.ID)
			if err != nil {
				p.logger.Warn("scan failed for source",
					zap.String("source", src.ID), zap.Error(err))
				return nil
			}
			mu.Lock()
			all = append(all, projects...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	p.projects = all
	p.mu.Unlock()
	return all
}

// SearchResult is one search hit plus the source context needed to
// resolve its owning session later.
type SearchResult struct {
	Message    model.Message
	SourceID   string
	ProviderID string
}

// SearchAllSources searches every available source concurrently,
// concatenates the successful results, and sorts the combined set by
// timestamp descending. Sorting happens once, after aggregation.
func (p *Pipeline) SearchAllSources(ctx context.Context, query string, filters provider.SearchFilters) []SearchResult {
	sources := p.sources.Available()

	var mu sync.Mutex
	var all []SearchResult

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(aggregateConcurrency)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			adapter := p.registry.TryGet(src.ProviderID)
			if adapter == nil {
				return nil
			}
			hits, err := adapter.SearchMessages(ctx, []string{src.RootPath}, query, filters)
			if err != nil {
				p.logger.Warn("search failed for source",
					zap.String("source", src.ID), zap.Error(err))
				return nil
			}
			results := make([]SearchResult, 0, len(hits))
			for _, hit := range hits {
				results = append(results, SearchResult{
					Message:    hit,
					SourceID:   src.ID,
					ProviderID: src.ProviderID,
				})
			}
			mu.Lock()
			all = append(all, results...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Message.Timestamp.After(all[j].Message.Timestamp)
	})
	return all
}

// ResolveSearchSessions maps each distinct session referenced by the
// results to its full Session record, loading the session lists of every
// referenced project concurrently. A session that cannot be resolved gets
// a synthesized pseudo-session keyed by its id so the result still
// renders.
func (p *Pipeline) ResolveSearchSessions(ctx context.Context, results []SearchResult) map[string]model.Session {
	type projectRef struct {
		providerID  string
		projectPath string
	}
	refs := make(map[projectRef]bool)
	for _, r := range results {
		if r.Message.ProjectPath == "" {
			continue
		}
		refs[projectRef{r.ProviderID, r.Message.ProjectPath}] = true
	}

	resolved := make(map[string]model.Session)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(aggregateConcurrency)
	for ref := range refs {
		ref := ref
		g.Go(func() error {
			sessions, err := p.resolveProjectSessions(ctx, ref.providerID, ref.projectPath)
			if err != nil {
				p.logger.Debug("session resolution failed for project",
					zap.String("project", ref.projectPath), zap.Error(err))
				return nil
			}
			mu.Lock()
			for _, s := range sessions {
				resolved[s.ID] = s
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Fallbacks for hits whose session never showed up.
	for _, r := range results {
		id := r.Message.SessionID
		if id == "" {
			continue
		}
		if _, ok := resolved[id]; ok {
			continue
		}
		resolved[id] = model.Session{
			ID:         id,
			ProviderID: r.ProviderID,
			Metadata: model.SessionMetadata{
				Summary: "Session " + id,
			},
		}
	}
	return resolved
}

// resolveProjectSessions loads one project's sessions for search-result
// resolution. When the project is known from a prior scan its id is passed
// through the cached Sessions path; an unknown project is loaded straight
// from the adapter so the cache never holds an entry with a blank project
// id that would short-circuit a later lookup.
func (p *Pipeline) resolveProjectSessions(ctx context.Context, providerID, projectPath string) ([]model.Session, error) {
	p.mu.Lock()
	projectID := ""
	known := false
	for _, proj := range p.projects {
		if proj.ProviderID == providerID && proj.Path == projectPath {
			projectID = proj.ID
			known = true
			break
		}
	}
	exclude := p.excludeSidechain
	p.mu.Unlock()

	if known {
		return p.Sessions(ctx, providerID, projectPath, projectID, false)
	}

	adapter, err := p.registry.Get(providerID)
	if err != nil {
		return nil, err
	}
	return adapter.LoadSessions(ctx, projectPath, "", exclude)
}
