package testutil

import (
	"context"
	"sort"
	"strings"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

// FakeAdapter is an in-memory Adapter for registry, source-store and
// pipeline tests. Fixed data in, deterministic pages out; individual
// operations can be forced to fail.
type FakeAdapter struct {
	ProviderID string
	Detection  provider.DetectionScore
	Projects   []model.Project
	Sessions   map[string][]model.Session // keyed by project path
	Messages   map[string][]model.Message // keyed by session path, oldest first
	Health     model.HealthStatus

	ScanErr    error
	SessionErr error
	MessageErr error

	ScanCalls    int
	SessionCalls int
	MessageCalls int
}

var _ provider.Adapter = (*FakeAdapter)(nil)

func (f *FakeAdapter) ID() string { return f.ProviderID }

func (f *FakeAdapter) Name() string { return "fake " + f.ProviderID }

func (f *FakeAdapter) Capabilities() provider.Capabilities { return provider.Capabilities{} }

func (f *FakeAdapter) DefaultRoot() (string, error) {
	return "", apperr.New(apperr.CodeUnsupported, "fake adapter has no default root")
}

func (f *FakeAdapter) Detect(path string) provider.DetectionScore { return f.Detection }

func (f *FakeAdapter) ScanProjects(ctx context.Context, root, sourceID string) ([]model.Project, error) {
	f.ScanCalls++
	if f.ScanErr != nil {
		return nil, f.ScanErr
	}
	out := make([]model.Project, len(f.Projects))
	copy(out, f.Projects)
	for i := range out {
		out[i].SourceID = sourceID
	}
	return out, nil
}

func (f *FakeAdapter) LoadSessions(ctx context.Context, projectPath, projectID string, excludeSidechain bool) ([]model.Session, error) {
	f.SessionCalls++
	if f.SessionErr != nil {
		return nil, f.SessionErr
	}
	out := make([]model.Session, len(f.Sessions[projectPath]))
	copy(out, f.Sessions[projectPath])
	return out, nil
}

// LoadMessages pages backward from the end of the fixed message list:
// offset n means "skip the n most recent", matching the most-recent-first
// contract the pipeline merges against.
func (f *FakeAdapter) LoadMessages(ctx context.Context, sessionPath, sessionID string, opts provider.LoadOptions) (*model.MessagePage, error) {
	f.MessageCalls++
	if f.MessageErr != nil {
		return nil, f.MessageErr
	}

	all := f.Messages[sessionPath]
	total := len(all)

	if opts.SortOrder == provider.SortAscending {
		end := opts.Offset + opts.Limit
		if end > total {
			end = total
		}
		start := opts.Offset
		if start > total {
			start = total
		}
		page := append([]model.Message(nil), all[start:end]...)
		return &model.MessagePage{
			Messages:   page,
			TotalCount: total,
			HasMore:    end < total,
			NextOffset: end,
		}, nil
	}

	end := total - opts.Offset
	if end < 0 {
		end = 0
	}
	start := end - opts.Limit
	if start < 0 {
		start = 0
	}
	page := append([]model.Message(nil), all[start:end]...)
	return &model.MessagePage{
		Messages:   page,
		TotalCount: total,
		HasMore:    start > 0,
		NextOffset: opts.Offset + len(page),
	}, nil
}

func (f *FakeAdapter) SearchMessages(ctx context.Context, roots []string, query string, filters provider.SearchFilters) ([]model.Message, error) {
	if f.MessageErr != nil {
		return nil, f.MessageErr
	}
	var hits []model.Message
	for _, msgs := range f.Messages {
		for _, m := range msgs {
			if strings.Contains(strings.ToLower(m.PlainText()), strings.ToLower(query)) {
				hits = append(hits, m)
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	return hits, nil
}

func (f *FakeAdapter) HealthCheck(ctx context.Context, root string) model.HealthStatus {
	if f.Health == "" {
		return model.HealthHealthy
	}
	return f.Health
}
