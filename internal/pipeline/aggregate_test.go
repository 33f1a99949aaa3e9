package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/pipeline"
	"github.com/opensesh/sessionhub/internal/provider"
	"github.com/opensesh/sessionhub/internal/source"
	"github.com/opensesh/sessionhub/testutil"
)

// twoSourceFixture registers two fake providers and one source for each.
func twoSourceFixture(t *testing.T, good, bad *testutil.FakeAdapter) (*pipeline.Pipeline, *source.Store) {
	t.Helper()
	registry := provider.NewRegistry(nil)
	for _, a := range []*testutil.FakeAdapter{good, bad} {
		if err := registry.Register(a); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	store := source.NewStore(registry, t.TempDir(), nil)

	good.Detection = provider.DetectionScore{CanHandle: true, Confidence: 90}
	if _, err := store.Add(context.Background(), t.TempDir(), "good"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	good.Detection.CanHandle = false
	bad.Detection = provider.DetectionScore{CanHandle: true, Confidence: 90}
	if _, err := store.Add(context.Background(), t.TempDir(), "bad"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	return pipeline.New(registry, store, nil), store
}

func TestScanAllSourcesIsolatesFailures(t *testing.T) {
	good := &testutil.FakeAdapter{
		ProviderID: "good",
		Projects: []model.Project{
			{ID: "g1", ProviderID: "good", Path: "/good/g1"},
			{ID: "g2", ProviderID: "good", Path: "/good/g2"},
		},
	}
	bad := &testutil.FakeAdapter{ProviderID: "bad"}
	p, _ := twoSourceFixture(t, good, bad)
	bad.ScanErr = errors.New("mount gone")

	projects := p.ScanAllSources(context.Background())
	if len(projects) != 2 {
		t.Fatalf("aggregate scan returned %d projects, want the good source's 2", len(projects))
	}
	for _, proj := range projects {
		if proj.ProviderID != "good" {
			t.Errorf("unexpected project from failing source: %+v", proj)
		}
	}
}

func TestSearchAllSourcesSortsByTimestampDesc(t *testing.T) {
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	mk := func(id string, minutes int) model.Message {
		return model.Message{
			ID:        id,
			SessionID: "s-" + id,
			Timestamp: base.Add(time.Duration(minutes) * time.Minute),
			Content:   []model.ContentPart{{Type: model.ContentText, Text: "needle " + id}},
		}
	}
	a := &testutil.FakeAdapter{
		ProviderID: "good",
		Messages:   map[string][]model.Message{"/a/s": {mk("a1", 10), mk("a2", 40)}},
	}
	b := &testutil.FakeAdapter{
		ProviderID: "bad",
		Messages:   map[string][]model.Message{"/b/s": {mk("b1", 25)}},
	}
	p, _ := twoSourceFixture(t, a, b)

	results := p.SearchAllSources(context.Background(), "needle", provider.SearchFilters{})
	if len(results) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(results))
	}
	want := []string{"a2", "b1", "a1"}
	for i, id := range want {
		if results[i].Message.ID != id {
			t.Fatalf("order = [%s %s %s], want %v",
				results[0].Message.ID, results[1].Message.ID, results[2].Message.ID, want)
		}
	}
}

func TestSearchAllSourcesIsolatesFailures(t *testing.T) {
	good := &testutil.FakeAdapter{
		ProviderID: "good",
		Messages: map[string][]model.Message{"/g/s": {{
			ID:      "hit",
			Content: []model.ContentPart{{Type: model.ContentText, Text: "needle"}},
		}}},
	}
	bad := &testutil.FakeAdapter{ProviderID: "bad"}
	p, _ := twoSourceFixture(t, good, bad)
	bad.MessageErr = errors.New("index corrupt")

	results := p.SearchAllSources(context.Background(), "needle", provider.SearchFilters{})
	if len(results) != 1 || results[0].Message.ID != "hit" {
		t.Fatalf("expected the good source's hit only, got %+v", results)
	}
}

func TestResolveSearchSessions(t *testing.T) {
	resolvable := model.Session{
		ID:         "s-known",
		ProviderID: "good",
		Metadata:   model.SessionMetadata{Summary: "known session"},
	}
	good := &testutil.FakeAdapter{
		ProviderID: "good",
		Sessions:   map[string][]model.Session{"/g/p1": {resolvable}},
	}
	bad := &testutil.FakeAdapter{ProviderID: "bad"}
	p, _ := twoSourceFixture(t, good, bad)

	results := []pipeline.SearchResult{
		{
			Message:    model.Message{ID: "m1", SessionID: "s-known", ProjectPath: "/g/p1"},
			ProviderID: "good",
		},
		{
			Message:    model.Message{ID: "m2", SessionID: "s-ghost", ProjectPath: "/g/missing"},
			ProviderID: "good",
		},
	}

	resolved := p.ResolveSearchSessions(context.Background(), results)

	known, ok := resolved["s-known"]
	if !ok || known.Metadata.Summary != "known session" {
		t.Errorf("known session not resolved: %+v", known)
	}

	ghost, ok := resolved["s-ghost"]
	if !ok {
		t.Fatal("unresolvable session must get a pseudo-session, not be dropped")
	}
	if ghost.ID != "s-ghost" || ghost.Metadata.Summary == "" {
		t.Errorf("pseudo-session = %+v", ghost)
	}
}

func TestResolveSearchSessionsDoesNotPoisonCache(t *testing.T) {
	scanned := model.Session{
		ID:         "s1",
		ProjectID:  "proj-1",
		ProviderID: "good",
		Metadata:   model.SessionMetadata{Summary: "scanned project session"},
	}
	unscanned := model.Session{
		ID:         "s2",
		ProviderID: "good",
		Metadata:   model.SessionMetadata{Summary: "unscanned project session"},
	}
	good := &testutil.FakeAdapter{
		ProviderID: "good",
		Projects:   []model.Project{{ID: "proj-1", ProviderID: "good", Path: "/g/p1"}},
		Sessions: map[string][]model.Session{
			"/g/p1":        {scanned},
			"/g/unscanned": {unscanned},
		},
	}
	bad := &testutil.FakeAdapter{ProviderID: "bad"}
	p, _ := twoSourceFixture(t, good, bad)
	p.ScanAllSources(context.Background())

	results := []pipeline.SearchResult{
		{Message: model.Message{ID: "m1", SessionID: "s1", ProjectPath: "/g/p1"}, ProviderID: "good"},
		{Message: model.Message{ID: "m2", SessionID: "s2", ProjectPath: "/g/unscanned"}, ProviderID: "good"},
	}
	resolved := p.ResolveSearchSessions(context.Background(), results)
	if len(resolved) != 2 {
		t.Fatalf("resolved %d sessions, want 2", len(resolved))
	}

	// The scanned project resolved through the cache with its real id.
	if cached, ok := p.Cache().Get("/g/p1"); !ok || cached[0].ProjectID != "proj-1" {
		t.Errorf("scanned project cache entry = %+v, ok=%v", cached, ok)
	}

	// The unscanned project must not leave a cache entry behind: a later
	// Sessions call for it has to reach the adapter, not a stale list
	// loaded without a project id.
	if _, ok := p.Cache().Get("/g/unscanned"); ok {
		t.Error("resolution cached sessions for a project it could not identify")
	}
	calls := good.SessionCalls
	if _, err := p.Sessions(context.Background(), "good", "/g/unscanned", "proj-2", false); err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if good.SessionCalls != calls+1 {
		t.Errorf("Sessions served a cached list instead of loading the project")
	}
}
