package cursor_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
	"github.com/opensesh/sessionhub/internal/provider/cursor"
	"github.com/opensesh/sessionhub/testutil"
)

func bubbleN(n int) string { return fmt.Sprintf("bubble-%03d", n) }

// fixtureBubbles alternates user/assistant turns, oldest first.
func fixtureBubbles(n int, base int64) []testutil.CursorBubbleSpec {
	bubbles := make([]testutil.CursorBubbleSpec, 0, n)
	for i := 0; i < n; i++ {
		typ := 1
		text := fmt.Sprintf("user message %d", i)
		if i%2 == 1 {
			typ = 2
			text = fmt.Sprintf("assistant reply %d", i)
		}
		bubbles = append(bubbles, testutil.CursorBubbleSpec{
			BubbleID:  bubbleN(i),
			Type:      typ,
			Text:      text,
			Timestamp: base + int64(i)*60_000,
		})
	}
	return bubbles
}

func TestDetect(t *testing.T) {
	a := cursor.New(nil)

	root := testutil.WriteCursorRoot(t)
	score := a.Detect(root)
	if !score.CanHandle {
		t.Fatalf("expected CanHandle for cursor root, got %+v", score)
	}
	if score.Confidence == 0 {
		t.Errorf("expected nonzero confidence, got %d", score.Confidence)
	}

	if score := a.Detect(t.TempDir()); score.CanHandle {
		t.Errorf("expected empty dir to be rejected, got %+v", score)
	}
}

func TestScanProjects(t *testing.T) {
	root := testutil.WriteCursorRoot(t)
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC).UnixMilli()

	testutil.WriteCursorWorkspace(t, root, "hash-webapp", "/home/dev/webapp")
	testutil.WriteCursorComposer(t, root, "composer-a", "Fix login flow", base, fixtureBubbles(4, base))
	testutil.AssociateCursorComposer(t, root, "composer-a", "/home/dev/webapp")
	testutil.WriteCursorComposer(t, root, "composer-b", "", base, fixtureBubbles(2, base))

	a := cursor.New(nil)
	projects, err := a.ScanProjects(context.Background(), root, "src-1")
	if err != nil {
		t.Fatalf("ScanProjects failed: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d: %+v", len(projects), projects)
	}

	byID := make(map[string]model.Project)
	for _, p := range projects {
		if p.SourceID != "src-1" || p.ProviderID != cursor.ProviderID {
			t.Errorf("project %s has wrong tagging: %+v", p.ID, p)
		}
		byID[p.ID] = p
	}

	webapp, ok := byID["webapp"]
	if !ok {
		t.Fatalf("missing webapp project, got %+v", projects)
	}
	if webapp.SessionCount != 1 || webapp.TotalMessages != 4 {
		t.Errorf("webapp counts = (%d, %d), want (1, 4)", webapp.SessionCount, webapp.TotalMessages)
	}

	global, ok := byID[cursor.GlobalProjectID]
	if !ok {
		t.Fatalf("missing global project, got %+v", projects)
	}
	if global.SessionCount != 1 || global.TotalMessages != 2 {
		t.Errorf("global counts = (%d, %d), want (1, 2)", global.SessionCount, global.TotalMessages)
	}
}

func TestLoadSessions(t *testing.T) {
	root := testutil.WriteCursorRoot(t)
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC).UnixMilli()

	testutil.WriteCursorWorkspace(t, root, "hash-webapp", "/home/dev/webapp")
	testutil.WriteCursorComposer(t, root, "composer-a", "Fix login flow", base, fixtureBubbles(6, base))
	testutil.AssociateCursorComposer(t, root, "composer-a", "/home/dev/webapp")
	testutil.WriteCursorComposer(t, root, "composer-b", "", base, fixtureBubbles(2, base))

	a := cursor.New(nil)
	projects, err := a.ScanProjects(context.Background(), root, "src-1")
	if err != nil {
		t.Fatalf("ScanProjects failed: %v", err)
	}

	for _, p := range projects {
		sessions, err := a.LoadSessions(context.Background(), p.Path, p.ID, false)
		if err != nil {
			t.Fatalf("LoadSessions(%s) failed: %v", p.ID, err)
		}
		if len(sessions) != 1 {
			t.Fatalf("project %s: expected 1 session, got %d", p.ID, len(sessions))
		}
		s := sessions[0]
		if s.ProjectID != p.ID || s.ProviderID != cursor.ProviderID {
			t.Errorf("session tagging wrong: %+v", s)
		}

		switch p.ID {
		case "webapp":
			if s.ID != "composer-a" || s.MessageCount != 6 {
				t.Errorf("webapp session = (%s, %d), want (composer-a, 6)", s.ID, s.MessageCount)
			}
			if s.Metadata.Summary != "Fix login flow" {
				t.Errorf("summary = %q, want composer name", s.Metadata.Summary)
			}
			if s.Metadata.Workspace != "/home/dev/webapp" {
				t.Errorf("workspace = %q", s.Metadata.Workspace)
			}
			want := time.UnixMilli(base).UTC()
			if !s.FirstMessageAt.Equal(want) {
				t.Errorf("FirstMessageAt = %v, want %v", s.FirstMessageAt, want)
			}
		case cursor.GlobalProjectID:
			if s.ID != "composer-b" {
				t.Errorf("global session id = %s, want composer-b", s.ID)
			}
			if s.Metadata.Summary != "user message 0" {
				t.Errorf("summary fallback = %q, want first user text", s.Metadata.Summary)
			}
		default:
			t.Errorf("unexpected project id %s", p.ID)
		}
	}
}

func TestLoadMessagesPagination(t *testing.T) {
	root := testutil.WriteCursorRoot(t)
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC).UnixMilli()
	testutil.WriteCursorComposer(t, root, "composer-a", "Paging", base, fixtureBubbles(10, base))

	a := cursor.New(nil)
	projects, err := a.ScanProjects(context.Background(), root, "src-1")
	if err != nil {
		t.Fatalf("ScanProjects failed: %v", err)
	}
	sessions, err := a.LoadSessions(context.Background(), projects[0].Path, projects[0].ID, false)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	sessionPath := sessions[0].Metadata.FilePath

	opts := provider.LoadOptions{Limit: 4, SortOrder: provider.SortDescending}
	page, err := a.LoadMessages(context.Background(), sessionPath, "composer-a", opts)
	if err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	if page.TotalCount != 10 || !page.HasMore {
		t.Fatalf("page = total %d hasMore %v, want 10 true", page.TotalCount, page.HasMore)
	}
	if len(page.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(page.Messages))
	}
	// Newest page, oldest first inside the page.
	if page.Messages[0].ID != bubbleN(6) || page.Messages[3].ID != bubbleN(9) {
		t.Errorf("first page ids = %s..%s, want %s..%s",
			page.Messages[0].ID, page.Messages[3].ID, bubbleN(6), bubbleN(9))
	}

	total := len(page.Messages)
	for page.HasMore {
		opts.Offset = page.NextOffset
		page, err = a.LoadMessages(context.Background(), sessionPath, "composer-a", opts)
		if err != nil {
			t.Fatalf("LoadMessages offset %d failed: %v", opts.Offset, err)
		}
		total += len(page.Messages)
	}
	if total != 10 {
		t.Errorf("walked %d messages, want 10", total)
	}
}

func TestLoadMessagesBadPath(t *testing.T) {
	a := cursor.New(nil)
	_, err := a.LoadMessages(context.Background(), "/tmp/state.vscdb", "", provider.LoadOptions{})
	if err == nil {
		t.Fatal("expected error for path without composer marker")
	}
}

func TestSearchMessages(t *testing.T) {
	root := testutil.WriteCursorRoot(t)
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC).UnixMilli()
	bubbles := fixtureBubbles(4, base)
	bubbles[2].Text = "please refactor the Login Handler"
	testutil.WriteCursorComposer(t, root, "composer-a", "Refactor", base, bubbles)
	testutil.AssociateCursorComposer(t, root, "composer-a", "/home/dev/webapp")

	a := cursor.New(nil)
	hits, err := a.SearchMessages(context.Background(), []string{root}, "login handler", provider.SearchFilters{})
	if err != nil {
		t.Fatalf("SearchMessages failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %+v", len(hits), hits)
	}
	if hits[0].ID != bubbleN(2) {
		t.Errorf("hit id = %s, want %s", hits[0].ID, bubbleN(2))
	}
	if hits[0].ProjectPath != "/home/dev/webapp" {
		t.Errorf("hit project path = %q", hits[0].ProjectPath)
	}

	hits, err = a.SearchMessages(context.Background(), []string{root}, "login handler",
		provider.SearchFilters{Roles: []model.MessageRole{model.RoleAssistant}})
	if err != nil {
		t.Fatalf("SearchMessages with role filter failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected role filter to drop the user hit, got %d", len(hits))
	}
}

func TestHealthCheck(t *testing.T) {
	a := cursor.New(nil)

	if got := a.HealthCheck(context.Background(), t.TempDir()); got != model.HealthOffline {
		t.Errorf("missing store health = %s, want offline", got)
	}

	root := testutil.WriteCursorRoot(t)
	if got := a.HealthCheck(context.Background(), root); got != model.HealthHealthy {
		t.Errorf("fresh store health = %s, want healthy", got)
	}
}
