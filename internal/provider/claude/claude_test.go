package claude_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
	"github.com/opensesh/sessionhub/internal/provider/claude"
	"github.com/opensesh/sessionhub/testutil"
)

func fixtureMessages(n int, start time.Time) []testutil.ClaudeMessageSpec {
	msgs := make([]testutil.ClaudeMessageSpec, 0, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		spec := testutil.ClaudeMessageSpec{
			UUID:      uuidN(i),
			Role:      role,
			Text:      "message number " + uuidN(i),
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		}
		if i > 0 {
			spec.ParentUUID = uuidN(i - 1)
		}
		msgs = append(msgs, spec)
	}
	return msgs
}

func uuidN(i int) string {
	return "00000000-0000-0000-0000-" + padLeft(i)
}

func padLeft(i int) string {
	s := ""
	for n := i; n > 0; n /= 10 {
		s = string(rune('0'+n%10)) + s
	}
	for len(s) < 12 {
		s = "0" + s
	}
	return s
}

func TestDetect(t *testing.T) {
	a := claude.New(nil)
	root := testutil.WriteClaudeRoot(t)

	score := a.Detect(root)
	if !score.CanHandle {
		t.Fatal("Detect() cannot handle a valid claude root")
	}
	if score.Confidence == 0 {
		t.Error("Confidence = 0, want > 0 with settings.json present")
	}

	empty := t.TempDir()
	if a.Detect(empty).CanHandle {
		t.Error("Detect() claims an empty directory")
	}
}

func TestScanProjects(t *testing.T) {
	a := claude.New(nil)
	root := testutil.WriteClaudeRoot(t)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	testutil.WriteClaudeSession(t, root, "-home-user-webapp", "session-a", "Fix login bug", fixtureMessages(4, start))
	testutil.WriteClaudeSession(t, root, "-home-user-webapp", "session-b", "", fixtureMessages(2, start.Add(time.Hour)))
	testutil.WriteClaudeSession(t, root, "-home-user-cli", "session-c", "", fixtureMessages(3, start))

	projects, err := a.ScanProjects(context.Background(), root, "src-1")
	if err != nil {
		t.Fatalf("ScanProjects() failed: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(projects))
	}

	byName := map[string]int{}
	for _, p := range projects {
		byName[p.Name] = p.SessionCount
		if p.SourceID != "src-1" {
			t.Errorf("project %s SourceID = %q, want src-1", p.Name, p.SourceID)
		}
		if p.TotalMessages < 1 {
			t.Errorf("project %s TotalMessages = %d, want >= 1", p.Name, p.TotalMessages)
		}
	}
	if byName["webapp"] != 2 || byName["cli"] != 1 {
		t.Errorf("session counts by project = %v, want webapp:2 cli:1", byName)
	}
}

func TestLoadSessions(t *testing.T) {
	a := claude.New(nil)
	root := testutil.WriteClaudeRoot(t)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	msgs := fixtureMessages(5, start)
	msgs[2].Sidechain = true
	path := testutil.WriteClaudeSession(t, root, "-home-user-webapp", "sess-1", "Debug the tests", msgs)

	projectPath := filepath.Dir(path)

	sessions, err := a.LoadSessions(context.Background(), projectPath, "proj-1", false)
	if err != nil {
		t.Fatalf("LoadSessions() failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}

	s := sessions[0]
	if s.ID != "sess-1" {
		t.Errorf("ID = %q, want sess-1", s.ID)
	}
	if s.MessageCount != 5 {
		t.Errorf("MessageCount = %d, want 5", s.MessageCount)
	}
	if s.Metadata.Summary != "Debug the tests" {
		t.Errorf("Summary = %q, want fixture summary", s.Metadata.Summary)
	}
	if !s.FirstMessageAt.Equal(start) {
		t.Errorf("FirstMessageAt = %v, want %v", s.FirstMessageAt, start)
	}

	// Sidechain exclusion drops the flagged message from the count.
	excluded, err := a.LoadSessions(context.Background(), projectPath, "proj-1", true)
	if err != nil {
		t.Fatal(err)
	}
	if excluded[0].MessageCount != 4 {
		t.Errorf("MessageCount with sidechains excluded = %d, want 4", excluded[0].MessageCount)
	}
}

func TestLoadMessagesPagination(t *testing.T) {
	a := claude.New(nil)
	root := testutil.WriteClaudeRoot(t)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	path := testutil.WriteClaudeSession(t, root, "-home-user-webapp", "sess-1", "", fixtureMessages(10, start))

	ctx := context.Background()

	// First page under descending order returns the newest four, oldest
	// first within the page.
	page, err := a.LoadMessages(ctx, path, "sess-1", provider.LoadOptions{
		Offset: 0, Limit: 4, SortOrder: provider.SortDescending,
	})
	if err != nil {
		t.Fatalf("LoadMessages() failed: %v", err)
	}
	if page.TotalCount != 10 {
		t.Errorf("TotalCount = %d, want 10", page.TotalCount)
	}
	if len(page.Messages) != 4 {
		t.Fatalf("page length = %d, want 4", len(page.Messages))
	}
	if page.Messages[0].ID != uuidN(6) || page.Messages[3].ID != uuidN(9) {
		t.Errorf("page window = [%s..%s], want [%s..%s]",
			page.Messages[0].ID, page.Messages[3].ID, uuidN(6), uuidN(9))
	}
	if !page.HasMore {
		t.Error("HasMore = false after first of three pages")
	}

	// Resume from NextOffset until exhausted; total seen must equal 10.
	seen := len(page.Messages)
	offset := page.NextOffset
	for page.HasMore {
		page, err = a.LoadMessages(ctx, path, "sess-1", provider.LoadOptions{
			Offset: offset, Limit: 4, SortOrder: provider.SortDescending,
		})
		if err != nil {
			t.Fatal(err)
		}
		seen += len(page.Messages)
		offset = page.NextOffset
	}
	if seen != 10 {
		t.Errorf("messages seen across pages = %d, want 10", seen)
	}
}

func TestLoadMessagesAscending(t *testing.T) {
	a := claude.New(nil)
	root := testutil.WriteClaudeRoot(t)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	path := testutil.WriteClaudeSession(t, root, "-home-user-webapp", "sess-1", "", fixtureMessages(5, start))

	page, err := a.LoadMessages(context.Background(), path, "sess-1", provider.LoadOptions{
		Offset: 0, Limit: 3, SortOrder: provider.SortAscending,
	})
	if err != nil {
		t.Fatal(err)
	}
	if page.Messages[0].ID != uuidN(0) {
		t.Errorf("first ascending message = %s, want %s", page.Messages[0].ID, uuidN(0))
	}
	if page.NextOffset != 3 || !page.HasMore {
		t.Errorf("NextOffset=%d HasMore=%v, want 3/true", page.NextOffset, page.HasMore)
	}
}

func TestSearchMessages(t *testing.T) {
	a := claude.New(nil)
	root := testutil.WriteClaudeRoot(t)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	testutil.WriteClaudeSession(t, root, "-home-user-webapp", "sess-1", "", []testutil.ClaudeMessageSpec{
		{UUID: uuidN(1), Role: "user", Text: "how do I center a div", Timestamp: start},
		{UUID: uuidN(2), Role: "assistant", Text: "use flexbox with justify-content", Timestamp: start.Add(time.Minute)},
	})

	hits, err := a.SearchMessages(context.Background(), []string{root}, "FLEXBOX", provider.SearchFilters{})
	if err != nil {
		t.Fatalf("SearchMessages() failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].ProjectPath == "" {
		t.Error("search hit missing ProjectPath")
	}
}

func TestWriterRoundTrip(t *testing.T) {
	a := claude.New(nil)
	root := testutil.WriteClaudeRoot(t)
	ctx := context.Background()

	proj, err := a.CreateProject(ctx, root, "/home/user/newproj")
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}

	sess, err := a.CreateSession(ctx, proj.Path, "kick off")
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	err = a.AppendMessages(ctx, sess.Metadata.FilePath, []model.Message{
		{
			ID:        uuidN(1),
			Role:      model.RoleUser,
			Timestamp: now,
			Content:   []model.ContentPart{{Type: model.ContentText, Text: "first message"}},
		},
		{
			ID:        uuidN(2),
			ParentID:  uuidN(1),
			Role:      model.RoleAssistant,
			Timestamp: now.Add(time.Minute),
			Content:   []model.ContentPart{{Type: model.ContentText, Text: "second message"}},
		},
	})
	if err != nil {
		t.Fatalf("AppendMessages() failed: %v", err)
	}

	sessions, err := a.LoadSessions(ctx, proj.Path, proj.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions after write, want 1", len(sessions))
	}
	if sessions[0].MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", sessions[0].MessageCount)
	}
	if sessions[0].Metadata.Summary != "kick off" {
		t.Errorf("Summary = %q, want %q", sessions[0].Metadata.Summary, "kick off")
	}

	page, err := a.LoadMessages(ctx, sess.Metadata.FilePath, sess.ID, provider.LoadOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("got %d messages after write, want 2", len(page.Messages))
	}
	if page.Messages[1].ParentID != uuidN(1) {
		t.Errorf("ParentID = %q, want %s", page.Messages[1].ParentID, uuidN(1))
	}
}
