// Package testutil builds on-disk fixtures for the three supported
// provider layouts plus an in-memory fake adapter for registry, source
// and pipeline tests.
package testutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// ClaudeMessageSpec describes one JSONL line of a Claude Code session
// fixture.
type ClaudeMessageSpec struct {
	UUID       string
	ParentUUID string
	Role       string // "user" or "assistant"
	Text       string
	Timestamp  time.Time
	Sidechain  bool
}

// WriteClaudeRoot creates a Claude Code source root with a projects/
// directory and returns the root path.
func WriteClaudeRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "projects"), 0755); err != nil {
		t.Fatalf("failed to create projects dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "settings.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to write settings.json: %v", err)
	}
	return root
}

// WriteClaudeSession writes one session JSONL file into a project dir
// under the given root, creating the project dir as needed. Returns the
// session file path.
func WriteClaudeSession(t *testing.T, root, projectDir, sessionID, summary string, msgs []ClaudeMessageSpec) string {
	t.Helper()
	dir := filepath.Join(root, "projects", projectDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create project dir: %v", err)
	}

	var lines []byte
	if summary != "" {
		line, _ := json.Marshal(map[string]interface{}{
			"type":    "summary",
			"summary": summary,
			"uuid":    sessionID + "-summary",
		})
		lines = append(lines, line...)
		lines = append(lines, '\n')
	}

	for _, m := range msgs {
		entry := map[string]interface{}{
			"type":      m.Role,
			"uuid":      m.UUID,
			"sessionId": sessionID,
			"timestamp": m.Timestamp.UTC().Format(time.RFC3339),
			"cwd":       "/home/user/" + projectDir,
			"message": map[string]interface{}{
				"role":    m.Role,
				"content": m.Text,
			},
		}
		if m.ParentUUID != "" {
			entry["parentUuid"] = m.ParentUUID
		}
		if m.Sidechain {
			entry["isSidechain"] = true
		}
		line, _ := json.Marshal(entry)
		lines = append(lines, line...)
		lines = append(lines, '\n')
	}

	path := filepath.Join(dir, sessionID+".jsonl")
	if err := os.WriteFile(path, lines, 0644); err != nil {
		t.Fatalf("failed to write session file: %v", err)
	}
	return path
}

// CursorBubbleSpec describes one bubble of a Cursor composer fixture.
type CursorBubbleSpec struct {
	BubbleID  string
	Type      int // 1=user, 2=assistant
	Text      string
	Timestamp int64
}

// WriteCursorRoot creates a Cursor User-dir style root with an empty
// globalStorage database and returns the root path.
func WriteCursorRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dbDir := filepath.Join(root, "globalStorage")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		t.Fatalf("failed to create globalStorage: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "workspaceStorage"), 0755); err != nil {
		t.Fatalf("failed to create workspaceStorage: %v", err)
	}

	db := openCursorDB(t, filepath.Join(dbDir, "state.vscdb"))
	defer func() { _ = db.Close() }()
	return root
}

// WriteCursorComposer inserts a composer and its bubbles into the root's
// globalStorage database.
func WriteCursorComposer(t *testing.T, root, composerID, name string, createdAt int64, bubbles []CursorBubbleSpec) {
	t.Helper()
	db := openCursorDB(t, filepath.Join(root, "globalStorage", "state.vscdb"))
	defer func() { _ = db.Close() }()

	headers := make([]map[string]interface{}, 0, len(bubbles))
	for _, b := range bubbles {
		headers = append(headers, map[string]interface{}{
			"bubbleId": b.BubbleID,
			"type":     b.Type,
		})
	}
	composer := map[string]interface{}{
		"composerId":                  composerID,
		"name":                        name,
		"createdAt":                   createdAt,
		"lastUpdatedAt":               createdAt,
		"fullConversationHeadersOnly": headers,
	}
	composerJSON, _ := json.Marshal(composer)
	mustExec(t, db, "INSERT OR REPLACE INTO cursorDiskKV (key, value) VALUES (?, ?)",
		"composerData:"+composerID, string(composerJSON))

	for _, b := range bubbles {
		bubble := map[string]interface{}{
			"bubbleId":  b.BubbleID,
			"text":      b.Text,
			"type":      b.Type,
			"timestamp": b.Timestamp,
		}
		bubbleJSON, _ := json.Marshal(bubble)
		key := fmt.Sprintf("bubbleId:%s:%s", composerID, b.BubbleID)
		mustExec(t, db, "INSERT OR REPLACE INTO cursorDiskKV (key, value) VALUES (?, ?)", key, string(bubbleJSON))
	}
}

// WriteCursorWorkspace creates a workspaceStorage entry pointing at
// folder and returns the workspace hash dir path.
func WriteCursorWorkspace(t *testing.T, root, hash, folder string) string {
	t.Helper()
	dir := filepath.Join(root, "workspaceStorage", hash)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	data, _ := json.Marshal(map[string]string{"folder": folder})
	if err := os.WriteFile(filepath.Join(dir, "workspace.json"), data, 0644); err != nil {
		t.Fatalf("failed to write workspace.json: %v", err)
	}
	return dir
}

// AssociateCursorComposer records a messageRequestContext entry tying the
// composer to a workspace folder.
func AssociateCursorComposer(t *testing.T, root, composerID, folder string) {
	t.Helper()
	db := openCursorDB(t, filepath.Join(root, "globalStorage", "state.vscdb"))
	defer func() { _ = db.Close() }()

	ctx := map[string]interface{}{
		"projectLayouts": []string{folder},
	}
	ctxJSON, _ := json.Marshal(ctx)
	key := fmt.Sprintf("messageRequestContext:%s:ctx-1", composerID)
	mustExec(t, db, "INSERT OR REPLACE INTO cursorDiskKV (key, value) VALUES (?, ?)", key, string(ctxJSON))
}

// CodexEventSpec describes one event line of a Codex rollout fixture.
type CodexEventSpec struct {
	ID        string
	Type      string // e.g. "response_item"
	Role      string
	Text      string
	Timestamp time.Time
	Cwd       string
}

// WriteCodexRoot creates a Codex source root with a sessions/ directory.
func WriteCodexRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sessions"), 0755); err != nil {
		t.Fatalf("failed to create sessions dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "config.toml"), []byte("model = \"o3\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config.toml: %v", err)
	}
	return root
}

// WriteCodexRollout writes one rollout JSONL file named after stamp and
// uuid, returning its path.
func WriteCodexRollout(t *testing.T, root, stamp, uuid string, events []CodexEventSpec) string {
	t.Helper()
	var lines []byte
	for _, e := range events {
		entry := map[string]interface{}{
			"id":        e.ID,
			"type":      e.Type,
			"timestamp": e.Timestamp.UTC().Format(time.RFC3339),
			"payload": map[string]interface{}{
				"role": e.Role,
				"content": []map[string]interface{}{
					{"type": "input_text", "text": e.Text},
				},
			},
		}
		if e.Cwd != "" {
			entry["environment_context"] = map[string]interface{}{"cwd": e.Cwd}
		}
		line, _ := json.Marshal(entry)
		lines = append(lines, line...)
		lines = append(lines, '\n')
	}

	path := filepath.Join(root, "sessions", fmt.Sprintf("rollout-%s-%s.jsonl", stamp, uuid))
	if err := os.WriteFile(path, lines, 0644); err != nil {
		t.Fatalf("failed to write rollout file: %v", err)
	}
	return path
}

func openCursorDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open fixture database: %v", err)
	}
	mustExec(t, db, `CREATE TABLE IF NOT EXISTS cursorDiskKV (key TEXT PRIMARY KEY, value TEXT)`)
	return db
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("fixture exec failed: %v", err)
	}
}
