package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/opensesh/sessionhub/internal/model"
)

func fixtureConversation() *Conversation {
	ts := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	return &Conversation{
		Session: model.Session{
			ID:         "sess-1",
			ProviderID: "claude-code",
			Metadata:   model.SessionMetadata{Summary: "Fix the build"},
		},
		Messages: []model.Message{
			{
				ID: "m1", Role: model.RoleUser, Timestamp: ts,
				Content: []model.ContentPart{{Type: model.ContentText, Text: "why does the build fail?"}},
			},
			{
				ID: "m2", Role: model.RoleAssistant, Timestamp: ts.Add(time.Minute),
				Model:   "test-model",
				Content: []model.ContentPart{{Type: model.ContentText, Text: "missing **dependency**"}},
				ToolCalls: []model.ToolCall{
					{ID: "t1", Name: "Bash"},
				},
			},
		},
	}
}

func TestNewExporter(t *testing.T) {
	for _, format := range []string{"jsonl", "md", "markdown", "yaml", "json"} {
		if _, err := NewExporter(format); err != nil {
			t.Errorf("NewExporter(%q) failed: %v", format, err)
		}
	}
	if _, err := NewExporter("xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestJSONLExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONLExporter{}).Export(fixtureConversation(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &obj); err != nil {
		t.Fatalf("line 2 is not valid JSON: %v", err)
	}
	if obj["role"] != "assistant" || obj["model"] != "test-model" {
		t.Errorf("line 2 = %v", obj)
	}
}

func TestMarkdownExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(fixtureConversation(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Session sess-1",
		"**Summary:** Fix the build",
		"**User:**",
		"**Assistant:**",
		"missing \\*\\*dependency\\*\\*",
		"> tool: `Bash`",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestJSONExportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(fixtureConversation(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var conv Conversation
	if err := json.Unmarshal(buf.Bytes(), &conv); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	if conv.Session.ID != "sess-1" || len(conv.Messages) != 2 {
		t.Errorf("round trip lost data: %+v", conv.Session)
	}
}
