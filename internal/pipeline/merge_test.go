package pipeline_test

import (
	"fmt"
	"testing"

	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/pipeline"
)

func msgs(ids ...string) []model.Message {
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Message{
			ID:      id,
			Content: []model.ContentPart{{Type: model.ContentText, Text: "body of " + id}},
		})
	}
	return out
}

func ids(in []model.Message) []string {
	out := make([]string, 0, len(in))
	for _, m := range in {
		out = append(out, m.ID)
	}
	return out
}

func TestMergeMessagesDedup(t *testing.T) {
	existing := msgs("msg-100", "msg-101", "msg-102")
	page := msgs("msg-97", "msg-98", "msg-99", "msg-100", "msg-101")

	merged := pipeline.MergeMessages(existing, page)

	want := []string{"msg-97", "msg-98", "msg-99", "msg-100", "msg-101", "msg-102"}
	got := ids(merged)
	if len(got) != len(want) {
		t.Fatalf("merged length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("merged order = %v, want %v", got, want)
		}
	}

	seen := make(map[string]bool)
	for _, id := range got {
		if seen[id] {
			t.Fatalf("duplicate id %s after merge", id)
		}
		seen[id] = true
	}
}

func TestMergeMessagesEmptyPage(t *testing.T) {
	existing := msgs("a", "b", "c")
	merged := pipeline.MergeMessages(existing, nil)
	if len(merged) != 3 {
		t.Fatalf("empty merge changed length: %v", ids(merged))
	}
	for i, id := range []string{"a", "b", "c"} {
		if merged[i].ID != id {
			t.Fatalf("empty merge reordered: %v", ids(merged))
		}
	}
}

func TestMergeMessagesExistingCopyWins(t *testing.T) {
	existing := []model.Message{{
		ID:      "msg-1",
		Content: []model.ContentPart{{Type: model.ContentText, Text: "original"}},
	}}
	page := []model.Message{{
		ID:      "msg-1",
		Content: []model.ContentPart{{Type: model.ContentText, Text: "rewritten"}},
	}}

	merged := pipeline.MergeMessages(existing, page)
	if len(merged) != 1 {
		t.Fatalf("expected 1 message, got %d", len(merged))
	}
	if merged[0].PlainText() != "original" {
		t.Errorf("existing copy must win, got %q", merged[0].PlainText())
	}
}

func TestMergeMessagesDoesNotMutateExisting(t *testing.T) {
	existing := msgs("x", "y")
	snapshot := ids(existing)

	_ = pipeline.MergeMessages(existing, msgs("w"))

	for i, id := range snapshot {
		if existing[i].ID != id {
			t.Fatalf("existing slice mutated: %v", ids(existing))
		}
	}
}

func TestBuildMessageTree(t *testing.T) {
	flat := []model.Message{
		{ID: "root"},
		{ID: "child-1", ParentID: "root"},
		{ID: "child-2", ParentID: "root"},
		{ID: "grandchild", ParentID: "child-1"},
		{ID: "orphan", ParentID: "missing"},
	}

	roots := pipeline.BuildMessageTree(flat, nil)
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots (root + orphan), got %d", len(roots))
	}

	var rootNode *pipeline.MessageNode
	for _, r := range roots {
		if r.Message.ID == "root" {
			rootNode = r
		}
	}
	if rootNode == nil {
		t.Fatal("missing root node")
	}
	if len(rootNode.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(rootNode.Children))
	}
}

func TestBuildMessageTreeCycleSafety(t *testing.T) {
	flat := []model.Message{
		{ID: "root"},
		{ID: "a", ParentID: "root"},
		{ID: "b", ParentID: "a"},
		// Self-parented record, the smallest possible cycle.
		{ID: "loop", ParentID: "loop"},
	}

	done := make(chan []*pipeline.MessageNode, 1)
	go func() { done <- pipeline.BuildMessageTree(flat, nil) }()
	roots := <-done

	count := 0
	var walk func(n *pipeline.MessageNode)
	walk = func(n *pipeline.MessageNode) {
		count++
		if count > len(flat) {
			t.Fatal("tree walk exceeded input size, cycle not cut")
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	// The self-cycle branch is omitted entirely.
	if count != 3 {
		t.Errorf("tree contains %d nodes, want 3 (cyclic branch omitted)", count)
	}
}

func TestMergeMessagesLargeWalk(t *testing.T) {
	// Exhaustion property: merging pages until has_more=false reaches the
	// reported total exactly, even with overlapping page boundaries.
	var existing []model.Message
	total := 300
	pageSize := 20

	for offset := 0; offset < total; offset += pageSize - 5 { // overlap by 5
		var page []model.Message
		for i := 0; i < pageSize && offset+i < total; i++ {
			page = append(page, model.Message{ID: fmt.Sprintf("m-%03d", offset+i)})
		}
		existing = pipeline.MergeMessages(existing, page)
	}

	if len(existing) != total {
		t.Fatalf("merged %d messages, want %d", len(existing), total)
	}
}
