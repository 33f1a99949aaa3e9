package pipeline

import (
	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/model"
)

// MergeMessages merges one incoming page into the existing in-memory
// list: incoming messages whose id already exists are dropped (the
// existing copy wins regardless of content), and the survivors are
// prepended, since pages walk backward in time and older messages sit
// before newer ones. The existing slice is never mutated.
func MergeMessages(existing, page []model.Message) []model.Message {
	if len(page) == 0 {
		return existing
	}

	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}

	fresh := make([]model.Message, 0, len(page))
	for _, m := range page {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return existing
	}

	return append(fresh, existing...)
}

// MessageNode is one node of the reconstructed conversation tree.
type MessageNode struct {
	Message  model.Message
	Children []*MessageNode
}

// BuildMessageTree arranges a flat message list into parent/child trees.
// Roots are messages without a parent id; a message whose parent id is
// unknown is kept as a root rather than dropped. Branches containing a
// parent/child cycle are cut at the repeated id and logged, never
// recursed into.
func BuildMessageTree(msgs []model.Message, logger *zap.Logger) []*MessageNode {
	if logger == nil {
		logger = zap.NewNop()
	}

	byID := make(map[string]model.Message, len(msgs))
	children := make(map[string][]string)
	for _, m := range msgs {
		byID[m.ID] = m
	}
	var rootIDs []string
	for _, m := range msgs {
		if m.ParentID == "" {
			rootIDs = append(rootIDs, m.ID)
			continue
		}
		if _, ok := byID[m.ParentID]; !ok {
			rootIDs = append(rootIDs, m.ID)
			continue
		}
		children[m.ParentID] = append(children[m.ParentID], m.ID)
	}

	var build func(id string, path map[string]bool) *MessageNode
	build = func(id string, path map[string]bool) *MessageNode {
		node := &MessageNode{Message: byID[id]}
		path[id] = true
		for _, childID := range children[id] {
			if path[childID] {
				logger.Warn("message tree contains a cycle, cutting branch",
					zap.String("message", childID))
				continue
			}
			node.Children = append(node.Children, build(childID, path))
		}
		delete(path, id)
		return node
	}

	roots := make([]*MessageNode, 0, len(rootIDs))
	for _, id := range rootIDs {
		roots = append(roots, build(id, make(map[string]bool)))
	}
	return roots
}
