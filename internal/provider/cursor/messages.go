package cursor

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

// Bubble type codes as stored in cursorDiskKV.
const (
	bubbleTypeUser      = 1
	bubbleTypeAssistant = 2
)

// orderBubbles returns the composer's bubbles oldest first. The composer's
// conversation header list is authoritative; bubbles missing from it are
// appended in timestamp order. Empty bubbles are dropped.
func orderBubbles(c *rawComposer, bubbles map[string]*rawBubble) []*rawBubble {
	seen := make(map[string]bool, len(c.Headers))
	ordered := make([]*rawBubble, 0, len(bubbles))
	for _, h := range c.Headers {
		b, ok := bubbles[h.BubbleID]
		if !ok || seen[h.BubbleID] {
			continue
		}
		seen[h.BubbleID] = true
		if bubbleEmpty(b) {
			continue
		}
		ordered = append(ordered, b)
	}

	var orphans []*rawBubble
	for id, b := range bubbles {
		if seen[id] || bubbleEmpty(b) {
			continue
		}
		orphans = append(orphans, b)
	}
	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].Timestamp != orphans[j].Timestamp {
			return orphans[i].Timestamp < orphans[j].Timestamp
		}
		return orphans[i].BubbleID < orphans[j].BubbleID
	})
	return append(ordered, orphans...)
}

func bubbleEmpty(b *rawBubble) bool {
	return b.Text == "" && len(b.CodeBlocks) == 0
}

// toUniversal converts one bubble into the universal message shape.
func (a *Adapter) toUniversal(b *rawBubble, sessionID string, includeMeta bool) model.Message {
	var parts []model.ContentPart
	if b.Text != "" {
		parts = append(parts, model.ContentPart{Type: model.ContentText, Text: b.Text})
	}
	for _, cb := range b.CodeBlocks {
		parts = append(parts, model.ContentPart{Type: model.ContentCode, Text: cb.Content})
	}

	role := model.RoleAssistant
	if b.Type == bubbleTypeUser {
		role = model.RoleUser
	}

	msg := model.Message{
		ID:        b.BubbleID,
		SessionID: sessionID,
		Role:      role,
		Type:      model.TypeMessage,
		Timestamp: msToTime(b.Timestamp),
		Content:   parts,
	}
	if includeMeta {
		msg.ProviderMeta = map[string]interface{}{
			"composerId": b.ComposerID,
			"bubbleType": b.Type,
		}
	}
	return msg
}

// LoadMessages returns one page of a composer's bubbles. The session path
// encodes the database location and the composer id; the offset counts
// bubbles from the newest end under descending order.
func (a *Adapter) LoadMessages(ctx context.Context, sessionPath, sessionID string, opts provider.LoadOptions) (*model.MessagePage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dbPath, composerID, err := decodeSessionPath(sessionPath)
	if err != nil {
		return nil, err
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	composer, err := fetchComposer(db, composerID)
	if err != nil {
		return nil, err
	}
	bubbles, err := a.loadBubbles(db, composerID)
	if err != nil {
		return nil, err
	}
	ordered := orderBubbles(composer, bubbles)

	total := len(ordered)
	start, end := provider.PageWindow(total, opts)

	if sessionID == "" {
		sessionID = composerID
	}
	msgs := make([]model.Message, 0, end-start)
	for _, b := range ordered[start:end] {
		msgs = append(msgs, a.toUniversal(b, sessionID, opts.IncludeMetadata))
	}

	page := &model.MessagePage{
		Messages:   msgs,
		TotalCount: total,
		NextOffset: opts.Offset + len(msgs),
	}
	if opts.SortOrder == provider.SortAscending {
		page.HasMore = end < total
	} else {
		page.HasMore = start > 0
	}
	return page, nil
}

// SearchMessages scans every composer in each root's global store for a
// case-insensitive substring match.
func (a *Adapter) SearchMessages(ctx context.Context, roots []string, query string, filters provider.SearchFilters) ([]model.Message, error) {
	needle := strings.ToLower(query)
	var hits []model.Message

	for _, root := range roots {
		db, err := openDatabase(globalDBPath(root))
		if err != nil {
			a.logger.Debug("search skipping root", zap.String("root", root), zap.Error(err))
			continue
		}

		composers, err := a.loadComposers(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		contexts, err := a.loadContexts(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		for _, c := range composers {
			if err := ctx.Err(); err != nil {
				_ = db.Close()
				return nil, err
			}
			folder := associatedFolder(contexts[c.ComposerID])
			if filters.ProjectPath != "" && filters.ProjectPath != folder {
				continue
			}

			bubbles, err := a.loadBubbles(db, c.ComposerID)
			if err != nil {
				continue
			}
			for _, b := range orderBubbles(c, bubbles) {
				msg := a.toUniversal(b, c.ComposerID, false)
				if !matchesFilters(msg, filters) {
					continue
				}
				if !strings.Contains(strings.ToLower(msg.PlainText()), needle) {
					continue
				}
				msg.ProjectPath = folder
				hits = append(hits, msg)
				if filters.MaxResults > 0 && len(hits) >= filters.MaxResults {
					_ = db.Close()
					return hits, nil
				}
			}
		}
		_ = db.Close()
	}

	return hits, nil
}

func matchesFilters(msg model.Message, filters provider.SearchFilters) bool {
	if len(filters.Roles) > 0 {
		ok := false
		for _, r := range filters.Roles {
			if msg.Role == r {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if filters.After != nil && msg.Timestamp.Before(*filters.After) {
		return false
	}
	if filters.Before != nil && msg.Timestamp.After(*filters.Before) {
		return false
	}
	return true
}
