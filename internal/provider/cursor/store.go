package cursor

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/opensesh/sessionhub/internal/apperr"
)

// openDatabase opens a Cursor state database in read-only mode so a
// running Cursor instance is never disturbed.
func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.CodeProviderUnavailable, err, "database ping failed for %s", path)
	}
	return db, nil
}

type keyValuePair struct {
	Key   string
	Value string
}

// queryDiskKV reads key/value rows from cursorDiskKV matching a LIKE
// pattern, skipping NULL values.
func queryDiskKV(db *sql.DB, pattern string) ([]keyValuePair, error) {
	rows, err := db.Query("SELECT key, value FROM cursorDiskKV WHERE key LIKE ? AND value IS NOT NULL", pattern)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pairs []keyValuePair
	for rows.Next() {
		var pair keyValuePair
		var value sql.NullString
		if err := rows.Scan(&pair.Key, &value); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if value.Valid {
			pair.Value = value.String
			pairs = append(pairs, pair)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return pairs, nil
}

// conversationHeader is one entry of a composer's ordered bubble list.
type conversationHeader struct {
	BubbleID string `json:"bubbleId"`
	Type     int    `json:"type"` // 1=user, 2=assistant
}

// rawComposer is a session record from the store.
type rawComposer struct {
	ComposerID    string               `json:"composerId"`
	Name          string               `json:"name,omitempty"`
	Headers       []conversationHeader `json:"fullConversationHeadersOnly,omitempty"`
	CreatedAt     int64                `json:"createdAt,omitempty"`
	LastUpdatedAt int64                `json:"lastUpdatedAt,omitempty"`
}

// rawBubble is one message record from the store.
type rawBubble struct {
	BubbleID   string     `json:"bubbleId"`
	ComposerID string     `json:"-"`
	Text       string     `json:"text,omitempty"`
	RichText   string     `json:"richText,omitempty"`
	CodeBlocks []struct { // inline code attachments
		Language string `json:"language,omitempty"`
		Content  string `json:"content"`
	} `json:"codeBlocks,omitempty"`
	Timestamp int64 `json:"timestamp,omitempty"`
	Type      int   `json:"type"` // 1=user, 2=assistant
}

// rawContext is a message-request context record tying a composer to
// workspace project folders.
type rawContext struct {
	ComposerID     string   `json:"-"`
	ProjectLayouts []string `json:"projectLayouts,omitempty"`
}

// parseComposer parses a composerData:<composerId> row.
func parseComposer(key, value string) (*rawComposer, error) {
	id, ok := strings.CutPrefix(key, "composerData:")
	if !ok || id == "" {
		return nil, apperr.New(apperr.CodeParseError, "invalid composerData key %q", key)
	}
	var c rawComposer
	if err := json.Unmarshal([]byte(value), &c); err != nil {
		return nil, apperr.Wrap(apperr.CodeParseError, err, "composer %s", id)
	}
	c.ComposerID = id
	return &c, nil
}

// parseBubble parses a bubbleId:<composerId>:<bubbleId> row.
func parseBubble(key, value string) (*rawBubble, error) {
	rest, ok := strings.CutPrefix(key, "bubbleId:")
	if !ok {
		return nil, apperr.New(apperr.CodeParseError, "invalid bubbleId key %q", key)
	}
	composerID, bubbleID, ok := strings.Cut(rest, ":")
	if !ok || composerID == "" || bubbleID == "" {
		return nil, apperr.New(apperr.CodeParseError, "invalid bubbleId key %q", key)
	}
	var b rawBubble
	if err := json.Unmarshal([]byte(value), &b); err != nil {
		return nil, apperr.Wrap(apperr.CodeParseError, err, "bubble %s", bubbleID)
	}
	b.ComposerID = composerID
	b.BubbleID = bubbleID
	return &b, nil
}

// parseContext parses a messageRequestContext:<composerId>:<contextId> row.
func parseContext(key, value string) (*rawContext, error) {
	rest, ok := strings.CutPrefix(key, "messageRequestContext:")
	if !ok {
		return nil, apperr.New(apperr.CodeParseError, "invalid messageRequestContext key %q", key)
	}
	composerID, _, ok := strings.Cut(rest, ":")
	if !ok || composerID == "" {
		return nil, apperr.New(apperr.CodeParseError, "invalid messageRequestContext key %q", key)
	}
	var c rawContext
	if err := json.Unmarshal([]byte(value), &c); err != nil {
		return nil, apperr.Wrap(apperr.CodeParseError, err, "context for %s", composerID)
	}
	c.ComposerID = composerID
	return &c, nil
}

// loadComposers reads every composer in the store. Unparseable rows are
// skipped, not fatal.
func (a *Adapter) loadComposers(db *sql.DB) ([]*rawComposer, error) {
	pairs, err := queryDiskKV(db, "composerData:%")
	if err != nil {
		return nil, fmt.Errorf("failed to query composers: %w", err)
	}
	composers := make([]*rawComposer, 0, len(pairs))
	for _, pair := range pairs {
		c, err := parseComposer(pair.Key, pair.Value)
		if err != nil {
			a.logger.Debug("skipping composer row", zap.Error(err))
			continue
		}
		composers = append(composers, c)
	}
	return composers, nil
}

// loadBubbles reads the bubbles of one composer, keyed by bubble id.
func (a *Adapter) loadBubbles(db *sql.DB, composerID string) (map[string]*rawBubble, error) {
	pairs, err := queryDiskKV(db, "bubbleId:"+composerID+":%")
	if err != nil {
		return nil, fmt.Errorf("failed to query bubbles: %w", err)
	}
	bubbles := make(map[string]*rawBubble, len(pairs))
	for _, pair := range pairs {
		b, err := parseBubble(pair.Key, pair.Value)
		if err != nil {
			a.logger.Debug("skipping bubble row", zap.Error(err))
			continue
		}
		bubbles[b.BubbleID] = b
	}
	return bubbles, nil
}

// loadContexts reads all message-request contexts grouped by composer.
func (a *Adapter) loadContexts(db *sql.DB) (map[string][]*rawContext, error) {
	pairs, err := queryDiskKV(db, "messageRequestContext:%")
	if err != nil {
		return nil, fmt.Errorf("failed to query contexts: %w", err)
	}
	contexts := make(map[string][]*rawContext)
	for _, pair := range pairs {
		c, err := parseContext(pair.Key, pair.Value)
		if err != nil {
			continue
		}
		contexts[c.ComposerID] = append(contexts[c.ComposerID], c)
	}
	return contexts, nil
}
