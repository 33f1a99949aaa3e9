package claude

import (
	"bufio"
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/apperr"
)

// rawEntry is one line of a Claude Code session JSONL file.
type rawEntry struct {
	Type          string          `json:"type"`
	UUID          string          `json:"uuid,omitempty"`
	ParentUUID    string          `json:"parentUuid,omitempty"`
	SessionID     string          `json:"sessionId,omitempty"`
	Timestamp     string          `json:"timestamp,omitempty"`
	IsSidechain   bool            `json:"isSidechain,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	Cwd           string          `json:"cwd,omitempty"`
	GitBranch     string          `json:"gitBranch,omitempty"`
	Message       *rawBody        `json:"message,omitempty"`
	ToolUseResult json.RawMessage `json:"toolUseResult,omitempty"`
}

// rawBody is the nested API-message payload of a log entry.
type rawBody struct {
	ID         string          `json:"id,omitempty"`
	Role       string          `json:"role,omitempty"`
	Model      string          `json:"model,omitempty"`
	StopReason string          `json:"stop_reason,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	Usage      *rawUsage       `json:"usage,omitempty"`
}

type rawUsage struct {
	InputTokens              int    `json:"input_tokens"`
	OutputTokens             int    `json:"output_tokens"`
	CacheCreationInputTokens int    `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int    `json:"cache_read_input_tokens,omitempty"`
	ServiceTier              string `json:"service_tier,omitempty"`
}

// valid reports whether the entry is a real log record. Lines missing both
// a session id and a timestamp are tool-internal noise and are skipped.
func (e *rawEntry) valid() bool {
	return e.SessionID != "" || e.Timestamp != ""
}

// sessionFile is everything one pass over a session file yields.
type sessionFile struct {
	entries   []rawEntry // summary records excluded
	summary   string     // first summary line, if any
	sessionID string     // first non-empty sessionId seen
	cwd       string
	gitBranch string
}

// Session files can contain megabyte-scale lines (tool results embed file
// contents), so the scanner buffer is raised well above the default.
const maxLineSize = 4 * 1024 * 1024

// readSessionFile parses a session JSONL file in one streaming pass.
// Malformed lines are logged and skipped rather than failing the file.
func (a *Adapter) readSessionFile(path string, excludeSidechain bool) (*sessionFile, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.CodePathNotFound, err, "session file %s", path)
		}
		if os.IsPermission(err) {
			return nil, apperr.Wrap(apperr.CodeAccessDenied, err, "session file %s", path)
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	out := &sessionFile{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry rawEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			a.logger.Debug("skipping malformed session line",
				zap.String("file", path),
				zap.Int("line", lineNum),
				zap.Error(err))
			continue
		}

		if entry.Type == "summary" {
			if out.summary == "" {
				out.summary = entry.Summary
			}
			continue
		}
		if !entry.valid() {
			continue
		}
		if excludeSidechain && entry.IsSidechain {
			continue
		}

		if out.sessionID == "" && entry.SessionID != "" {
			out.sessionID = entry.SessionID
		}
		if out.cwd == "" && entry.Cwd != "" {
			out.cwd = entry.Cwd
		}
		if out.gitBranch == "" && entry.GitBranch != "" {
			out.gitBranch = entry.GitBranch
		}
		out.entries = append(out.entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeCorruptData, err, "reading %s", path)
	}
	return out, nil
}
