package codex

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/model"
)

// rolloutNameRe matches rollout-YYYY-MM-DDThh-mm-ss-UUID.jsonl and
// captures the timestamp stamp and the uuid.
var rolloutNameRe = regexp.MustCompile(
	`^rollout-(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2})-([0-9a-fA-F-]+)\.jsonl$`)

// parseRolloutName splits a rollout file name into its stamp and uuid
// parts. ok is false for files that are not rollouts.
func parseRolloutName(name string) (stamp, uuid string, ok bool) {
	m := rolloutNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// stampToTime parses the dash-separated stamp a rollout name carries.
func stampToTime(stamp string) time.Time {
	t, err := time.Parse("2006-01-02T15-04-05", stamp)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// rawEvent is one line of a rollout file.
type rawEvent struct {
	ID        string      `json:"id,omitempty"`
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	Payload   *rawPayload `json:"payload,omitempty"`
	Internal  *struct {
		Session struct {
			ID string `json:"id,omitempty"`
		} `json:"session,omitempty"`
	} `json:"internal,omitempty"`
	EnvContext *struct {
		Cwd string `json:"cwd,omitempty"`
	} `json:"environment_context,omitempty"`
	ExecContext *struct {
		WorkingDirectory string `json:"working_directory,omitempty"`
	} `json:"execution_context,omitempty"`
}

type rawPayload struct {
	Role    string          `json:"role,omitempty"`
	Model   string          `json:"model,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// cwd returns the event's working directory: environment_context.cwd
// first, execution_context.working_directory second.
func (e *rawEvent) cwd() string {
	if e.EnvContext != nil && e.EnvContext.Cwd != "" {
		return e.EnvContext.Cwd
	}
	if e.ExecContext != nil && e.ExecContext.WorkingDirectory != "" {
		return e.ExecContext.WorkingDirectory
	}
	return ""
}

// rollout is one fully parsed rollout file.
type rollout struct {
	path      string
	stamp     string
	uuid      string
	sessionID string
	cwd       string
	events    []*rawEvent
}

const maxLineSize = 4 * 1024 * 1024

// readRollout streams one rollout file. Malformed lines are skipped, not
// fatal. The session id is the first internal.session.id seen, falling
// back to the filename uuid; the cwd is the first one any event carries.
func (a *Adapter) readRollout(path string) (*rollout, error) {
	stamp, uuid, ok := parseRolloutName(filepath.Base(path))
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidFormat, "not a rollout file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.CodePathNotFound, err, "rollout %s", path)
		}
		if os.IsPermission(err) {
			return nil, apperr.Wrap(apperr.CodeAccessDenied, err, "rollout %s", path)
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := &rollout{path: path, stamp: stamp, uuid: uuid, sessionID: uuid}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e rawEvent
		if err := json.Unmarshal(line, &e); err != nil {
			a.logger.Debug("skipping malformed rollout line",
				zap.String("file", path), zap.Int("line", lineNum), zap.Error(err))
			continue
		}

		if e.Internal != nil && e.Internal.Session.ID != "" && r.sessionID == r.uuid {
			r.sessionID = e.Internal.Session.ID
		}
		if r.cwd == "" {
			r.cwd = e.cwd()
		}
		r.events = append(r.events, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeParseError, err, "rollout %s", path)
	}

	return r, nil
}

// messages filters the rollout down to events that carry conversational
// content.
func (r *rollout) messages() []*rawEvent {
	msgs := make([]*rawEvent, 0, len(r.events))
	for _, e := range r.events {
		if e.Payload != nil && len(e.Payload.Content) > 0 {
			msgs = append(msgs, e)
		}
	}
	return msgs
}

// contentItem is one element of a payload content array.
type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// toUniversal converts one event into the universal message shape.
func (a *Adapter) toUniversal(e *rawEvent, seq int, sessionID string, includeMeta bool) model.Message {
	id := e.ID
	if id == "" {
		id = "codex-" + strconv.Itoa(seq)
	}

	msg := model.Message{
		ID:        id,
		SessionID: sessionID,
		Role:      determineRole(e),
		Type:      model.TypeMessage,
		Timestamp: parseTimestamp(e.Timestamp),
		Content:   convertContent(e.Payload),
	}
	if e.Payload != nil {
		msg.Model = e.Payload.Model
	}
	if includeMeta {
		msg.ProviderMeta = map[string]interface{}{"eventType": e.Type}
		if cwd := e.cwd(); cwd != "" {
			msg.ProviderMeta["cwd"] = cwd
		}
	}
	return msg
}

// determineRole prefers payload.role, then falls back to the event type.
func determineRole(e *rawEvent) model.MessageRole {
	if e.Payload != nil {
		switch e.Payload.Role {
		case "user":
			return model.RoleUser
		case "assistant":
			return model.RoleAssistant
		case "system":
			return model.RoleSystem
		}
	}
	switch e.Type {
	case "user_message", "user_input", "user":
		return model.RoleUser
	case "system_message", "system":
		return model.RoleSystem
	default:
		return model.RoleAssistant
	}
}

// convertContent handles both content shapes: an array of typed items and
// a bare string in older rollouts.
func convertContent(p *rawPayload) []model.ContentPart {
	if p == nil || len(p.Content) == 0 {
		return nil
	}

	var items []contentItem
	if err := json.Unmarshal(p.Content, &items); err == nil {
		parts := make([]model.ContentPart, 0, len(items))
		for _, item := range items {
			if item.Text == "" {
				continue
			}
			parts = append(parts, model.ContentPart{Type: model.ContentText, Text: item.Text})
		}
		return parts
	}

	var text string
	if err := json.Unmarshal(p.Content, &text); err == nil && text != "" {
		return []model.ContentPart{{Type: model.ContentText, Text: text}}
	}
	return nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
