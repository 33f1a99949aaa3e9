package claude

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensesh/sessionhub/internal/model"
)

// toUniversal converts one raw log entry into the universal message shape.
// Entries without a uuid get a generated one so ids stay unique within the
// session.
func (a *Adapter) toUniversal(e rawEntry, includeMeta bool) model.Message {
	id := e.UUID
	if id == "" {
		id = uuid.NewString()
	}

	msg := model.Message{
		ID:        id,
		SessionID: e.SessionID,
		ParentID:  e.ParentUUID,
		Role:      roleOf(e),
		Type:      typeOf(e),
		Timestamp: parseTimestamp(e.Timestamp),
		Sidechain: e.IsSidechain,
	}

	if e.Message != nil {
		msg.Model = e.Message.Model
		msg.Content, msg.ToolCalls = convertContent(e.Message.Content)
	}
	msg.Tokens = extractUsage(e)

	if len(e.ToolUseResult) > 0 {
		msg.Content = append(msg.Content, model.ContentPart{
			Type: model.ContentToolResult,
			Data: e.ToolUseResult,
		})
	}

	if includeMeta {
		meta := map[string]interface{}{
			"originalType": e.Type,
		}
		if e.ParentUUID != "" {
			meta["parentUuid"] = e.ParentUUID
		}
		if e.IsSidechain {
			meta["isSidechain"] = true
		}
		if e.Message != nil && e.Message.ID != "" {
			meta["messageId"] = e.Message.ID
		}
		if e.Message != nil && e.Message.StopReason != "" {
			meta["stopReason"] = e.Message.StopReason
		}
		if e.GitBranch != "" {
			meta["gitBranch"] = e.GitBranch
		}
		msg.ProviderMeta = meta
	}

	return msg
}

// extractUsage pulls token usage from wherever the entry carries it: the
// message's usage block first, then a usage object nested inside the
// content, then the tool result's usage or bare totalTokens count. Older
// log generations only have the fallbacks.
func extractUsage(e rawEntry) *model.TokenUsage {
	if e.Message != nil && e.Message.Usage != nil {
		u := e.Message.Usage
		return &model.TokenUsage{
			InputTokens:         u.InputTokens,
			OutputTokens:        u.OutputTokens,
			CacheCreationTokens: u.CacheCreationInputTokens,
			CacheReadTokens:     u.CacheReadInputTokens,
			ServiceTier:         u.ServiceTier,
		}
	}

	if e.Message != nil && len(e.Message.Content) > 0 {
		var nested struct {
			Usage *rawUsage `json:"usage"`
		}
		if err := json.Unmarshal(e.Message.Content, &nested); err == nil && nested.Usage != nil {
			return &model.TokenUsage{
				InputTokens:         nested.Usage.InputTokens,
				OutputTokens:        nested.Usage.OutputTokens,
				CacheCreationTokens: nested.Usage.CacheCreationInputTokens,
				CacheReadTokens:     nested.Usage.CacheReadInputTokens,
				ServiceTier:         nested.Usage.ServiceTier,
			}
		}
	}

	if len(e.ToolUseResult) > 0 {
		var result struct {
			Usage       *rawUsage `json:"usage"`
			TotalTokens int       `json:"totalTokens"`
		}
		if err := json.Unmarshal(e.ToolUseResult, &result); err == nil {
			if result.Usage != nil {
				return &model.TokenUsage{
					InputTokens:         result.Usage.InputTokens,
					OutputTokens:        result.Usage.OutputTokens,
					CacheCreationTokens: result.Usage.CacheCreationInputTokens,
					CacheReadTokens:     result.Usage.CacheReadInputTokens,
				}
			}
			if result.TotalTokens > 0 {
				if e.Type == "assistant" {
					return &model.TokenUsage{OutputTokens: result.TotalTokens}
				}
				return &model.TokenUsage{InputTokens: result.TotalTokens}
			}
		}
	}

	return nil
}

func roleOf(e rawEntry) model.MessageRole {
	role := ""
	if e.Message != nil {
		role = e.Message.Role
	}
	switch role {
	case "user":
		return model.RoleUser
	case "assistant":
		return model.RoleAssistant
	case "system":
		return model.RoleSystem
	case "function":
		return model.RoleFunction
	}
	switch e.Type {
	case "user":
		return model.RoleUser
	case "system":
		return model.RoleSystem
	}
	return model.RoleAssistant
}

func typeOf(e rawEntry) model.MessageType {
	if e.IsSidechain {
		return model.TypeSidechain
	}
	switch e.Type {
	case "summary":
		return model.TypeSummary
	case "branch":
		return model.TypeBranch
	case "error":
		return model.TypeError
	}
	return model.TypeMessage
}

// contentItem is one element of the structured content array.
type contentItem struct {
	Type     string                 `json:"type"`
	Text     string                 `json:"text,omitempty"`
	Thinking string                 `json:"thinking,omitempty"`
	ID       string                 `json:"id,omitempty"`
	Name     string                 `json:"name,omitempty"`
	Input    map[string]interface{} `json:"input,omitempty"`
	IsError  bool                   `json:"is_error,omitempty"`
}

// convertContent maps the raw content payload (string or structured array)
// to universal parts, extracting tool calls from tool_use items. Tool
// calls sharing an id are collapsed to one.
func convertContent(raw json.RawMessage) ([]model.ContentPart, []model.ToolCall) {
	if len(raw) == 0 {
		return nil, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []model.ContentPart{{Type: model.ContentText, Text: text}}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		// Unknown shape: preserve the raw payload.
		return []model.ContentPart{{Type: model.ContentText, Data: raw}}, nil
	}

	var parts []model.ContentPart
	var calls []model.ToolCall
	seen := make(map[string]bool)

	for _, rawItem := range items {
		var item contentItem
		if err := json.Unmarshal(rawItem, &item); err != nil {
			continue
		}

		switch item.Type {
		case "text":
			parts = append(parts, model.ContentPart{Type: model.ContentText, Text: item.Text})
		case "thinking":
			parts = append(parts, model.ContentPart{Type: model.ContentThinking, Text: item.Thinking, Data: rawItem})
		case "tool_use":
			parts = append(parts, model.ContentPart{Type: model.ContentToolUse, Data: rawItem})
			if item.ID != "" && !seen[item.ID] {
				seen[item.ID] = true
				calls = append(calls, model.ToolCall{ID: item.ID, Name: item.Name, Input: item.Input})
			}
		case "tool_result":
			parts = append(parts, model.ContentPart{Type: model.ContentToolResult, Data: rawItem})
		case "image":
			parts = append(parts, model.ContentPart{Type: model.ContentImage, Data: rawItem})
		default:
			parts = append(parts, model.ContentPart{Type: model.ContentText, Data: rawItem})
		}
	}

	return parts, calls
}

// entryHasError reports whether the entry carries a failed tool result.
func entryHasError(e rawEntry) bool {
	if len(e.ToolUseResult) > 0 {
		var res struct {
			Stderr  string `json:"stderr,omitempty"`
			IsError bool   `json:"is_error,omitempty"`
		}
		if json.Unmarshal(e.ToolUseResult, &res) == nil {
			if res.IsError || res.Stderr != "" {
				return true
			}
		}
	}

	if e.Message == nil || len(e.Message.Content) == 0 {
		return false
	}
	var items []contentItem
	if json.Unmarshal(e.Message.Content, &items) != nil {
		return false
	}
	for _, item := range items {
		if item.Type == "tool_result" && item.IsError {
			return true
		}
	}
	return false
}

// jsonUnmarshalText extracts string-shaped content, reporting whether the
// payload was a plain non-empty string.
func jsonUnmarshalText(raw json.RawMessage, out *string) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil && *out != ""
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Time{}
}

// decodeProjectName recovers a readable project name from the dashed
// directory encoding, e.g. "-home-user-myapp" -> "myapp".
func decodeProjectName(dir string) string {
	if !strings.HasPrefix(dir, "-") {
		return dir
	}
	parts := strings.SplitN(dir, "-", 4)
	if len(parts) == 4 {
		return parts[3]
	}
	return dir
}

// encodeProjectDir maps an absolute project path to the dashed directory
// name Claude Code uses under projects/.
func encodeProjectDir(projectPath string) string {
	return strings.ReplaceAll(projectPath, "/", "-")
}

// estimateMessageCount approximates message count from file size for fast
// project scans: roughly one message per KB, at least one per file.
func estimateMessageCount(size int64) int {
	n := int((size + 999) / 1000)
	if n < 1 {
		n = 1
	}
	return n
}
