// Package model holds the universal, format-agnostic shapes every provider
// adapter converts its native records into: Source, Project, Session and
// Message, plus the pagination metadata the loading pipeline relies on.
package model

import (
	"encoding/json"
	"time"
)

// HealthStatus describes the reachability of a source root.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
)

// MessageRole is the speaker of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleFunction  MessageRole = "function"
)

// MessageType distinguishes ordinary messages from provider-specific
// record kinds.
type MessageType string

const (
	TypeMessage   MessageType = "message"
	TypeSummary   MessageType = "summary"
	TypeBranch    MessageType = "branch"
	TypeSidechain MessageType = "sidechain"
	TypeError     MessageType = "error"
)

// ContentType classifies one part of a message body.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentCode       ContentType = "code"
	ContentImage      ContentType = "image"
	ContentFile       ContentType = "file"
	ContentToolUse    ContentType = "tool_use"
	ContentToolResult ContentType = "tool_result"
	ContentThinking   ContentType = "thinking"
)

// SourceStats are cached aggregate counts for a source, refreshed on scan.
type SourceStats struct {
	ProjectCount int   `json:"projectCount"`
	SessionCount int   `json:"sessionCount"`
	MessageCount int   `json:"messageCount"`
	TotalSize    int64 `json:"totalSize,omitempty"`
}

// Source is a user-registered root path bound to exactly one provider.
// Identity is ID, generated when the source is added; RootPath is unique
// among registered sources.
type Source struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	RootPath        string       `json:"rootPath"`
	ProviderID      string       `json:"providerId"`
	IsDefault       bool         `json:"isDefault"`
	IsAvailable     bool         `json:"isAvailable"`
	HealthStatus    HealthStatus `json:"healthStatus"`
	ValidationError string       `json:"validationError,omitempty"`
	Stats           SourceStats  `json:"stats"`
	AddedAt         time.Time    `json:"addedAt"`
	LastScanAt      *time.Time   `json:"lastScanAt,omitempty"`
}

// Project is one provider-native project unit in universal shape.
// A scan always produces a full replacement set for a source.
type Project struct {
	ID              string     `json:"id"`
	SourceID        string     `json:"sourceId"`
	ProviderID      string     `json:"providerId"`
	Name            string     `json:"name"`
	Path            string     `json:"path"`
	SessionCount    int        `json:"sessionCount"`
	TotalMessages   int        `json:"totalMessages"`
	FirstActivityAt *time.Time `json:"firstActivityAt,omitempty"`
	LastActivityAt  *time.Time `json:"lastActivityAt,omitempty"`
}

// SessionMetadata carries the provider-specific fields a session needs to
// be reloaded later: at minimum the path the adapter resolves it by.
type SessionMetadata struct {
	FilePath  string                 `json:"filePath"`
	Summary   string                 `json:"summary,omitempty"`
	Workspace string                 `json:"workspace,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// Session is a conversation in universal shape. ID is provider-assigned
// and stable across reloads; the pipeline uses it as a cache and
// pagination-continuity key.
type Session struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"projectId"`
	ProviderID     string          `json:"providerId"`
	MessageCount   int             `json:"messageCount"`
	FirstMessageAt time.Time       `json:"firstMessageAt"`
	LastMessageAt  time.Time       `json:"lastMessageAt"`
	ToolCallCount  int             `json:"toolCallCount"`
	ErrorCount     int             `json:"errorCount"`
	Metadata       SessionMetadata `json:"metadata"`
}

// TokenUsage is per-message token accounting where the provider exposes it.
type TokenUsage struct {
	InputTokens         int    `json:"inputTokens"`
	OutputTokens        int    `json:"outputTokens"`
	CacheCreationTokens int    `json:"cacheCreationTokens,omitempty"`
	CacheReadTokens     int    `json:"cacheReadTokens,omitempty"`
	ServiceTier         string `json:"serviceTier,omitempty"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// ToolCall is one tool invocation extracted from a message.
type ToolCall struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Input  map[string]interface{} `json:"input,omitempty"`
	Status string                 `json:"status,omitempty"`
}

// ContentPart is one typed part of a message body. Text carries the
// extracted plain text for text-like parts; Data preserves the raw
// provider payload for structured parts.
type ContentPart struct {
	Type ContentType     `json:"type"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is a single conversation record in universal shape. ID is unique
// within a session. ParentID, when set, references another message in the
// same session; consumers must treat cycles in that relation defensively.
type Message struct {
	ID           string                 `json:"id"`
	SessionID    string                 `json:"sessionId"`
	ParentID     string                 `json:"parentId,omitempty"`
	Role         MessageRole            `json:"role"`
	Type         MessageType            `json:"type"`
	Timestamp    time.Time              `json:"timestamp"`
	Content      []ContentPart          `json:"content"`
	Tokens       *TokenUsage            `json:"tokens,omitempty"`
	Model        string                 `json:"model,omitempty"`
	ToolCalls    []ToolCall             `json:"toolCalls,omitempty"`
	Sidechain    bool                   `json:"sidechain,omitempty"`
	ProjectPath  string                 `json:"projectPath,omitempty"`
	ProviderMeta map[string]interface{} `json:"providerMetadata,omitempty"`
}

// PlainText concatenates the text parts of the message body.
func (m Message) PlainText() string {
	var out string
	for _, part := range m.Content {
		if part.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += part.Text
	}
	return out
}

// MessagePage is one page of messages plus the data needed to fetch the
// next. NextOffset is provider-opaque but resumable for the same session.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	TotalCount int       `json:"totalCount"`
	HasMore    bool      `json:"hasMore"`
	NextOffset int       `json:"nextOffset"`
}

// Pagination is the pipeline-side cursor for the active session.
type Pagination struct {
	CurrentOffset int  `json:"currentOffset"`
	PageSize      int  `json:"pageSize"`
	TotalCount    int  `json:"totalCount"`
	HasMore       bool `json:"hasMore"`
}
