package claude

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/model"
)

// CreateProject creates the encoded project directory for projectPath
// under <root>/projects and returns the universal project record.
func (a *Adapter) CreateProject(ctx context.Context, root, projectPath string) (*model.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := encodeProjectDir(projectPath)
	full := filepath.Join(root, "projects", dir)
	if err := os.MkdirAll(full, 0755); err != nil {
		if os.IsPermission(err) {
			return nil, apperr.Wrap(apperr.CodeAccessDenied, err, "creating %s", full)
		}
		return nil, err
	}

	return &model.Project{
		ID:         dir,
		ProviderID: ProviderID,
		Name:       filepath.Base(projectPath),
		Path:       full,
	}, nil
}

// CreateSession creates a new session JSONL file in the project dir. A
// non-empty summary is written as the leading summary record.
func (a *Adapter) CreateSession(ctx context.Context, projectPath, summary string) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if info, err := os.Stat(projectPath); err != nil || !info.IsDir() {
		return nil, apperr.New(apperr.CodePathNotFound, "project dir %s", projectPath)
	}

	sessionID := uuid.NewString()
	path := filepath.Join(projectPath, sessionID+".jsonl")

	var data []byte
	if summary != "" {
		line, err := json.Marshal(map[string]interface{}{
			"type":    "summary",
			"summary": summary,
			"uuid":    uuid.NewString(),
		})
		if err != nil {
			return nil, err
		}
		data = append(line, '\n')
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &model.Session{
		ID:             sessionID,
		ProviderID:     ProviderID,
		FirstMessageAt: now,
		LastMessageAt:  now,
		Metadata: model.SessionMetadata{
			FilePath: path,
			Summary:  summary,
		},
	}, nil
}

// AppendMessages appends universal messages to an existing session file
// as native JSONL records.
func (a *Adapter) AppendMessages(ctx context.Context, sessionPath string, msgs []model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(sessionPath, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.Wrap(apperr.CodePathNotFound, err, "session file %s", sessionPath)
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sessionID := sessionIDFromPath(sessionPath)
	for _, msg := range msgs {
		line, err := json.Marshal(toRawEntry(msg, sessionID))
		if err != nil {
			return err
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func sessionIDFromPath(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// toRawEntry maps a universal message back to the native log-entry shape.
func toRawEntry(msg model.Message, sessionID string) rawEntry {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	if msg.SessionID != "" {
		sessionID = msg.SessionID
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	entry := rawEntry{
		Type:        string(msg.Role),
		UUID:        id,
		ParentUUID:  msg.ParentID,
		SessionID:   sessionID,
		Timestamp:   ts.UTC().Format(time.RFC3339),
		IsSidechain: msg.Sidechain,
	}

	body := &rawBody{Role: string(msg.Role), Model: msg.Model}
	if content, err := json.Marshal(msg.PlainText()); err == nil {
		body.Content = content
	}
	if msg.Tokens != nil {
		body.Usage = &rawUsage{
			InputTokens:              msg.Tokens.InputTokens,
			OutputTokens:             msg.Tokens.OutputTokens,
			CacheCreationInputTokens: msg.Tokens.CacheCreationTokens,
			CacheReadInputTokens:     msg.Tokens.CacheReadTokens,
			ServiceTier:              msg.Tokens.ServiceTier,
		}
	}
	entry.Message = body
	return entry
}
