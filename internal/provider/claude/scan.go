package claude

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

// ScanProjects enumerates the project directories under <root>/projects.
// Message counts are estimated from file sizes so the scan stays cheap on
// large histories; exact counts come from LoadSessions.
func (a *Adapter) ScanProjects(ctx context.Context, root, sourceID string) ([]model.Project, error) {
	projectsDir := filepath.Join(root, "projects")
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.CodePathNotFound, err, "projects dir %s", projectsDir)
		}
		if os.IsPermission(err) {
			return nil, apperr.Wrap(apperr.CodeAccessDenied, err, "projects dir %s", projectsDir)
		}
		return nil, err
	}

	var projects []model.Project
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}

		dir := entry.Name()
		projectPath := filepath.Join(projectsDir, dir)

		var sessionCount, messageCount int
		var first, last time.Time
		for _, f := range sessionFiles(projectPath, false) {
			sessionCount++
			info, err := os.Stat(f)
			if err != nil {
				continue
			}
			messageCount += estimateMessageCount(info.Size())
			mod := info.ModTime()
			if first.IsZero() || mod.Before(first) {
				first = mod
			}
			if mod.After(last) {
				last = mod
			}
		}

		p := model.Project{
			ID:            dir,
			SourceID:      sourceID,
			ProviderID:    ProviderID,
			Name:          decodeProjectName(dir),
			Path:          projectPath,
			SessionCount:  sessionCount,
			TotalMessages: messageCount,
		}
		if !first.IsZero() {
			p.FirstActivityAt = &first
		}
		if !last.IsZero() {
			p.LastActivityAt = &last
		}
		projects = append(projects, p)
	}

	return projects, nil
}

// LoadSessions parses every session file of one project. Session ids are
// the JSONL file name stems, which stay stable across reloads.
func (a *Adapter) LoadSessions(ctx context.Context, projectPath, projectID string, excludeSidechain bool) ([]model.Session, error) {
	if _, err := os.Stat(projectPath); err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.CodePathNotFound, err, "project %s", projectPath)
		}
		return nil, err
	}

	var sessions []model.Session
	for _, path := range sessionFiles(projectPath, excludeSidechain) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sf, err := a.readSessionFile(path, excludeSidechain)
		if err != nil {
			a.logger.Warn("skipping unreadable session file",
				zap.String("file", path), zap.Error(err))
			continue
		}
		if len(sf.entries) == 0 {
			continue
		}

		sessions = append(sessions, a.buildSession(path, projectID, sf))
	}

	return sessions, nil
}

func (a *Adapter) buildSession(path, projectID string, sf *sessionFile) model.Session {
	var toolCalls, errCount int
	var first, last time.Time
	var firstUserText string

	for _, e := range sf.entries {
		ts := parseTimestamp(e.Timestamp)
		if !ts.IsZero() {
			if first.IsZero() || ts.Before(first) {
				first = ts
			}
			if ts.After(last) {
				last = ts
			}
		}

		if e.Message != nil {
			_, calls := convertContent(e.Message.Content)
			toolCalls += len(calls)
		}
		if entryHasError(e) {
			errCount++
		}
		if firstUserText == "" && e.Type == "user" && e.Message != nil {
			var text string
			if jsonUnmarshalText(e.Message.Content, &text) {
				firstUserText = text
			}
		}
	}

	summary := sf.summary
	if summary == "" && firstUserText != "" {
		summary = truncate(firstUserText, 80)
	}

	return model.Session{
		ID:             strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		ProjectID:      projectID,
		ProviderID:     ProviderID,
		MessageCount:   len(sf.entries),
		FirstMessageAt: first,
		LastMessageAt:  last,
		ToolCallCount:  toolCalls,
		ErrorCount:     errCount,
		Metadata: model.SessionMetadata{
			FilePath: path,
			Summary:  summary,
			Extra:    sessionExtra(sf),
		},
	}
}

// LoadMessages returns one page of a session. The offset counts filtered
// records from the newest end under descending order, or from the oldest
// end under ascending order; either way NextOffset resumes the walk.
func (a *Adapter) LoadMessages(ctx context.Context, sessionPath, sessionID string, opts provider.LoadOptions) (*model.MessagePage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sf, err := a.readSessionFile(sessionPath, opts.ExcludeSidechain)
	if err != nil {
		return nil, err
	}

	total := len(sf.entries)
	start, end := provider.PageWindow(total, opts)

	msgs := make([]model.Message, 0, end-start)
	for _, e := range sf.entries[start:end] {
		msg := a.toUniversal(e, opts.IncludeMetadata)
		if msg.SessionID == "" {
			msg.SessionID = sessionID
		}
		msgs = append(msgs, msg)
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

// SearchMessages scans every session file under each root's projects dir
// for a case-insensitive substring match.
func (a *Adapter) SearchMessages(ctx context.Context, roots []string, query string, filters provider.SearchFilters) ([]model.Message, error) {
	needle := strings.ToLower(query)
	var hits []model.Message

	for _, root := range roots {
		projectsDir := filepath.Join(root, "projects")
		if _, err := os.Stat(projectsDir); err != nil {
			continue
		}

		err := filepath.WalkDir(projectsDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if d.IsDir() || !strings.HasSuffix(path, ".jsonl") {
				return nil
			}
			projectPath := filepath.Dir(path)
			if filters.ProjectPath != "" && filters.ProjectPath != projectPath {
				return nil
			}

			sf, rerr := a.readSessionFile(path, true)
			if rerr != nil {
				a.logger.Debug("search skipping file", zap.String("file", path), zap.Error(rerr))
				return nil
			}

			for _, e := range sf.entries {
				if e.Type != "user" && e.Type != "assistant" {
					continue
				}
				msg := a.toUniversal(e, false)
				if !matchesFilters(msg, filters) {
					continue
				}
				if !strings.Contains(strings.ToLower(msg.PlainText()), needle) {
					continue
				}
				msg.ProjectPath = projectPath
				hits = append(hits, msg)
				if filters.MaxResults > 0 && len(hits) >= filters.MaxResults {
					return fs.SkipAll
				}
			}
			return nil
		})
		if err != nil && err != fs.SkipAll {
			return nil, err
		}
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

// sessionFiles lists the JSONL session files directly inside a project
// dir. Subagent sidechain files (agent-*.jsonl) are dropped when the
// caller excludes sidechains.
func sessionFiles(projectPath string, excludeSidechain bool) []string {
	entries, err := os.ReadDir(projectPath)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		if excludeSidechain && strings.HasPrefix(name, "agent-") {
			continue
		}
		files = append(files, filepath.Join(projectPath, name))
	}
	return files
}

func sessionExtra(sf *sessionFile) map[string]interface{} {
	extra := make(map[string]interface{})
	if sf.cwd != "" {
		extra["cwd"] = sf.cwd
	}
	if sf.gitBranch != "" {
		extra["gitBranch"] = sf.gitBranch
	}
	if sf.sessionID != "" {
		extra["recordedSessionId"] = sf.sessionID
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
