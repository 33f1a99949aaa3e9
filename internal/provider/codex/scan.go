package codex

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

// cwdMarker separates the sessions directory from the working-directory
// filter in an encoded project path. A path without the marker is the
// catch-all project for rollouts that never recorded a cwd.
const cwdMarker = "#cwd="

func encodeProjectPath(sessionsDir, cwd string) string {
	if cwd == "" {
		return sessionsDir
	}
	return sessionsDir + cwdMarker + cwd
}

func decodeProjectPath(projectPath string) (sessionsDir, cwd string) {
	sessionsDir, cwd, _ = strings.Cut(projectPath, cwdMarker)
	return sessionsDir, cwd
}

// ScanProjects groups rollout files by their recorded working directory.
// Every file is parsed; rollouts are small append-only logs so a full
// read keeps the counts exact.
func (a *Adapter) ScanProjects(ctx context.Context, root, sourceID string) ([]model.Project, error) {
	sessionsDir := filepath.Join(root, "sessions")
	if _, err := os.Stat(sessionsDir); err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.CodePathNotFound, err, "sessions dir %s", sessionsDir)
		}
		return nil, err
	}

	rollouts, err := a.readRollouts(ctx, sessionsDir)
	if err != nil {
		return nil, err
	}

	byCwd := make(map[string][]*rollout)
	for _, r := range rollouts {
		byCwd[r.cwd] = append(byCwd[r.cwd], r)
	}

	cwds := make([]string, 0, len(byCwd))
	for cwd := range byCwd {
		cwds = append(cwds, cwd)
	}
	sort.Strings(cwds)

	projects := make([]model.Project, 0, len(cwds))
	for _, cwd := range cwds {
		group := byCwd[cwd]

		var messages int
		var first, last time.Time
		for _, r := range group {
			messages += len(r.messages())
			if ts := r.firstTimestamp(); !ts.IsZero() {
				if first.IsZero() || ts.Before(first) {
					first = ts
				}
			}
			if ts := r.lastTimestamp(); ts.After(last) {
				last = ts
			}
		}

		id := "default"
		name := "Codex"
		if cwd != "" {
			id = filepath.Base(cwd)
			name = filepath.Base(cwd)
		}
		p := model.Project{
			ID:            id,
			SourceID:      sourceID,
			ProviderID:    ProviderID,
			Name:          name,
			Path:          encodeProjectPath(sessionsDir, cwd),
			SessionCount:  len(group),
			TotalMessages: messages,
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

// LoadSessions enumerates the rollouts whose working directory matches the
// project path.
func (a *Adapter) LoadSessions(ctx context.Context, projectPath, projectID string, excludeSidechain bool) ([]model.Session, error) {
	sessionsDir, cwd := decodeProjectPath(projectPath)
	if _, err := os.Stat(sessionsDir); err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.CodePathNotFound, err, "sessions dir %s", sessionsDir)
		}
		return nil, err
	}

	rollouts, err := a.readRollouts(ctx, sessionsDir)
	if err != nil {
		return nil, err
	}

	var sessions []model.Session
	for _, r := range rollouts {
		if r.cwd != cwd {
			continue
		}
		sessions = append(sessions, buildSession(r, projectID))
	}
	return sessions, nil
}

func buildSession(r *rollout, projectID string) model.Session {
	msgs := r.messages()

	var firstUserText string
	for _, e := range msgs {
		if determineRole(e) != model.RoleUser {
			continue
		}
		for _, part := range convertContent(e.Payload) {
			if part.Text != "" {
				firstUserText = part.Text
				break
			}
		}
		if firstUserText != "" {
			break
		}
	}

	first := r.firstTimestamp()
	if first.IsZero() {
		first = stampToTime(r.stamp)
	}
	last := r.lastTimestamp()
	if last.IsZero() {
		last = first
	}

	extra := map[string]interface{}{"rolloutStamp": r.stamp}
	if r.cwd != "" {
		extra["cwd"] = r.cwd
	}

	return model.Session{
		ID:             r.sessionID,
		ProjectID:      projectID,
		ProviderID:     ProviderID,
		MessageCount:   len(msgs),
		FirstMessageAt: first,
		LastMessageAt:  last,
		Metadata: model.SessionMetadata{
			FilePath:  r.path,
			Summary:   truncate(firstUserText, 80),
			Workspace: r.cwd,
			Extra:     extra,
		},
	}
}

func (r *rollout) firstTimestamp() time.Time {
	for _, e := range r.events {
		if ts := parseTimestamp(e.Timestamp); !ts.IsZero() {
			return ts
		}
	}
	return time.Time{}
}

func (r *rollout) lastTimestamp() time.Time {
	for i := len(r.events) - 1; i >= 0; i-- {
		if ts := parseTimestamp(r.events[i].Timestamp); !ts.IsZero() {
			return ts
		}
	}
	return time.Time{}
}

// LoadMessages returns one page of a rollout's conversational events. The
// session path is the rollout file itself.
func (a *Adapter) LoadMessages(ctx context.Context, sessionPath, sessionID string, opts provider.LoadOptions) (*model.MessagePage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := a.readRollout(sessionPath)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = r.sessionID
	}

	msgs := r.messages()
	total := len(msgs)
	start, end := provider.PageWindow(total, opts)

	out := make([]model.Message, 0, end-start)
	for i, e := range msgs[start:end] {
		out = append(out, a.toUniversal(e, start+i, sessionID, opts.IncludeMetadata))
	}

	page := &model.MessagePage{
		Messages:   out,
		TotalCount: total,
		NextOffset: opts.Offset + len(out),
	}
	if opts.SortOrder == provider.SortAscending {
		page.HasMore = end < total
	} else {
		page.HasMore = start > 0
	}
	return page, nil
}

// SearchMessages scans every rollout under each root for a
// case-insensitive substring match.
func (a *Adapter) SearchMessages(ctx context.Context, roots []string, query string, filters provider.SearchFilters) ([]model.Message, error) {
	needle := strings.ToLower(query)
	var hits []model.Message

	for _, root := range roots {
		sessionsDir := filepath.Join(root, "sessions")
		if _, err := os.Stat(sessionsDir); err != nil {
			continue
		}

		rollouts, err := a.readRollouts(ctx, sessionsDir)
		if err != nil {
			return nil, err
		}

		for _, r := range rollouts {
			if filters.ProjectPath != "" {
				_, cwd := decodeProjectPath(filters.ProjectPath)
				if r.cwd != cwd {
					continue
				}
			}

			for i, e := range r.messages() {
				msg := a.toUniversal(e, i, r.sessionID, false)
				if !matchesFilters(msg, filters) {
					continue
				}
				if !strings.Contains(strings.ToLower(msg.PlainText()), needle) {
					continue
				}
				msg.ProjectPath = encodeProjectPath(sessionsDir, r.cwd)
				hits = append(hits, msg)
				if filters.MaxResults > 0 && len(hits) >= filters.MaxResults {
					return hits, nil
				}
			}
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

// readRollouts walks the sessions tree and parses every rollout file.
// Codex nests rollouts under date directories; unreadable files are
// skipped with a log line.
func (a *Adapter) readRollouts(ctx context.Context, sessionsDir string) ([]*rollout, error) {
	var rollouts []*rollout
	err := filepath.WalkDir(sessionsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		if _, _, ok := parseRolloutName(d.Name()); !ok {
			return nil
		}

		r, rerr := a.readRollout(path)
		if rerr != nil {
			a.logger.Warn("skipping unreadable rollout",
				zap.String("file", path), zap.Error(rerr))
			return nil
		}
		rollouts = append(rollouts, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rollouts, nil
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
