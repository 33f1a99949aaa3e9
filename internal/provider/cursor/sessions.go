package cursor

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/apperr"
	"github.com/opensesh/sessionhub/internal/model"
)

// workspaceMarker separates the database path from the workspace folder in
// an encoded project path; composerMarker does the same for session paths.
const (
	workspaceMarker = "#workspace="
	composerMarker  = "#composer="
)

func encodeProjectPath(dbPath, folder string) string {
	return dbPath + workspaceMarker + folder
}

func encodeSessionPath(dbPath, composerID string) string {
	return dbPath + composerMarker + composerID
}

// decodeSessionPath splits an encoded session path back into the database
// path and composer id.
func decodeSessionPath(sessionPath string) (dbPath, composerID string, err error) {
	dbPath, composerID, ok := strings.Cut(sessionPath, composerMarker)
	if !ok || dbPath == "" || composerID == "" {
		return "", "", apperr.New(apperr.CodeInvalidFormat, "not a Cursor session path: %s", sessionPath)
	}
	return dbPath, composerID, nil
}

// ScanProjects groups composers by their associated workspace folder.
// Workspace entries without conversations still surface as empty projects;
// composers with no workspace association land in the synthetic global
// project.
func (a *Adapter) ScanProjects(ctx context.Context, root, sourceID string) ([]model.Project, error) {
	dbPath := globalDBPath(root)
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.CodePathNotFound, err, "cursor store %s", dbPath)
		}
		return nil, err
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	composers, err := a.loadComposers(db)
	if err != nil {
		return nil, err
	}
	contexts, err := a.loadContexts(db)
	if err != nil {
		return nil, err
	}

	byFolder := make(map[string][]*rawComposer)
	for _, folder := range a.readWorkspaces(root) {
		byFolder[folder] = nil
	}
	var global []*rawComposer
	for _, c := range composers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		folder := associatedFolder(contexts[c.ComposerID])
		if folder == "" {
			global = append(global, c)
			continue
		}
		byFolder[folder] = append(byFolder[folder], c)
	}

	folders := make([]string, 0, len(byFolder))
	for folder := range byFolder {
		folders = append(folders, folder)
	}
	sort.Strings(folders)

	projects := make([]model.Project, 0, len(folders)+1)
	for _, folder := range folders {
		p := buildProject(filepath.Base(folder), sourceID, filepath.Base(folder),
			encodeProjectPath(dbPath, folder), byFolder[folder])
		projects = append(projects, p)
	}
	if len(global) > 0 {
		p := buildProject(GlobalProjectID, sourceID, "Global",
			filepath.Join(root, "globalStorage"), global)
		projects = append(projects, p)
	}

	return projects, nil
}

func buildProject(id, sourceID, name, path string, composers []*rawComposer) model.Project {
	var messages int
	var first, last time.Time
	for _, c := range composers {
		messages += len(c.Headers)
		if ts := msToTime(c.CreatedAt); !ts.IsZero() {
			if first.IsZero() || ts.Before(first) {
				first = ts
			}
		}
		if ts := msToTime(c.LastUpdatedAt); ts.After(last) {
			last = ts
		}
	}

	p := model.Project{
		ID:            id,
		SourceID:      sourceID,
		ProviderID:    ProviderID,
		Name:          name,
		Path:          path,
		SessionCount:  len(composers),
		TotalMessages: messages,
	}
	if !first.IsZero() {
		p.FirstActivityAt = &first
	}
	if !last.IsZero() {
		p.LastActivityAt = &last
	}
	return p
}

// LoadSessions enumerates the composers belonging to one project. The
// project path carries the database location; a path without a workspace
// marker is the global project.
func (a *Adapter) LoadSessions(ctx context.Context, projectPath, projectID string, excludeSidechain bool) ([]model.Session, error) {
	dbPath, folder, scoped := strings.Cut(projectPath, workspaceMarker)
	if !scoped {
		dbPath = filepath.Join(projectPath, "state.vscdb")
	}
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.CodePathNotFound, err, "cursor store %s", dbPath)
		}
		return nil, err
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	composers, err := a.loadComposers(db)
	if err != nil {
		return nil, err
	}
	contexts, err := a.loadContexts(db)
	if err != nil {
		return nil, err
	}

	var sessions []model.Session
	for _, c := range composers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		assoc := associatedFolder(contexts[c.ComposerID])
		if scoped && assoc != folder {
			continue
		}
		if !scoped && assoc != "" {
			continue
		}

		bubbles, err := a.loadBubbles(db, c.ComposerID)
		if err != nil {
			a.logger.Warn("skipping unreadable composer",
				zap.String("composer", c.ComposerID), zap.Error(err))
			continue
		}
		ordered := orderBubbles(c, bubbles)
		if len(ordered) == 0 {
			continue
		}

		sessions = append(sessions, buildSession(dbPath, projectID, c, assoc, ordered))
	}

	return sessions, nil
}

func buildSession(dbPath, projectID string, c *rawComposer, folder string, ordered []*rawBubble) model.Session {
	var first, last time.Time
	var firstUserText string
	for _, b := range ordered {
		if ts := msToTime(b.Timestamp); !ts.IsZero() {
			if first.IsZero() || ts.Before(first) {
				first = ts
			}
			if ts.After(last) {
				last = ts
			}
		}
		if firstUserText == "" && b.Type == bubbleTypeUser && b.Text != "" {
			firstUserText = b.Text
		}
	}
	if first.IsZero() {
		first = msToTime(c.CreatedAt)
	}
	if last.IsZero() {
		last = msToTime(c.LastUpdatedAt)
	}

	summary := c.Name
	if summary == "" && firstUserText != "" {
		summary = truncate(firstUserText, 80)
	}

	return model.Session{
		ID:             c.ComposerID,
		ProjectID:      projectID,
		ProviderID:     ProviderID,
		MessageCount:   len(ordered),
		FirstMessageAt: first,
		LastMessageAt:  last,
		Metadata: model.SessionMetadata{
			FilePath:  encodeSessionPath(dbPath, c.ComposerID),
			Summary:   summary,
			Workspace: folder,
		},
	}
}

// readWorkspaces lists the folder paths recorded under workspaceStorage.
func (a *Adapter) readWorkspaces(root string) []string {
	dir := filepath.Join(root, "workspaceStorage")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var folders []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name(), "workspace.json"))
		if err != nil {
			continue
		}
		var ws struct {
			Folder string `json:"folder"`
		}
		if err := json.Unmarshal(data, &ws); err != nil || ws.Folder == "" {
			a.logger.Debug("skipping workspace entry", zap.String("dir", e.Name()))
			continue
		}
		folders = append(folders, normalizeFolder(ws.Folder))
	}
	return folders
}

// associatedFolder resolves a composer's workspace folder from its
// message-request contexts: the first recorded project layout wins.
func associatedFolder(contexts []*rawContext) string {
	for _, c := range contexts {
		for _, layout := range c.ProjectLayouts {
			if folder := normalizeFolder(layout); folder != "" {
				return folder
			}
		}
	}
	return ""
}

// normalizeFolder strips the file URI scheme workspace.json uses.
func normalizeFolder(folder string) string {
	folder = strings.TrimPrefix(folder, "file://")
	return strings.TrimRight(folder, "/")
}

// fetchComposer reads a single composer record by id.
func fetchComposer(db *sql.DB, composerID string) (*rawComposer, error) {
	key := "composerData:" + composerID
	var value sql.NullString
	err := db.QueryRow("SELECT value FROM cursorDiskKV WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows || (err == nil && !value.Valid) {
		return nil, apperr.New(apperr.CodePathNotFound, "composer %s not found", composerID)
	}
	if err != nil {
		return nil, err
	}
	return parseComposer(key, value.String)
}

func msToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
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
