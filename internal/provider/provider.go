// Package provider defines the adapter contract every supported log format
// implements, the weighted detection machinery, and the registry that maps
// provider ids and on-disk paths to adapters.
package provider

import (
	"context"
	"time"

	"github.com/opensesh/sessionhub/internal/model"
)

// SortOrder controls the direction LoadMessages pages through a session.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// LoadOptions parameterize one LoadMessages call. Offset is provider-opaque;
// the only guarantee is that it is stable for a given session and resumable
// from MessagePage.NextOffset.
type LoadOptions struct {
	Offset           int
	Limit            int
	SortOrder        SortOrder
	IncludeMetadata  bool
	ExcludeSidechain bool
}

// SearchFilters is the provider-agnostic filter shape for SearchMessages.
type SearchFilters struct {
	Roles       []model.MessageRole
	After       *time.Time
	Before      *time.Time
	ProjectPath string
	MaxResults  int
}

// Capabilities declares optional adapter features. Callers must check
// CanWrite before invoking the Writer interface.
type Capabilities struct {
	CanWrite      bool
	ResumeCommand string
}

// Adapter is the contract one log-format provider implements. Adapters are
// pure functions of on-disk state plus the supplied parameters: they hold
// no mutable state of their own and never panic on malformed input.
type Adapter interface {
	// ID returns the stable provider id, e.g. "claude-code".
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	Capabilities() Capabilities

	// DefaultRoot returns the provider's conventional root location for
	// the current user, without checking that it exists.
	DefaultRoot() (string, error)

	// Detect evaluates the adapter's detection patterns against path.
	Detect(path string) DetectionScore

	// ScanProjects enumerates project units under root, tagged with sourceID.
	ScanProjects(ctx context.Context, root, sourceID string) ([]model.Project, error)

	// LoadSessions enumerates the sessions of one project.
	LoadSessions(ctx context.Context, projectPath, projectID string, excludeSidechain bool) ([]model.Session, error)

	// LoadMessages returns one page of a session plus continuation data.
	LoadMessages(ctx context.Context, sessionPath, sessionID string, opts LoadOptions) (*model.MessagePage, error)

	// SearchMessages runs a full-text search across the given roots.
	SearchMessages(ctx context.Context, roots []string, query string, filters SearchFilters) ([]model.Message, error)

	// HealthCheck reports whether root is currently serviceable.
	HealthCheck(ctx context.Context, root string) model.HealthStatus
}

// Writer is the optional write capability. Only adapters whose
// Capabilities report CanWrite implement it.
type Writer interface {
	CreateProject(ctx context.Context, root, projectPath string) (*model.Project, error)
	CreateSession(ctx context.Context, projectPath, summary string) (*model.Session, error)
	AppendMessages(ctx context.Context, sessionPath string, msgs []model.Message) error
}
