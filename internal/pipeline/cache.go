package pipeline

import (
	"sync"

	"github.com/opensesh/sessionhub/internal/model"
)

// SessionCache maps project paths to their session lists. Entries are
// whole-value replacements: a reload overwrites the entry, a force
// refresh clears everything, and nothing is ever patched in place. There
// is no TTL.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[string][]model.Session
}

// NewSessionCache creates an empty cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{entries: make(map[string][]model.Session)}
}

// Get returns a copy of the cached sessions for projectPath.
func (c *SessionCache) Get(projectPath string) ([]model.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sessions, ok := c.entries[projectPath]
	if !ok {
		return nil, false
	}
	out := make([]model.Session, len(sessions))
	copy(out, sessions)
	return out, true
}

// Put replaces the entry for projectPath wholesale.
func (c *SessionCache) Put(projectPath string, sessions []model.Session) {
	stored := make([]model.Session, len(sessions))
	copy(stored, sessions)
	c.mu.Lock()
	c.entries[projectPath] = stored
	c.mu.Unlock()
}

// Invalidate drops one entry.
func (c *SessionCache) Invalidate(projectPath string) {
	c.mu.Lock()
	delete(c.entries, projectPath)
	c.mu.Unlock()
}

// Clear drops every entry. This is the force-refresh path.
func (c *SessionCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]model.Session)
	c.mu.Unlock()
}

// Len returns the number of cached project entries.
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
