package provider

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/opensesh/sessionhub/internal/apperr"
)

// Match pairs a provider id with its detection score for one path.
type Match struct {
	ProviderID string         `json:"providerId"`
	Score      DetectionScore `json:"score"`
}

// DetectionResult is the outcome of running detection across all
// registered adapters: the winning provider plus the full ranked list for
// diagnostics.
type DetectionResult struct {
	ProviderID string         `json:"providerId"`
	Score      DetectionScore `json:"score"`
	AllMatches []Match        `json:"allMatches"`
}

// Registry holds all known adapters keyed by provider id. Registration
// order is significant: equal-confidence detection ties resolve to the
// first-registered adapter, deliberately and deterministically.
type Registry struct {
	mu          sync.RWMutex
	adapters    map[string]Adapter
	order       []string
	initialized bool
	logger      *zap.Logger
}

// NewRegistry creates an empty adapter registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// Initialize registers the given adapters exactly once. Calling it again
// is a no-op so process-level wiring can run it without guarding.
func (r *Registry) Initialize(adapters ...Adapter) error {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return nil
	}
	r.initialized = true
	r.mu.Unlock()

	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// Register adds an adapter under its declared provider id. Registering a
// second adapter under the same id is an error.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.ID()
	if _, exists := r.adapters[id]; exists {
		return apperr.New(apperr.CodeProviderNotFound, "adapter %q already registered", id)
	}
	r.adapters[id] = a
	r.order = append(r.order, id)
	r.logger.Debug("registered provider adapter", zap.String("provider", id))
	return nil
}

// Get returns the adapter for id, failing fast when it is absent.
func (r *Registry) Get(id string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	if !ok {
		return nil, apperr.New(apperr.CodeProviderNotFound, "no adapter registered for provider %q", id)
	}
	return a, nil
}

// TryGet returns the adapter for id, or nil when it is absent. For
// best-effort call sites such as resolving a display name.
func (r *Registry) TryGet(id string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[id]
}

// IDs returns provider ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DetectProvider runs detection on every registered adapter and returns
// the highest-confidence claimant plus the full ranked list. Ties break
// in registration order (first registered wins). When no adapter claims
// the path with nonzero confidence the error carries INVALID_FORMAT.
func (r *Registry) DetectProvider(path string) (*DetectionResult, error) {
	r.mu.RLock()
	order := make([]string, len(r.order))
	copy(order, r.order)
	adapters := make(map[string]Adapter, len(r.adapters))
	for id, a := range r.adapters {
		adapters[id] = a
	}
	r.mu.RUnlock()

	var matches []Match
	for _, id := range order {
		score := adapters[id].Detect(path)
		if score.CanHandle && score.Confidence > 0 {
			matches = append(matches, Match{ProviderID: id, Score: score})
		}
	}

	if len(matches) == 0 {
		return nil, apperr.New(apperr.CodeInvalidFormat, "no provider recognizes %q", path)
	}

	// Stable sort keeps registration order within equal confidence.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score.Confidence > matches[j].Score.Confidence
	})

	return &DetectionResult{
		ProviderID: matches[0].ProviderID,
		Score:      matches[0].Score,
		AllMatches: matches,
	}, nil
}
