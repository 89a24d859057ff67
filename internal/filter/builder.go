package filter

import (
	"sync"

	"github.com/basket/eventkeep/internal/events"
	"github.com/basket/eventkeep/internal/liveness"
)

// EventFilter classifies one historical event.
type EventFilter interface {
	Classify(e events.Event) Decision
}

// Builder constructs an EventFilter from whatever state its owner has
// accumulated at a compaction boundary.
type Builder interface {
	Build() EventFilter
}

// SQLBuilder builds SQL liveness filters from a tracker. Each Build takes
// one atomic snapshot; the returned filter never changes afterwards.
type SQLBuilder struct {
	tracker  *liveness.Tracker
	delegate JobFilter
}

// NewSQLBuilder creates a builder over t. delegate may be nil; see
// NewSQLFilter.
func NewSQLBuilder(t *liveness.Tracker, delegate JobFilter) *SQLBuilder {
	return &SQLBuilder{tracker: t, delegate: delegate}
}

// Build snapshots the tracker and returns an immutable filter over it.
func (b *SQLBuilder) Build() EventFilter {
	return NewSQLFilter(b.tracker.Snapshot(), b.delegate)
}

// Registry holds the filter builders registered for one listening or replay
// session.
type Registry struct {
	mu       sync.RWMutex
	builders []Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a builder. Builders registered after a BuildAll call do not
// affect filters already built.
func (r *Registry) Register(b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders = append(r.builders, b)
}

// Len returns the number of registered builders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.builders)
}

// BuildAll builds one filter per registered builder, marking a compaction
// boundary.
func (r *Registry) BuildAll() []EventFilter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	filters := make([]EventFilter, 0, len(r.builders))
	for _, b := range r.builders {
		filters = append(filters, b.Build())
	}
	return filters
}
