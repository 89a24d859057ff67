// Package bus delivers lifecycle events to registered listeners, one event
// at a time, in publish order.
package bus

import (
	"log/slog"
	"sync"

	"github.com/basket/eventkeep/internal/events"
)

// Listener consumes events. A Dispatcher never calls a listener
// concurrently with itself or with other listeners.
type Listener interface {
	HandleEvent(e events.Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(e events.Event)

// HandleEvent calls f(e).
func (f ListenerFunc) HandleEvent(e events.Event) { f(e) }

// Dispatcher fans events out to registered listeners synchronously. Posting
// goroutines serialize on one mutex, so every listener observes the same
// total event order and is always the sole writer of its own state.
type Dispatcher struct {
	mu        sync.Mutex
	listeners []Listener
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil logger falls back to
// slog.Default.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// Register adds a listener. Listeners receive only events posted after
// registration.
func (d *Dispatcher) Register(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// ListenerCount returns the number of registered listeners.
func (d *Dispatcher) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// Post delivers e to every listener in registration order. A panicking
// listener is logged and skipped; it cannot abort delivery to the others or
// stop the stream.
func (d *Dispatcher) Post(e events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		d.deliver(l, e)
	}
}

func (d *Dispatcher) deliver(l Listener, e events.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panicked", "kind", string(e.Kind()), "panic", r)
		}
	}()
	l.HandleEvent(e)
}
