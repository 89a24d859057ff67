// Package watch triggers compaction passes when an event log grows.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Trigger names a log file that changed and should be recompacted.
type Trigger struct {
	Path string
}

// Watcher observes a directory of JSON-lines event logs and emits one
// debounced Trigger per burst of writes to a file.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *slog.Logger
	triggers chan Trigger

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// NewWatcher creates a watcher over dir. A zero debounce defaults to two
// seconds.
func NewWatcher(dir string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		logger:   logger,
		triggers: make(chan Trigger, 16),
		pending:  make(map[string]*time.Timer),
	}
}

// Triggers returns the channel compaction triggers are delivered on. It is
// closed when the watcher stops.
func (w *Watcher) Triggers() <-chan Trigger {
	return w.triggers
}

// Start begins watching. The watch loop runs until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	go func() {
		defer fsw.Close()
		defer close(w.triggers)
		// Runs before the close above: no timer may send once we stop.
		defer w.cancelPending()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !isEventLog(ev.Name) {
					continue
				}
				w.schedule(ev.Name)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("log watcher error", "error", err)
			}
		}
	}()
	w.logger.Info("log watcher started", "dir", w.dir, "debounce", w.debounce)
	return nil
}

// schedule arms (or re-arms) the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

// fire delivers the trigger for path unless the watcher stopped first. The
// send happens under the mutex so cancelPending can fence off the channel
// close.
func (w *Watcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	delete(w.pending, path)
	select {
	case w.triggers <- Trigger{Path: path}:
	default:
		w.logger.Warn("compaction trigger dropped, consumer too slow", "path", path)
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func isEventLog(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".jsonl") && !strings.Contains(name, ".compact")
}
