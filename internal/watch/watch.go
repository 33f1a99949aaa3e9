// Package watch monitors registered source roots for filesystem changes
// and triggers a refresh when session files settle after a burst of writes.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RefreshFunc is invoked after changes under a watched root settle.
type RefreshFunc func(ctx context.Context) error

// Watcher watches source root directories and debounces change bursts
// into a single refresh call.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	refresh     RefreshFunc
	logger      *zap.Logger
	debounceDur time.Duration
	pending     map[string]time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// New creates a Watcher that calls refresh after watched roots change.
func New(refresh RefreshFunc, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		watcher:     fsw,
		refresh:     refresh,
		logger:      logger,
		debounceDur: 500 * time.Millisecond,
		pending:     make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// AddRoot registers a source root and its immediate subdirectories.
// Roots that do not exist yet are skipped with a warning.
func (w *Watcher) AddRoot(root string) error {
	if err := w.watcher.Add(root); err != nil {
		w.logger.Warn("cannot watch root", zap.String("root", root), zap.Error(err))
		return err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".git") {
			continue
		}
		sub := filepath.Join(root, entry.Name())
		if err := w.watcher.Add(sub); err != nil {
			w.logger.Debug("cannot watch subdirectory", zap.String("dir", sub), zap.Error(err))
		}
	}
	return nil
}

// Roots returns the directories currently being watched.
func (w *Watcher) Roots() []string {
	return w.watcher.WatchList()
}

// Start begins processing filesystem events. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("error closing watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", zap.Error(err))
		case <-ticker.C:
			w.flushSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !relevant(event) {
		return
	}

	w.logger.Debug("filesystem event",
		zap.String("op", event.Op.String()),
		zap.String("path", event.Name))

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()

	// New directories under a root (fresh projects) get watched too.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watcher.Add(event.Name)
		}
	}
}

// relevant filters events down to the file types providers read.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") && !strings.HasSuffix(base, ".jsonl") {
		return false
	}
	switch filepath.Ext(base) {
	case ".jsonl", ".json", ".vscdb", "":
		return true
	}
	return false
}

// flushSettled fires one refresh when every pending change has been
// quiet for the debounce window.
func (w *Watcher) flushSettled(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	now := time.Now()
	for _, at := range w.pending {
		if now.Sub(at) < w.debounceDur {
			w.mu.Unlock()
			return
		}
	}
	count := len(w.pending)
	w.pending = make(map[string]time.Time)
	w.mu.Unlock()

	w.logger.Info("changes settled, refreshing", zap.Int("events", count))
	if err := w.refresh(ctx); err != nil {
		w.logger.Warn("refresh after change failed", zap.Error(err))
	}
}
