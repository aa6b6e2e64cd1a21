// Package watcher reports settled file changes under watched directories.
// Writes are debounced: a file is reported once its size and modification
// time stop changing for the settle delay.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors file system changes using fsnotify.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingEvent // path -> pending event info
	known   map[string]struct{}      // paths already reported as added

	events   chan Event
	errors   chan error
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// pendingEvent tracks a file that may still be changing
type pendingEvent struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a new file watcher.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger,
		opts:    opts,
		watcher: fw,
		pending: make(map[string]*pendingEvent),
		known:   make(map[string]struct{}),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a path to be monitored. Directories are watched recursively.
// Files already present are not reported; use MarkKnown after an initial
// scan so their later changes arrive as modifications.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return w.watchDir(path)
	}
	return w.watcher.Add(filepath.Dir(path))
}

// MarkKnown records path as already imported.
func (w *Watcher) MarkKnown(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.known[filepath.Clean(path)] = struct{}{}
}

// watchDir recursively watches a directory
func (w *Watcher) watchDir(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			w.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}

		if !info.IsDir() {
			return nil
		}
		if p != path && w.opts.shouldIgnore(p) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(p); err != nil {
			w.logger.Error("failed to add watch", "path", p, "error", err)
			return nil
		}

		w.logger.Debug("added watch", "path", p)
		return nil
	})
}

// Start processes events until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.wg.Add(1)
	go w.processEvents(ctx)

	select {
	case <-ctx.Done():
	case <-w.done:
	}
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watcher error dropped", "error", err)
			}
		}
	}
}

// handleFsnotifyEvent handles an fsnotify event with debouncing
func (w *Watcher) handleFsnotifyEvent(event fsnotify.Event) {
	path := event.Name

	if w.opts.shouldIgnore(path) {
		return
	}

	// New subdirectories join the watch.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			_ = w.watchDir(path)
			return
		}
	}

	if !w.opts.wants(path) {
		return
	}

	// A rename reports the old name; the new name arrives as a Create.
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.cancelPending(path)
		w.mu.Lock()
		delete(w.known, path)
		w.mu.Unlock()
		w.emitEvent(Event{Type: EventRemoved, Path: path})
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		w.startSettling(path)
	}
}

// startSettling begins the settling process for a file
func (w *Watcher) startSettling(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if pending, exists := w.pending[path]; exists {
		pending.timer.Stop()
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		return
	}
	if info.IsDir() {
		return
	}

	pending := &pendingEvent{
		size:    info.Size(),
		modTime: info.ModTime(),
	}
	pending.timer = time.AfterFunc(w.opts.SettleDelay, func() {
		w.checkSettled(path)
	})
	w.pending[path] = pending
}

// checkSettled checks if a file has finished settling
func (w *Watcher) checkSettled(path string) {
	w.mu.Lock()

	pending, exists := w.pending[path]
	if !exists {
		w.mu.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}

	if info.Size() != pending.size || !info.ModTime().Equal(pending.modTime) {
		// Still changing, restart timer
		pending.size = info.Size()
		pending.modTime = info.ModTime()
		pending.timer = time.AfterFunc(w.opts.SettleDelay, func() {
			w.checkSettled(path)
		})
		w.mu.Unlock()
		return
	}

	delete(w.pending, path)

	eventType := EventModified
	if _, seen := w.known[path]; !seen {
		eventType = EventAdded
		w.known[path] = struct{}{}
	}
	w.mu.Unlock()

	w.emitEvent(Event{
		Type:    eventType,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
}

// cancelPending cancels a pending event
func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if pending, exists := w.pending[path]; exists {
		pending.timer.Stop()
		delete(w.pending, path)
	}
}

// emitEvent sends an event to the events channel
func (w *Watcher) emitEvent(event Event) {
	select {
	case w.events <- event:
	case <-w.done:
	}
}

// Events returns the channel for receiving settled file events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel for receiving watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop stops the watcher and releases resources. It is safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, pending := range w.pending {
			pending.timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
