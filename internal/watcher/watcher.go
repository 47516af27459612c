// Package watcher reports directories that appear or disappear under the
// content store.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors directory trees up to a fixed depth.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	roots   []string
	pending map[string]*time.Timer // removed path -> settle timer

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a watcher.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		logger:  logger,
		opts:    opts,
		watcher: fw,
		pending: make(map[string]*time.Timer),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a root directory and its subdirectories up to MaxDepth.
func (w *Watcher) Watch(root string) error {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	w.mu.Lock()
	w.roots = append(w.roots, root)
	w.mu.Unlock()
	return w.watchTree(root)
}

// depth returns how far below its root path is, or -1 outside every root.
func (w *Watcher) depth(path string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if rel == "." {
			return 0
		}
		return strings.Count(rel, string(filepath.Separator)) + 1
	}
	return -1
}

// ignored matches path relative to its root, so hidden directories above
// the root do not hide everything below it.
func (w *Watcher) ignored(path string) bool {
	w.mu.Lock()
	roots := w.roots
	w.mu.Unlock()
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return w.opts.shouldIgnore(rel)
		}
	}
	return w.opts.shouldIgnore(path)
}

func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.ignored(p) {
			return filepath.SkipDir
		}
		depth := w.depth(p)
		if depth < 0 || depth > w.opts.MaxDepth {
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

// Start delivers events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.wg.Add(1)
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watcher error dropped", "error", err)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if w.ignored(path) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		w.cancelPending(path)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return
		}
		if d := w.depth(path); d >= 0 && d <= w.opts.MaxDepth {
			if err := w.watchTree(path); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
		}
		w.emit(Event{Type: EventAdded, Path: path})
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.settleRemoval(path)
	}
}

// settleRemoval reports path as removed once it has been absent for the
// settle delay.
func (w *Watcher) settleRemoval(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.opts.SettleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if _, err := os.Lstat(path); err == nil {
			return
		}
		w.emit(Event{Type: EventRemoved, Path: path})
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) emit(event Event) {
	select {
	case w.events <- event:
	case <-w.done:
	}
}

// Events returns the channel for receiving file system events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel for receiving errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		for _, t := range w.pending {
			t.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
