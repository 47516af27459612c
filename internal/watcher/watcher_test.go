package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangashelf/mangashelf/internal/logger"
)

func startWatcher(t *testing.T, root string, opts Options) *Watcher {
	t.Helper()
	w, err := New(logger.Discard(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	require.NoError(t, w.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Start(ctx) //nolint:errcheck // Test goroutine
	return w
}

func nextEvent(t *testing.T, w *Watcher, typ EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-w.Events():
			if e.Type == typ {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
			return Event{}
		}
	}
}

func TestWatcher_ReportsRemovedDirectory(t *testing.T) {
	root := t.TempDir()
	chapter := filepath.Join(root, "provider", "Work", "1")
	require.NoError(t, os.MkdirAll(chapter, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(chapter, "001.jpg"), []byte("x"), 0o644))

	w := startWatcher(t, root, Options{MaxDepth: 2, SettleDelay: 20 * time.Millisecond})
	require.NoError(t, os.RemoveAll(chapter))

	e := nextEvent(t, w, EventRemoved)
	assert.Equal(t, chapter, e.Path)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, Options{MaxDepth: 2, SettleDelay: 20 * time.Millisecond})

	work := filepath.Join(root, "provider", "Work")
	require.NoError(t, os.Mkdir(filepath.Join(root, "provider"), 0o755))
	assert.Equal(t, filepath.Join(root, "provider"), nextEvent(t, w, EventAdded).Path)
	require.NoError(t, os.Mkdir(work, 0o755))
	assert.Equal(t, work, nextEvent(t, w, EventAdded).Path)

	chapter := filepath.Join(work, "1")
	require.NoError(t, os.Mkdir(chapter, 0o755))
	assert.Equal(t, chapter, nextEvent(t, w, EventAdded).Path)
	require.NoError(t, os.Remove(chapter))
	assert.Equal(t, chapter, nextEvent(t, w, EventRemoved).Path)
}

func TestWatcher_RecreatedPathIsNotRemoved(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Work")
	require.NoError(t, os.Mkdir(dir, 0o755))

	w := startWatcher(t, root, Options{SettleDelay: 200 * time.Millisecond})
	require.NoError(t, os.Remove(dir))
	require.NoError(t, os.Mkdir(dir, 0o755))

	select {
	case e := <-w.Events():
		assert.NotEqual(t, EventRemoved, e.Type)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_Depth(t *testing.T) {
	w, err := New(logger.Discard(), Options{MaxDepth: 1})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup
	root := t.TempDir()
	require.NoError(t, w.Watch(root))

	assert.Equal(t, 0, w.depth(root))
	assert.Equal(t, 2, w.depth(filepath.Join(root, "a", "b")))
	assert.Equal(t, -1, w.depth(filepath.Dir(root)))
}

type fakeReconciler struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeReconciler) ReconcilePath(_ context.Context, path string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return 1, nil
}

func (f *fakeReconciler) got() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func TestReconcile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Work")
	require.NoError(t, os.Mkdir(dir, 0o755))

	w, err := New(logger.Discard(), Options{SettleDelay: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup
	require.NoError(t, w.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReconciler{}
	go Reconcile(ctx, w, r, logger.Discard())

	require.NoError(t, os.Remove(dir))
	assert.Eventually(t, func() bool {
		return len(r.got()) == 1 && r.got()[0] == dir
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_HiddenParentOfRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".local", "share")
	chapter := filepath.Join(root, "provider", "Work", "1")
	require.NoError(t, os.MkdirAll(chapter, 0o755))

	w := startWatcher(t, root, Options{MaxDepth: 2, SettleDelay: 20 * time.Millisecond})
	require.NoError(t, os.RemoveAll(chapter))

	e := nextEvent(t, w, EventRemoved)
	assert.Equal(t, chapter, e.Path)
}
