package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, opts Options) (*Watcher, string) {
	t.Helper()

	if opts.SettleDelay == 0 {
		opts.SettleDelay = 50 * time.Millisecond
	}
	w, err := New(slog.New(slog.DiscardHandler), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	dir := t.TempDir()
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Start(ctx) //nolint:errcheck // Test goroutine

	return w, dir
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestNew(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop(), "second Stop should be a no-op")
}

func TestWatcher_WatchMissingPath(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	err = w.Watch(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWatcher_FileCreation(t *testing.T) {
	w, dir := newTestWatcher(t, Options{})

	manifest := filepath.Join(dir, "tempest.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{"title":"The Tempest"}`), 0o644))

	event := waitEvent(t, w)
	assert.Equal(t, EventAdded, event.Type)
	assert.Equal(t, manifest, event.Path)
	assert.Equal(t, int64(23), event.Size)
}

func TestWatcher_FileModification(t *testing.T) {
	w, dir := newTestWatcher(t, Options{})

	manifest := filepath.Join(dir, "tempest.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{}`), 0o644))
	assert.Equal(t, EventAdded, waitEvent(t, w).Type)

	require.NoError(t, os.WriteFile(manifest, []byte(`{"title":"x"}`), 0o644))
	event := waitEvent(t, w)
	assert.Equal(t, EventModified, event.Type)
	assert.Equal(t, manifest, event.Path)
}

func TestWatcher_MarkKnown(t *testing.T) {
	w, dir := newTestWatcher(t, Options{})

	manifest := filepath.Join(dir, "known.json")
	w.MarkKnown(manifest)
	require.NoError(t, os.WriteFile(manifest, []byte(`{}`), 0o644))

	assert.Equal(t, EventModified, waitEvent(t, w).Type)
}

func TestWatcher_FileDeletion(t *testing.T) {
	w, dir := newTestWatcher(t, Options{})

	manifest := filepath.Join(dir, "gone.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{}`), 0o644))
	assert.Equal(t, EventAdded, waitEvent(t, w).Type)

	require.NoError(t, os.Remove(manifest))
	event := waitEvent(t, w)
	assert.Equal(t, EventRemoved, event.Type)
	assert.Equal(t, manifest, event.Path)
}

func TestWatcher_ExtensionFilter(t *testing.T) {
	w, dir := newTestWatcher(t, Options{Extensions: []string{".json"}})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.png"), []byte("png"), 0o644))
	manifest := filepath.Join(dir, "book.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{}`), 0o644))

	event := waitEvent(t, w)
	assert.Equal(t, manifest, event.Path, "non-manifest files should be filtered")
}

func TestWatcher_IgnoresHiddenFiles(t *testing.T) {
	w, dir := newTestWatcher(t, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".scratch.json"), []byte(`{}`), 0o644))
	visible := filepath.Join(dir, "visible.json")
	require.NoError(t, os.WriteFile(visible, []byte(`{}`), 0o644))

	assert.Equal(t, visible, waitEvent(t, w).Path)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	w, dir := newTestWatcher(t, Options{})

	sub := filepath.Join(dir, "shelf")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)

	manifest := filepath.Join(sub, "nested.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{}`), 0o644))

	event := waitEvent(t, w)
	assert.Equal(t, manifest, event.Path)
}
