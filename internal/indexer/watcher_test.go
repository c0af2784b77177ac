package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/usagegraph/internal/indexer/parsers"
)

// Test Plan for Watcher:
// - NewWatcher uses the default debounce
// - Creating a source file triggers a change callback with its relative path
// - Multiple rapid changes are debounced into a single callback
// - Files without an adapter and ignored directories do not trigger callbacks
// - New directories are watched automatically
// - Stop is safe to call twice
// - Context cancellation stops the watcher

func newTestWatcher(t *testing.T, rootDir string, ignore []string) (*Watcher, <-chan []string) {
	t.Helper()

	fd, err := NewFileDiscovery(rootDir, parsers.DefaultRegistry(), nil, ignore)
	require.NoError(t, err)

	changes := make(chan []string, 10)
	w, err := NewWatcher(fd, func(ctx context.Context, changed []string) {
		changes <- changed
	}, nil)
	require.NoError(t, err)
	w.SetDebounce(50 * time.Millisecond)
	return w, changes
}

func waitForChange(t *testing.T, changes <-chan []string) []string {
	t.Helper()
	select {
	case changed := <-changes:
		return changed
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change callback")
		return nil
	}
}

func TestNewWatcher_Defaults(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	fd, err := NewFileDiscovery(rootDir, parsers.DefaultRegistry(), nil, nil)
	require.NoError(t, err)

	w, err := NewWatcher(fd, func(context.Context, []string) {}, nil)
	require.NoError(t, err)
	// Start was never called, so close the underlying watcher directly.
	defer w.watcher.Close()

	assert.Equal(t, rootDir, w.rootDir)
	assert.Equal(t, DefaultDebounce, w.debounceTime)
}

func TestWatcher_FileCreation(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	w, changes := newTestWatcher(t, rootDir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "lib.rs"), []byte("pub struct A;"), 0644))

	changed := waitForChange(t, changes)
	assert.Equal(t, []string{"lib.rs"}, changed)
}

func TestWatcher_Debounce(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	w, changes := newTestWatcher(t, rootDir, nil)
	w.SetDebounce(200 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	for _, name := range []string{"a.rs", "b.rs", "c.rs"} {
		require.NoError(t, os.WriteFile(filepath.Join(rootDir, name), []byte("pub struct X;"), 0644))
	}

	changed := waitForChange(t, changes)
	assert.Equal(t, []string{"a.rs", "b.rs", "c.rs"}, changed)

	select {
	case extra := <-changes:
		t.Fatalf("unexpected second callback: %v", extra)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(rootDir, "target"), 0755))

	w, changes := newTestWatcher(t, rootDir, []string{"target/**"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "target", "gen.rs"), []byte("struct G;"), 0644))

	select {
	case changed := <-changes:
		t.Fatalf("unexpected callback: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	t.Parallel()

	rootDir := t.TempDir()
	w, changes := newTestWatcher(t, rootDir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	subDir := filepath.Join(rootDir, "src")
	require.NoError(t, os.MkdirAll(subDir, 0755))
	// Give the watcher time to register the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "mod.rs"), []byte("pub struct M;"), 0644))

	changed := waitForChange(t, changes)
	assert.Contains(t, changed, "src/mod.rs")
}

func TestWatcher_StopTwice(t *testing.T) {
	t.Parallel()

	w, _ := newTestWatcher(t, t.TempDir(), nil)
	w.Start(context.Background())

	w.Stop()
	w.Stop()
}

func TestWatcher_ContextCancellation(t *testing.T) {
	t.Parallel()

	w, _ := newTestWatcher(t, t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	cancel()
	select {
	case <-w.doneCh:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
	w.Stop()
}
