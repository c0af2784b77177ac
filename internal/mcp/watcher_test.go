package mcp

// Test Plan for FileWatcher:
// - Rewriting the graph file triggers one debounced reload
// - Other files in the directory are ignored
// - A failed reload keeps the watcher running
// - Stop is idempotent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockReloadable implements Reloadable interface for testing.
type mockReloadable struct {
	reloadCount atomic.Int32
	reloadErr   error
}

func (m *mockReloadable) Reload(ctx context.Context) error {
	m.reloadCount.Add(1)
	return m.reloadErr
}

func (m *mockReloadable) getReloadCount() int {
	return int(m.reloadCount.Load())
}

func startWatcher(t *testing.T, r Reloadable) (*FileWatcher, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "usage-graph.json")
	fw, err := NewFileWatcher(r, path, nil)
	require.NoError(t, err)
	fw.debounceTime = 50 * time.Millisecond
	fw.Start(context.Background())
	t.Cleanup(fw.Stop)
	return fw, path
}

func TestFileWatcher_ReloadsOnWrite(t *testing.T) {
	t.Parallel()

	r := &mockReloadable{}
	_, path := startWatcher(t, r)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))
	}

	assert.Eventually(t, func() bool { return r.getReloadCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, r.getReloadCount(), "burst of writes should reload once")
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	r := &mockReloadable{}
	_, path := startWatcher(t, r)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "report.json"), []byte(`{}`), 0644))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, r.getReloadCount())
}

func TestFileWatcher_ReloadError(t *testing.T) {
	t.Parallel()

	r := &mockReloadable{reloadErr: errors.New("corrupt graph")}
	_, path := startWatcher(t, r)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
	assert.Eventually(t, func() bool { return r.getReloadCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))
	assert.Eventually(t, func() bool { return r.getReloadCount() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcher_StopTwice(t *testing.T) {
	t.Parallel()

	fw, _ := startWatcher(t, &mockReloadable{})
	fw.Stop()
	assert.NotPanics(t, fw.Stop)
}
