package indexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is invoked with the relative paths changed since the last call.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches the root directory for source changes and triggers a new
// extraction once the changes settle.
type Watcher struct {
	discovery    *FileDiscovery
	rootDir      string
	onChange     ChangeFunc
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	logger       *slog.Logger
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
}

// NewWatcher creates a watcher over every directory selected by discovery.
func NewWatcher(discovery *FileDiscovery, onChange ChangeFunc, logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		discovery:    discovery,
		rootDir:      discovery.rootDir,
		onChange:     onChange,
		watcher:      watcher,
		debounceTime: DefaultDebounce,
		logger:       logger,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	// Add directories to watcher recursively
	if err := w.addDirectoriesRecursively(w.rootDir); err != nil {
		watcher.Close()
		return nil, err
	}

	return w, nil
}

// SetDebounce overrides DefaultDebounce. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounceTime = d
}

// Start begins watching for file changes.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the file watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh // Wait for goroutine to finish
		w.watcher.Close()
	})
}

// watch is the main event loop with debouncing logic.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	fireCh := make(chan struct{}, 1)
	changedFiles := make(map[string]bool)

	stopTimer := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return

		case <-w.stopCh:
			stopTimer()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Handle new directories - add them to watcher
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if w.shouldWatchDirectory(event.Name) {
						if err := w.addDirectoriesRecursively(event.Name); err != nil {
							w.logger.Warn("watch.dir.err", "path", event.Name, "err", err)
						}
					}
					continue
				}
			}

			relPath, ok := w.relevant(event)
			if !ok {
				continue
			}
			changedFiles[relPath] = true

			// Restart the debounce window
			stopTimer()
			debounceTimer = time.AfterFunc(w.debounceTime, func() {
				select {
				case fireCh <- struct{}{}:
				default:
				}
			})

		case <-fireCh:
			if len(changedFiles) == 0 {
				continue
			}
			changed := make([]string, 0, len(changedFiles))
			for f := range changedFiles {
				changed = append(changed, f)
			}
			sort.Strings(changed)
			changedFiles = make(map[string]bool)

			w.logger.Info("watch.change", "files", len(changed))
			w.onChange(ctx, changed)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch.err", "err", err)
		}
	}
}

// relevant returns the relative path of an event that should trigger a run.
func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	// Only care about WRITE, CREATE, REMOVE and RENAME events
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}

	relPath, err := filepath.Rel(w.rootDir, event.Name)
	if err != nil {
		return "", false
	}
	relPath = filepath.ToSlash(relPath)

	return relPath, w.discovery.Matches(relPath)
}

// shouldWatchDirectory checks if a directory should be watched.
func (w *Watcher) shouldWatchDirectory(path string) bool {
	relPath, err := filepath.Rel(w.rootDir, path)
	if err != nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	return relPath == "." || !w.discovery.shouldIgnore(relPath)
}

// addDirectoriesRecursively adds all directories in the tree to the watcher.
func (w *Watcher) addDirectoriesRecursively(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Continue - don't fail the entire watch for one directory
			w.logger.Warn("watch.dir.err", "path", path, "err", err)
			return nil
		}

		if !info.IsDir() {
			return nil
		}

		if !w.shouldWatchDirectory(path) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("watch.dir.err", "path", path, "err", err)
		}
		return nil
	})
}
