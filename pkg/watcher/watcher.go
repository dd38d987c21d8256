package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/classpath-changes/pkg/container"
	"github.com/ritzau/classpath-changes/pkg/logging"
)

// batchWindow groups raw fsnotify events before they are forwarded.
const batchWindow = 100 * time.Millisecond

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Paths     []string
	Timestamp time.Time
}

// ClasspathWatcher watches classpath entries for changes to class files and archives
type ClasspathWatcher struct {
	watcher  *fsnotify.Watcher
	dirs     []string
	archives map[string]bool
	events   chan ChangeEvent
}

// NewClasspathWatcher creates a watcher for the given classpath entries.
// Entries are made absolute so events can be matched against them.
func NewClasspathWatcher(classpath []string) (*ClasspathWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	cw := &ClasspathWatcher{
		watcher:  watcher,
		archives: make(map[string]bool),
		events:   make(chan ChangeEvent, 100),
	}
	for _, entry := range classpath {
		abs, err := filepath.Abs(entry)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", entry, err)
		}
		if container.IsArchivePath(abs) {
			cw.archives[abs] = true
		} else {
			cw.dirs = append(cw.dirs, abs)
		}
	}
	return cw, nil
}

// Start begins watching for file changes
func (cw *ClasspathWatcher) Start(ctx context.Context) error {
	watched := 0
	for _, dir := range cw.dirs {
		n, err := cw.watchTree(dir)
		if err != nil {
			logging.Warn("failed to watch directory entry", "path", dir, "error", err)
		}
		watched += n
	}

	// Archives are replaced rather than modified in place by most build tools,
	// so watch the containing directory and filter by name.
	parents := make(map[string]bool)
	for archive := range cw.archives {
		parent := filepath.Dir(archive)
		if parents[parent] {
			continue
		}
		parents[parent] = true
		if err := cw.watcher.Add(parent); err != nil {
			logging.Warn("failed to watch archive directory", "path", parent, "error", err)
			continue
		}
		watched++
	}

	logging.Info("started watching classpath", "dirs", len(cw.dirs), "archives", len(cw.archives), "watches", watched)

	go cw.processEvents(ctx)
	return nil
}

// watchTree adds a watch for root and every directory below it
func (cw *ClasspathWatcher) watchTree(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if err := cw.watcher.Add(path); err != nil {
			logging.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return count, nil
}

// relevant reports whether a changed path can affect a classpath snapshot
func (cw *ClasspathWatcher) relevant(path string) bool {
	if cw.archives[path] {
		return true
	}
	for _, dir := range cw.dirs {
		if isUnder(path, dir) {
			return strings.HasSuffix(path, ".class") || filepath.Ext(path) == ""
		}
	}
	return false
}

// processEvents processes file system events and batches them
func (cw *ClasspathWatcher) processEvents(ctx context.Context) {
	var pending []string

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		cw.events <- ChangeEvent{Paths: pending, Timestamp: time.Now()}
		pending = nil
	}

	defer close(cw.events)
	defer cw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.relevant(event.Name) {
				continue
			}

			// New directories inside a directory entry need their own watch
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if _, err := cw.watchTree(event.Name); err != nil {
						logging.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}

			logging.Trace("classpath change", "path", event.Name, "op", event.Op.String())
			pending = append(pending, event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (cw *ClasspathWatcher) Events() <-chan ChangeEvent {
	return cw.events
}

func isUnder(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
