package snapshot

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/classpath-changes/pkg/container"
	"github.com/ritzau/classpath-changes/pkg/logging"
)

// DefaultParallelism bounds how many classpath elements are snapshotted at once.
const DefaultParallelism = 4

// Options configures SnapshotClasspath.
type Options struct {
	Parallelism int
	Filter      container.Filter
}

func (o Options) withDefaults() Options {
	if o.Parallelism <= 0 {
		o.Parallelism = DefaultParallelism
	}
	if o.Filter == nil {
		o.Filter = container.ClassFileFilter
	}
	return o
}

// SnapshotEntry reads one classpath element and snapshots all of its classes
// as a single batch.
func SnapshotEntry(ctx context.Context, path string, filter container.Filter, s *Snapshotter) (ClasspathEntrySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return ClasspathEntrySnapshot{}, err
	}
	if filter == nil {
		filter = container.ClassFileFilter
	}

	start := time.Now()
	entries, err := container.Read(path, filter)
	if err != nil {
		return ClasspathEntrySnapshot{}, fmt.Errorf("read classpath entry: %w", err)
	}

	batch := make([]ClassFileWithContents, 0, entries.Len())
	for _, e := range entries.All() {
		batch = append(batch, ClassFileWithContents{Path: e.Path, Contents: e.Content})
	}
	snapshots, err := s.Snapshot(batch)
	if err != nil {
		return ClasspathEntrySnapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(snapshots) != len(batch) {
		return ClasspathEntrySnapshot{}, fmt.Errorf("%s: got %d snapshots for %d classes", path, len(snapshots), len(batch))
	}

	classes := make([]ClassEntry, len(batch))
	for i, c := range batch {
		classes[i] = ClassEntry{Path: c.Path, Snapshot: snapshots[i]}
	}

	logging.DebugContext(ctx, "snapshotted classpath entry",
		"path", path,
		"classes", len(classes),
		"durationMs", time.Since(start).Milliseconds(),
	)
	return ClasspathEntrySnapshot{Entry: path, Classes: classes}, nil
}

// SnapshotClasspath snapshots every element of a classpath. Elements are
// independent and run concurrently; the result keeps classpath order. Any
// failing element fails the whole snapshot.
func SnapshotClasspath(ctx context.Context, paths []string, opts Options) (*ClasspathSnapshot, error) {
	opts = opts.withDefaults()
	entries := make([]ClasspathEntrySnapshot, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for i, p := range paths {
		g.Go(func() error {
			entry, err := SnapshotEntry(ctx, p, opts.Filter, NewSnapshotter())
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ClasspathSnapshot{Entries: entries}, nil
}

// Replace returns a copy of s with the entries for the given paths swapped
// for fresh ones. Used by watch mode to re-snapshot only what changed.
func (s *ClasspathSnapshot) Replace(updated []ClasspathEntrySnapshot) *ClasspathSnapshot {
	byPath := make(map[string]ClasspathEntrySnapshot, len(updated))
	for _, u := range updated {
		byPath[u.Entry] = u
	}
	out := &ClasspathSnapshot{Entries: make([]ClasspathEntrySnapshot, len(s.Entries))}
	for i, e := range s.Entries {
		if u, ok := byPath[e.Entry]; ok {
			out.Entries[i] = u
			continue
		}
		out.Entries[i] = e
	}
	return out
}
