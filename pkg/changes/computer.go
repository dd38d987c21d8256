package changes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ritzau/classpath-changes/pkg/depcache"
	"github.com/ritzau/classpath-changes/pkg/logging"
	"github.com/ritzau/classpath-changes/pkg/snapshot"
)

// Computer diffs classpath snapshots by replaying them through a scratch
// dependency cache. It holds no state between calls; concurrent calls each
// get their own cache.
type Computer struct {
	// ScratchRoot is where per-call cache directories are created. Empty
	// means the OS temp dir.
	ScratchRoot string
	// NonIncremental marks a build that recompiles everything anyway.
	NonIncremental bool
	// SnapshotDisabled marks a build that does not track classpath
	// snapshots; previous and current are ignored.
	SnapshotDisabled bool
}

// NewComputer creates a computer using scratchRoot for temporary caches.
func NewComputer(scratchRoot string) *Computer {
	return &Computer{ScratchRoot: scratchRoot}
}

// Compute returns the changes from previous to current. Failures inside the
// cache are logged and reported as NotAvailable{UnableToCompute}.
func (c *Computer) Compute(ctx context.Context, current, previous *snapshot.ClasspathSnapshot) ClasspathChanges {
	log := logging.New("changes")
	start := time.Now()

	switch {
	case c.SnapshotDisabled:
		return NotAvailable{Reason: ClasspathSnapshotIsDisabled}
	case c.NonIncremental:
		return NotAvailable{Reason: ForNonIncrementalRun}
	case previous == nil:
		return NotAvailable{Reason: MissingClasspathSnapshot}
	}
	if current == nil {
		return NotAvailable{Reason: UnableToCompute}
	}

	result, err := c.compute(ctx, log, current, previous)
	if err != nil {
		log.Warn("incremental change detection unavailable, falling back to full recompilation", "error", err)
		return NotAvailable{Reason: UnableToCompute}
	}

	log.Info("computed classpath changes",
		"lookupSymbols", len(result.LookupSymbols),
		"fqNames", len(result.FqNames),
		"durationMs", time.Since(start).Milliseconds(),
	)
	return result
}

func (c *Computer) compute(ctx context.Context, log *slog.Logger, current, previous *snapshot.ClasspathSnapshot) (Available, error) {
	cache, err := depcache.Open(ctx, c.ScratchRoot)
	if err != nil {
		return Available{}, err
	}
	defer func() {
		if closeErr := cache.Close(); closeErr != nil {
			log.Warn("failed to discard scratch cache", "dir", cache.Dir(), "error", closeErr)
		}
	}()

	// Priming: record the previous build as the baseline.
	if err := cache.InTransaction(ctx, func() error {
		_, err := replay(ctx, cache, previous.Classes())
		return err
	}); err != nil {
		return Available{}, fmt.Errorf("priming pass: %w", err)
	}
	cache.Collector().Reset()

	// Diff: saving the current build reports every difference.
	if err := cache.InTransaction(ctx, func() error {
		seen, err := replay(ctx, cache, current.Classes())
		if err != nil {
			return err
		}
		return cache.RemoveAbsent(ctx, seen)
	}); err != nil {
		return Available{}, fmt.Errorf("diff pass: %w", err)
	}

	dirty, err := cache.DirtyData(ctx)
	if err != nil {
		return Available{}, fmt.Errorf("extract dirty data: %w", err)
	}
	return NewAvailable(dirty.LookupSymbols, dirty.FqNames), nil
}

// replay saves every class snapshot once per internal name; the first
// occurrence in classpath order wins, as it would for the compiler. It
// returns the internal names that were saved.
func replay(ctx context.Context, cache *depcache.Cache, classes []snapshot.ClassSnapshot) (map[string]struct{}, error) {
	seen := make(map[string]struct{}, len(classes))
	for _, cls := range classes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var rec depcache.Record
		switch cls := cls.(type) {
		case snapshot.KotlinClassSnapshot:
			if cls.ClassInfo.Kind == snapshot.KotlinSyntheticClass {
				// Lambdas and other synthetic classes have no referable ABI.
				continue
			}
			rec = depcache.KotlinRecord(cls.ClassInfo)
		case snapshot.RegularJavaClassSnapshot:
			rec = depcache.JavaRecord(cls.Descriptor)
		case snapshot.EmptyJavaClassSnapshot:
			continue
		default:
			return nil, fmt.Errorf("unexpected class snapshot %T", cls)
		}

		name := rec.ABI.ClassID.InternalName
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		logging.TraceContext(ctx, "replaying class", "class", name, "kind", string(rec.Kind))
		if err := cache.Save(ctx, rec); err != nil {
			return nil, err
		}
	}
	return seen, nil
}
