package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/ritzau/classpath-changes/pkg/changes"
	"github.com/ritzau/classpath-changes/pkg/logging"
	"github.com/ritzau/classpath-changes/pkg/output"
	"github.com/ritzau/classpath-changes/pkg/snapshot"
	"github.com/ritzau/classpath-changes/pkg/watcher"
)

var diffCmd = &cobra.Command{
	Use:   "diff [entry...]",
	Short: "Report classpath changes since a previous snapshot",
	Long: `Snapshot the classpath and compare it with the snapshot in --previous.

When --output is set the new snapshot is saved there, ready to be passed as
--previous on the next run. With --watch the classpath is watched and a new
report is printed every time it changes.`,
	RunE: runDiff,
}

func init() {
	f := diffCmd.Flags()
	f.String("previous", "", "Snapshot file from the previous run")
	f.StringP("output", "o", "", "Save the current snapshot to this file")
	f.BoolP("watch", "w", false, "Watch the classpath and report changes continuously")
	f.Bool("full", false, "Non-incremental run: report no changes, only save the snapshot")
	f.Bool("no-snapshot", false, "Classpath snapshots are disabled: report no changes")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	computer := &changes.Computer{
		ScratchRoot:      cfg.Scratch,
		NonIncremental:   cfg.Full,
		SnapshotDisabled: cfg.NoSnapshot,
	}
	if cfg.NoSnapshot {
		return report(out, computer.Compute(ctx, nil, nil))
	}

	classpath, err := classpathFrom(args)
	if err != nil {
		return err
	}

	previous, err := loadPrevious(ctx, cfg.Previous)
	if err != nil {
		return err
	}

	current, err := snapshot.SnapshotClasspath(ctx, classpath, snapshot.Options{Parallelism: cfg.Parallelism})
	if err != nil {
		return err
	}

	if err := report(out, computer.Compute(ctx, current, previous)); err != nil {
		return err
	}
	if err := saveCurrent(current); err != nil {
		return err
	}

	if !cfg.Watch {
		return nil
	}
	// Later cycles diff against the snapshot taken here.
	computer.NonIncremental = false
	return watchClasspath(ctx, out, classpath, current, computer)
}

// loadPrevious returns nil when no previous snapshot exists yet; the computer
// reports that as MissingClasspathSnapshot.
func loadPrevious(ctx context.Context, path string) (*snapshot.ClasspathSnapshot, error) {
	if path == "" {
		return nil, nil
	}
	prev, err := snapshot.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.WarnContext(ctx, "previous snapshot not found", "path", path)
		return nil, nil
	}
	return prev, err
}

func saveCurrent(current *snapshot.ClasspathSnapshot) error {
	if cfg.Output == "" {
		return nil
	}
	return snapshot.SaveFile(cfg.Output, current)
}

func report(w io.Writer, result changes.ClasspathChanges) error {
	if cfg.Format == "json" {
		return output.WriteJSON(w, result)
	}
	output.PrintChanges(w, result, colorize())
	return nil
}

func watchClasspath(ctx context.Context, out io.Writer, classpath []string, current *snapshot.ClasspathSnapshot, computer *changes.Computer) error {
	cw, err := watcher.NewClasspathWatcher(classpath)
	if err != nil {
		return err
	}
	if err := cw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(cw.Events(), 500*time.Millisecond, 5*time.Second)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		affected := watcher.AffectedEntries(event, classpath)
		if len(affected) == 0 {
			continue
		}

		cycleCtx := logging.WithRunID(ctx, logging.NewRunID())
		logging.InfoContext(cycleCtx, "classpath changed", "entries", len(affected))

		next, err := resnapshot(cycleCtx, current, affected)
		if err != nil {
			logging.ErrorContext(cycleCtx, "failed to snapshot changed entries", "error", err)
			continue
		}

		if err := report(out, computer.Compute(cycleCtx, next, current)); err != nil {
			return err
		}
		if err := saveCurrent(next); err != nil {
			logging.ErrorContext(cycleCtx, "failed to save snapshot", "error", err)
		}
		current = next
	}
	return nil
}

// resnapshot re-reads only the affected entries and splices them into current.
func resnapshot(ctx context.Context, current *snapshot.ClasspathSnapshot, affected []string) (*snapshot.ClasspathSnapshot, error) {
	updated, err := snapshot.SnapshotClasspath(ctx, affected, snapshot.Options{Parallelism: cfg.Parallelism})
	if err != nil {
		return nil, err
	}
	return current.Replace(updated.Entries), nil
}
