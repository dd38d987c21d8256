package main

import (
	"github.com/spf13/cobra"

	"github.com/ritzau/classpath-changes/pkg/logging"
	"github.com/ritzau/classpath-changes/pkg/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [entry...]",
	Short: "Snapshot a classpath and write it to a file or stdout",
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringP("output", "o", "", "Write the snapshot to this file instead of stdout")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	classpath, err := classpathFrom(args)
	if err != nil {
		return err
	}

	snap, err := snapshot.SnapshotClasspath(ctx, classpath, snapshot.Options{Parallelism: cfg.Parallelism})
	if err != nil {
		return err
	}
	logging.InfoContext(ctx, "snapshotted classpath", "entries", len(snap.Entries), "classes", len(snap.Classes()))

	if cfg.Output == "" {
		return snapshot.Encode(cmd.OutOrStdout(), snap)
	}
	return snapshot.SaveFile(cfg.Output, snap)
}
