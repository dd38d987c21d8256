package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ritzau/classpath-changes/pkg/classid"
	"github.com/ritzau/classpath-changes/pkg/snapshot"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <class-file>...",
	Short: "Show the identity and snapshot kind of individual class files",
	Long: `Snapshot the given class files as one batch and print, for each, the
class it declares, its nesting identity and whether it is a Kotlin, regular Java or empty snapshot.
Nested classes are only resolved against other files in the same batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	batch := make([]snapshot.ClassFileWithContents, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		batch[i] = snapshot.ClassFileWithContents{Path: filepath.ToSlash(path), Contents: data}
	}

	snaps, err := snapshot.NewSnapshotter().Snapshot(batch)
	if err != nil {
		return err
	}

	name := color.New(color.Bold)
	kind := color.New(color.FgCyan)
	if !colorize() {
		name.DisableColor()
		kind.DisableColor()
	}

	out := cmd.OutOrStdout()
	for i, snap := range snaps {
		fmt.Fprintf(out, "%s: ", args[i])
		kind.Fprint(out, snapshot.KindName(snap))
		if abi := snapshot.ABIOf(snap); abi != nil {
			fmt.Fprint(out, " ")
			name.Fprint(out, abi.ClassID.FqName())
		}
		if identity, err := classid.Classify(batch[i].Contents); err == nil {
			fmt.Fprintf(out, " [%s]", identity)
		}
		if abi := snapshot.ABIOf(snap); abi != nil {
			fmt.Fprintf(out, " (hash %016x)", abi.Hash)
		}
		fmt.Fprintln(out)
	}
	return nil
}
