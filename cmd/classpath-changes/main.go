package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ritzau/classpath-changes/pkg/config"
	"github.com/ritzau/classpath-changes/pkg/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "classpath-changes",
	Short: "Detect ABI changes between classpath snapshots",
	Long: `classpath-changes snapshots the classes on a JVM classpath and reports
which classes and lookup symbols changed since a previous snapshot, so that
an incremental compiler only recompiles what depends on them.

Settings are read from flags, CLASSPATH_CHANGES_* environment variables and
an optional classpath-changes.toml in the working directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded

		level := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
		if cfg.Quiet {
			level = logging.ParseLevel("quiet", 0)
		}
		if cfg.LogJSON {
			logging.SetJSONOutput(level)
		} else {
			logging.SetLevel(level)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSlice("classpath", nil, "Classpath entries (directories or .jar/.zip archives)")
	pf.String("scratch", os.TempDir(), "Directory for temporary dependency caches")
	pf.Int("parallelism", 4, "Number of classpath entries snapshotted concurrently")
	pf.String("format", "text", "Report format: text or json")
	pf.Bool("color", true, "Colorize the text report")
	pf.BoolP("quiet", "q", false, "Only log errors")
	pf.String("verbosity", "", "Log level: trace, debug, info, warn or error")
	pf.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	pf.Bool("log-json", false, "Write logs as JSON")
}

// classpathFrom prefers positional arguments over the configured classpath.
func classpathFrom(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(cfg.Classpath) > 0 {
		return cfg.Classpath, nil
	}
	return nil, fmt.Errorf("no classpath given: pass entries as arguments or set --classpath")
}

func colorize() bool {
	return cfg.Color && !color.NoColor
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logging.WithRunID(ctx, logging.NewRunID())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
