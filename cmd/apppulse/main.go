// AppPulse - mobile app catalog pipeline and dashboard.
// Loads catalog and review CSVs into operational stores, extracts seed
// snapshots, builds a DuckDB star schema and serves dashboard metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apppulse/apppulse/pkg/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	verbose bool

	appsCSVFlag    string
	reviewsCSVFlag string
	seedsDirFlag   string
	warehouseFlag  string
	categoryFlag   string
	outputFlag     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "apppulse",
	Short: "AppPulse - app catalog pipeline and dashboard",
	Long: `AppPulse moves mobile app catalog and review data through a
load / extract / transform pipeline and serves the resulting metrics.

  load-apps      CSV catalog  -> Postgres
  load-reviews   CSV reviews  -> Redis
  extract-seeds  stores       -> seed snapshots
  transform      seeds        -> DuckDB star schema
  pipeline       all of the above, in dependency order
  serve          dashboard API over the warehouse`,
	Version: fmt.Sprintf("%s (%s)", version, commit),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	if err := config.Global().Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: config load failed: %v\n", err)
	}
}

func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	return ctx, cancel
}
