package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/apppulse/apppulse/pkg/config"
	"github.com/apppulse/apppulse/pkg/export"
	"github.com/apppulse/apppulse/pkg/loader"
	"github.com/apppulse/apppulse/pkg/pipeline"
	"github.com/apppulse/apppulse/pkg/query"
	"github.com/apppulse/apppulse/pkg/seed"
	"github.com/apppulse/apppulse/pkg/store"
	"github.com/apppulse/apppulse/pkg/telemetry"
	"github.com/apppulse/apppulse/pkg/tui"
	"github.com/apppulse/apppulse/pkg/warehouse"
	"github.com/apppulse/apppulse/pkg/watch"
)

var loadAppsCmd = &cobra.Command{
	Use:   "load-apps",
	Short: "Load the app catalog CSV into the relational store",
	Long: `Read the catalog CSV, normalize its rows and replace the current
generation in Postgres, then write the apps seed snapshot.

Examples:
  apppulse load-apps
  apppulse load-apps --apps-csv data/google_play_apps.csv`,
	RunE: runLoadApps,
}

var loadReviewsCmd = &cobra.Command{
	Use:   "load-reviews",
	Short: "Load the user reviews CSV into the document store",
	Long: `Read the reviews CSV and replace the current generation in Redis,
then write the reviews seed snapshot.`,
	RunE: runLoadReviews,
}

var extractSeedsCmd = &cobra.Command{
	Use:   "extract-seeds",
	Short: "Write seed snapshots from the operational stores",
	Long: `Read the current generations back from Postgres and Redis and
write both seed CSV snapshots. Useful to refresh seeds without
re-reading the raw sources.`,
	RunE: runExtractSeeds,
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Rebuild the warehouse star schema from the seed snapshots",
	RunE:  runTransform,
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the full pipeline: parallel loads, then transform",
	Long: `Run both source loads in parallel (each load writes its seed
snapshot), then rebuild the warehouse. Connection failures are retried
per the configured budget; data errors fail the stage immediately.`,
	RunE: runPipeline,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a dashboard payload to an XLSX workbook",
	Long: `Query the warehouse and write the dashboard result sets for one
category (or all categories) as a spreadsheet.

Examples:
  apppulse export -o dashboard.xlsx
  apppulse export --category GAME -o game.xlsx`,
	RunE: runExport,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the pipeline whenever a source CSV changes",
	RunE:  runWatch,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfig,
}

func init() {
	for _, cmd := range []*cobra.Command{loadAppsCmd, pipelineCmd, watchCmd} {
		cmd.Flags().StringVar(&appsCSVFlag, "apps-csv", "", "Catalog CSV path (overrides config)")
	}
	for _, cmd := range []*cobra.Command{loadReviewsCmd, pipelineCmd, watchCmd} {
		cmd.Flags().StringVar(&reviewsCSVFlag, "reviews-csv", "", "Reviews CSV path (overrides config)")
	}
	for _, cmd := range []*cobra.Command{loadAppsCmd, loadReviewsCmd, extractSeedsCmd, transformCmd, pipelineCmd, watchCmd} {
		cmd.Flags().StringVar(&seedsDirFlag, "seeds-dir", "", "Seed snapshot directory (overrides config)")
	}
	for _, cmd := range []*cobra.Command{transformCmd, pipelineCmd, exportCmd, watchCmd} {
		cmd.Flags().StringVar(&warehouseFlag, "warehouse", "", "DuckDB warehouse path (overrides config)")
	}

	exportCmd.Flags().StringVar(&categoryFlag, "category", "", "Category filter (empty for all)")
	exportCmd.Flags().StringVarP(&outputFlag, "output", "o", "dashboard.xlsx", "Output workbook path")

	rootCmd.AddCommand(loadAppsCmd)
	rootCmd.AddCommand(loadReviewsCmd)
	rootCmd.AddCommand(extractSeedsCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// effectiveConfig overlays CLI flags on a copy of the loaded
// configuration, so overrides never leak back into the global manager.
func effectiveConfig() *config.Config {
	c := *config.Global().Get()
	cfg := &c
	if appsCSVFlag != "" {
		cfg.Sources.AppsCSV = appsCSVFlag
	}
	if reviewsCSVFlag != "" {
		cfg.Sources.ReviewsCSV = reviewsCSVFlag
	}
	if seedsDirFlag != "" {
		cfg.Seeds.Dir = seedsDirFlag
	}
	if warehouseFlag != "" {
		cfg.Warehouse.Path = warehouseFlag
	}
	return cfg
}

func runLoadApps(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := effectiveConfig()
	return loadAppsStage(ctx, cfg, true)
}

func runLoadReviews(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := effectiveConfig()
	return loadReviewsStage(ctx, cfg, true)
}

// loadAppsStage loads the catalog into Postgres and refreshes the apps
// seed snapshot. The seed write belongs to the load stage so the
// snapshot can never describe a generation other than the one just
// loaded.
func loadAppsStage(ctx context.Context, cfg *config.Config, report bool) error {
	rel, err := store.OpenRelational(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer rel.Close()

	var opts loader.Options
	finish := func() {}
	if report {
		bar := tui.ShowProgress(-1, "loading catalog")
		opts.OnProgress = func(n int) { _ = bar.Set64(int64(n)) }
		finish = func() { _ = bar.Finish() }
	}
	res, err := loader.LoadApps(ctx, cfg.Sources.AppsCSV, rel, opts)
	finish()
	if err != nil {
		return err
	}
	if report {
		tui.PrintLoadResult("CATALOG", res)
	}

	seedRes, err := seed.ExtractApps(ctx, rel, cfg.Seeds.Dir)
	if err != nil {
		return err
	}
	if report {
		fmt.Printf("  Seed: %s (%d rows)\n", seedRes.Path, seedRes.Rows)
	}
	return nil
}

func loadReviewsStage(ctx context.Context, cfg *config.Config, report bool) error {
	doc, err := store.OpenDocument(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer doc.Close()

	var opts loader.Options
	finish := func() {}
	if report {
		bar := tui.ShowProgress(-1, "loading reviews")
		opts.OnProgress = func(n int) { _ = bar.Set64(int64(n)) }
		finish = func() { _ = bar.Finish() }
	}
	res, err := loader.LoadReviews(ctx, cfg.Sources.ReviewsCSV, doc, opts)
	finish()
	if err != nil {
		return err
	}
	if report {
		tui.PrintLoadResult("REVIEWS", res)
	}

	seedRes, err := seed.ExtractReviews(ctx, doc, cfg.Seeds.Dir)
	if err != nil {
		return err
	}
	if report {
		fmt.Printf("  Seed: %s (%d rows)\n", seedRes.Path, seedRes.Rows)
	}
	return nil
}

func runExtractSeeds(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := effectiveConfig()

	rel, err := store.OpenRelational(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer rel.Close()

	doc, err := store.OpenDocument(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer doc.Close()

	appsRes, err := seed.ExtractApps(ctx, rel, cfg.Seeds.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("  %s: %d rows\n", appsRes.Path, appsRes.Rows)

	reviewsRes, err := seed.ExtractReviews(ctx, doc, cfg.Seeds.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("  %s: %d rows\n", reviewsRes.Path, reviewsRes.Rows)
	return nil
}

func runTransform(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := effectiveConfig()
	return transformStage(ctx, cfg, true)
}

func transformStage(ctx context.Context, cfg *config.Config, report bool) error {
	appsSeed := seed.AppsContract.Filename()
	reviewsSeed := seed.ReviewsContract.Filename()

	var done chan bool
	if report {
		done = make(chan bool)
		go tui.Spinner("Rebuilding warehouse", done)
	}
	res, err := warehouse.Transform(ctx,
		cfg.Warehouse.Path,
		seedPath(cfg.Seeds.Dir, appsSeed),
		seedPath(cfg.Seeds.Dir, reviewsSeed))
	if report {
		close(done)
	}
	if err != nil {
		return err
	}

	if report {
		fmt.Println()
		for table, rows := range res.Rows {
			fmt.Printf("  %-16s %d rows\n", table, rows)
		}
		fmt.Printf("  Rebuilt in %s\n", res.Duration.Round(time.Millisecond))
	}
	return nil
}

func seedPath(dir, name string) string {
	return filepath.Join(dir, name)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := effectiveConfig()

	if cfg.Telemetry.Enabled {
		otlp := telemetry.DefaultOTLPConfig("apppulse")
		otlp.ServiceVersion = version
		if cfg.Telemetry.Endpoint != "" {
			otlp.Endpoint = cfg.Telemetry.Endpoint
		}
		shutdown, err := telemetry.NewExporter(otlp).Init(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: telemetry init failed: %v\n", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	tui.PrintHeader(version)
	results, err := executePipeline(ctx, cfg)
	tui.PrintStageSummary(results)
	return err
}

// executePipeline runs the two loads in parallel, then the transform.
func executePipeline(ctx context.Context, cfg *config.Config) ([]pipeline.StageResult, error) {
	retries := cfg.Pipeline.Retries
	backoff := cfg.Pipeline.Backoff

	plan := pipeline.Plan{
		Parallel: []pipeline.Stage{
			{
				Name:    "load-apps",
				Retries: retries,
				Backoff: backoff,
				Run: func(ctx context.Context) error {
					return loadAppsStage(ctx, cfg, false)
				},
			},
			{
				Name:    "load-reviews",
				Retries: retries,
				Backoff: backoff,
				Run: func(ctx context.Context) error {
					return loadReviewsStage(ctx, cfg, false)
				},
			},
		},
		Then: []pipeline.Stage{
			{
				Name:    "transform",
				Retries: retries,
				Backoff: backoff,
				Run: func(ctx context.Context) error {
					return transformStage(ctx, cfg, false)
				},
			},
		},
	}

	return pipeline.NewRunner().Execute(ctx, plan)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := effectiveConfig()

	db, err := warehouse.Open(cfg.Warehouse.Path, true)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := query.NewService(db, query.Config{
		TopN:      cfg.Query.TopN,
		SampleCap: cfg.Query.SampleCap,
	})

	data, err := svc.Dashboard(ctx, categoryFlag)
	if err != nil {
		return err
	}

	if err := export.WriteXLSX(data, outputFlag); err != nil {
		return err
	}

	tui.PrintDashboardSummary(data)
	fmt.Printf("  Workbook: %s\n", outputFlag)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := effectiveConfig()

	w, err := watch.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, path := range []string{cfg.Sources.AppsCSV, cfg.Sources.ReviewsCSV} {
		if err := w.Watch(path); err != nil {
			return err
		}
	}

	w.OnChange = func(path string) error {
		fmt.Printf("  Change detected: %s\n", path)
		results, err := executePipeline(ctx, cfg)
		tui.PrintStageSummary(results)
		return err
	}
	w.OnError = func(path string, err error) {
		fmt.Fprintf(os.Stderr, "  watch error (%s): %v\n", path, err)
	}

	fmt.Println("  Watching sources. Press Ctrl+C to stop.")
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := effectiveConfig()

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	os.Stdout.Write(out)

	paths := config.Global().GetPaths()
	if len(paths) > 0 {
		fmt.Println()
		fmt.Println("# loaded from:")
		for _, p := range paths {
			fmt.Printf("#   %s\n", p)
		}
	}
	return nil
}
