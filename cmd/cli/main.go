package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/dvloznov/swg-merchant/internal/analytics"
	"github.com/dvloznov/swg-merchant/internal/classifier"
	"github.com/dvloznov/swg-merchant/internal/config"
	"github.com/dvloznov/swg-merchant/internal/csvimport"
	"github.com/dvloznov/swg-merchant/internal/gcsuploader"
	infraBQ "github.com/dvloznov/swg-merchant/internal/infra/bigquery"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
	"github.com/dvloznov/swg-merchant/internal/logger"
	"github.com/dvloznov/swg-merchant/internal/pipeline"
	"github.com/dvloznov/swg-merchant/internal/report"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	var code int
	switch os.Args[1] {
	case "ingest":
		code = runIngest(cfg, os.Args[2:])
	case "recommend":
		code = runRecommend(cfg, os.Args[2:])
	case "report":
		code = runReport(cfg, os.Args[2:])
	case "import-csv":
		code = runImportCSV(cfg, os.Args[2:])
	case "reclassify":
		code = runReclassify(cfg, os.Args[2:])
	case "stats":
		code = runStats(cfg, os.Args[2:])
	case "runs":
		code = runRuns(cfg, os.Args[2:])
	case "check":
		code = runCheck(cfg, os.Args[2:])
	case "export-bq":
		code = runExportBQ(cfg, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		code = 1
	}
	os.Exit(code)
}

func printUsage() {
	fmt.Println("SWG Merchant CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest      Ingest .mail files from a file or directory")
	fmt.Println("  recommend   Restock items, hottest and trending categories")
	fmt.Println("  report      Periodic Markdown report with optional CSV extracts")
	fmt.Println("  import-csv  Import historical sales from a CSV export")
	fmt.Println("  reclassify  Re-apply the rule table to every stored row")
	fmt.Println("  stats       Customer lifetime value, revenue splits, yearly totals")
	fmt.Println("  runs        List recent ingestion runs")
	fmt.Println("  check       Verify customer rollups (-repair to recompute)")
	fmt.Println("  export-bq   Export new sales and purchases to BigQuery")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// common holds the flags every subcommand accepts.
type common struct {
	db       *string
	logLevel *string
}

func commonFlags(fs *flag.FlagSet, cfg config.Config) common {
	return common{
		db:       fs.String("db", cfg.DBPath, "Path to the SQLite database"),
		logLevel: fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)"),
	}
}

// setup creates the logger, a context cancelled on interrupt and the store.
func (c common) setup() (context.Context, func(), zerolog.Logger, *sqlite.Store, error) {
	log := logger.NewWithLevel(*c.logLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx = logger.WithContext(ctx, log)

	store, err := sqlite.Open(ctx, *c.db)
	if err != nil {
		stop()
		return nil, nil, log, nil, err
	}
	cleanup := func() {
		store.Close()
		stop()
	}
	return ctx, cleanup, log, store, nil
}

func runIngest(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	cf := commonFlags(fs, cfg)
	rulesFile := fs.String("rules", cfg.RulesFile, "Optional YAML rule table")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: cli ingest [options] <mail file or directory>")
		return 2
	}

	ctx, cleanup, log, store, err := cf.setup()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer cleanup()

	c, err := classifier.FromFile(*rulesFile)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load rules")
		return 1
	}

	paths, err := pipeline.DiscoverMailFiles(fs.Arg(0))
	if err != nil {
		log.Error().Err(err).Msg("Failed to discover mail files")
		return 1
	}

	sum, err := pipeline.NewIngestor(store, c).Run(ctx, fs.Arg(0), paths)
	if err != nil {
		log.Error().Err(err).Msg("Ingestion interrupted")
		return 1
	}
	printCounts(sum.RunID, sum.Counts)
	for _, p := range sum.FailedPaths {
		fmt.Printf("  failed: %s\n", p)
	}
	if sum.Counts.Failed > 0 {
		return 1
	}
	return 0
}

func runRecommend(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	cf := commonFlags(fs, cfg)
	days := fs.Int("days", cfg.Recommend.Days, "Lookback window in days")
	top := fs.Int("top", cfg.Recommend.Top, "Rows per section (0 for all)")
	minSales := fs.Int("min-sales", cfg.Recommend.MinSales, "Minimum sales for a restock candidate")
	professions := fs.String("professions", "", "Comma-separated professions to include")
	categories := fs.String("categories", "", "Comma-separated categories to include")
	fs.Parse(args)

	ctx, cleanup, log, store, err := cf.setup()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer cleanup()

	rec, err := analytics.NewEngine(store, nil).Recommend(ctx, analytics.RecommendOptions{
		Days:     *days,
		Top:      *top,
		MinSales: *minSales,
		Filter:   parseFilter(*professions, *categories),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute recommendations")
		return 1
	}
	fmt.Print(report.Recommendations(rec))
	return 0
}

func runReport(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	cf := commonFlags(fs, cfg)
	window := fs.String("window", "trailing", "Reporting window: trailing, ytd or all")
	months := fs.Int("months", cfg.Report.Months, "Months for the trailing window")
	professions := fs.String("professions", "", "Comma-separated professions to include")
	categories := fs.String("categories", "", "Comma-separated categories to include")
	out := fs.String("out", "", "Optional path to write the Markdown report")
	csvDir := fs.String("csv-dir", "", "Optional folder to write CSV extracts")
	bucket := fs.String("gcs-bucket", cfg.Report.GCSBucket, "Optional GCS bucket to publish the report to")
	fs.Parse(args)

	w, err := parseWindow(*window, *months)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cleanup, log, store, err := cf.setup()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer cleanup()

	r, err := analytics.NewEngine(store, nil).Report(ctx, analytics.ReportOptions{
		Window: w,
		Filter: parseFilter(*professions, *categories),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute report")
		return 1
	}
	md := report.Markdown(r)
	fmt.Print(md)

	if *out != "" {
		if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
			log.Error().Err(err).Msg("Failed to create output folder")
			return 1
		}
		if err := os.WriteFile(*out, []byte(md), 0o644); err != nil {
			log.Error().Err(err).Msg("Failed to write report")
			return 1
		}
		log.Info().Str("path", *out).Msg("Saved Markdown report")
	}
	if *csvDir != "" {
		written, err := report.WriteExtracts(*csvDir, r)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write CSV extracts")
			return 1
		}
		log.Info().Strs("files", written).Msg("Saved CSV extracts")
	}
	if *bucket != "" {
		extracts, err := report.Extracts(r)
		if err != nil {
			log.Error().Err(err).Msg("Failed to render CSV extracts")
			return 1
		}
		uris, err := gcsuploader.PublishReport(ctx, gcsuploader.NewGCSUploader(), *bucket, r.Label, r.GeneratedAt, md, extracts)
		if err != nil {
			log.Error().Err(err).Msg("Failed to publish report")
			return 1
		}
		for _, u := range uris {
			fmt.Fprintf(os.Stderr, "Uploaded %s\n", u)
		}
	}
	return 0
}

func runImportCSV(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("import-csv", flag.ExitOnError)
	cf := commonFlags(fs, cfg)
	rulesFile := fs.String("rules", cfg.RulesFile, "Optional YAML rule table for blank classifications")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: cli import-csv [options] <sales.csv>")
		return 2
	}

	ctx, cleanup, log, store, err := cf.setup()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer cleanup()

	c, err := classifier.FromFile(*rulesFile)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load rules")
		return 1
	}

	sum, err := csvimport.New(store, c).Import(ctx, fs.Arg(0))
	if err != nil {
		log.Error().Err(err).Msg("Import failed")
		return 1
	}
	printCounts(sum.RunID, sum.Counts)
	if len(sum.BadRows) > 0 {
		fmt.Printf("  bad rows: %v\n", sum.BadRows)
		return 1
	}
	return 0
}

func runReclassify(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("reclassify", flag.ExitOnError)
	cf := commonFlags(fs, cfg)
	rulesFile := fs.String("rules", cfg.RulesFile, "Optional YAML rule table")
	fs.Parse(args)

	ctx, cleanup, log, store, err := cf.setup()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer cleanup()

	c, err := classifier.FromFile(*rulesFile)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load rules")
		return 1
	}
	res, err := store.ReclassifyAll(ctx, c)
	if err != nil {
		log.Error().Err(err).Msg("Reclassification failed")
		return 1
	}
	fmt.Printf("Reclassified %d sale(s) and %d purchase(s).\n", res.Sales, res.Purchases)
	return 0
}

func runStats(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cf := commonFlags(fs, cfg)
	top := fs.Int("top", 20, "Customers to list (0 for all)")
	fs.Parse(args)

	ctx, cleanup, log, store, err := cf.setup()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer cleanup()

	d, err := loadStats(ctx, store, *top)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read stats")
		return 1
	}
	fmt.Print(report.Stats(d))
	return 0
}

func loadStats(ctx context.Context, store *sqlite.Store, top int) (report.StatsData, error) {
	var (
		d   report.StatsData
		err error
	)
	if d.Customers, err = store.CustomerLifetimeValues(ctx, top); err != nil {
		return d, err
	}
	if d.ByCategory, err = store.RevenueBy(ctx, sqlite.ByCategory); err != nil {
		return d, err
	}
	if d.ByProfession, err = store.RevenueBy(ctx, sqlite.ByProfession); err != nil {
		return d, err
	}
	d.Years, err = store.YearlyTotals(ctx)
	return d, err
}

func runRuns(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	cf := commonFlags(fs, cfg)
	limit := fs.Int("limit", 10, "Runs to list")
	fs.Parse(args)

	ctx, cleanup, log, store, err := cf.setup()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer cleanup()

	runs, err := store.ListRuns(ctx, *limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list runs")
		return 1
	}
	fmt.Print(report.Runs(runs))
	if len(runs) > 0 {
		fmt.Printf("Last run started %s.\n", humanize.Time(runs[0].StartedAt))
	}
	return 0
}

func runCheck(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	cf := commonFlags(fs, cfg)
	repair := fs.Bool("repair", false, "Recompute drifted rollups from sales")
	fs.Parse(args)

	ctx, cleanup, log, store, err := cf.setup()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer cleanup()

	drift, err := store.VerifyRollups(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to verify rollups")
		return 1
	}
	fmt.Print(report.Drift(drift))
	if len(drift) == 0 {
		return 0
	}
	if !*repair {
		return 1
	}
	n, err := store.RepairRollups(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to repair rollups")
		return 1
	}
	fmt.Printf("Repaired %d customer(s).\n", n)
	return 0
}

func runExportBQ(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("export-bq", flag.ExitOnError)
	cf := commonFlags(fs, cfg)
	project := fs.String("project", cfg.Export.Project, "GCP project ID (required)")
	dataset := fs.String("dataset", cfg.Export.Dataset, "BigQuery dataset ID")
	batch := fs.Int("batch", infraBQ.DefaultBatchSize, "Rows per insert")
	reconcile := fs.Bool("reconcile", false, "Advance watermarks to the warehouse MAX(id) first")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall export timeout")
	fs.Parse(args)

	if *project == "" {
		fmt.Fprintln(os.Stderr, "Error: -project (or MERCHANT_BQ_PROJECT) is required")
		return 2
	}

	ctx, cleanup, log, store, err := cf.setup()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return 1
	}
	defer cleanup()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	repo, err := infraBQ.NewRepository(ctx, *project, *dataset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create BigQuery repository")
		return 1
	}
	defer repo.Close()

	res, err := infraBQ.NewExporter(store, repo, nil).Export(ctx, infraBQ.ExportOptions{
		BatchSize: *batch,
		Reconcile: *reconcile,
	})
	fmt.Printf("Batch %s: exported %d sale(s) and %d purchase(s).\n", res.BatchID, res.Sales, res.Purchases)
	if err != nil {
		log.Error().Err(err).Msg("Export failed")
		return 1
	}
	return 0
}
