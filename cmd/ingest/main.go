package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/dvloznov/swg-merchant/internal/classifier"
	"github.com/dvloznov/swg-merchant/internal/config"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
	"github.com/dvloznov/swg-merchant/internal/logger"
	"github.com/dvloznov/swg-merchant/internal/pipeline"
)

func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DBPath, "Path to the SQLite database")
	rulesFile := flag.String("rules", cfg.RulesFile, "Optional YAML rule table (defaults to the built-in rules)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ingest [options] <mail file or directory>")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logger.NewWithLevel(*logLevel)
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	// Interrupts stop the run between files; the run is still recorded.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	c, err := classifier.FromFile(*rulesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load rules")
	}

	store, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	paths, err := pipeline.DiscoverMailFiles(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to discover mail files")
	}
	log.Info().Str("target", flag.Arg(0)).Int("files", len(paths)).Msg("Starting ingestion")

	sum, err := pipeline.NewIngestor(store, c).Run(ctx, flag.Arg(0), paths)
	if err != nil {
		log.Error().Err(err).Msg("Ingestion interrupted")
		store.Close()
		os.Exit(1)
	}

	fmt.Printf("Run %s: %d seen, %d inserted, %d linked, %d completed, %d updated, %d skipped, %d ignored, %d failed\n",
		sum.RunID, sum.Counts.Seen, sum.Counts.Inserted, sum.Counts.Linked, sum.Counts.Completed,
		sum.Counts.Updated, sum.Counts.Skipped, sum.Counts.Ignored, sum.Counts.Failed)
	if sum.Counts.Failed > 0 {
		store.Close()
		os.Exit(1)
	}
}
