package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/dvloznov/swg-merchant/internal/config"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
	"github.com/dvloznov/swg-merchant/internal/logger"
)

func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DBPath, "Path to the SQLite database")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	status := flag.Bool("status", false, "List migrations and whether they are applied, without applying")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	db, err := sqlite.Connect(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	log.Info().Str("db", *dbPath).Msg("Connected to database")

	if *status {
		if err := printStatus(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to read migration status")
		}
		return
	}

	ran, err := sqlite.Migrate(ctx, db, *appliedBy)
	for _, m := range ran {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applied migration")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if len(ran) == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("count", len(ran)).Msg("Successfully applied migrations")
	}
}

func printStatus(ctx context.Context, db *sql.DB) error {
	migrations, err := sqlite.ReadMigrations()
	if err != nil {
		return err
	}
	applied, err := sqlite.AppliedMigrations(ctx, db)
	if err != nil {
		return err
	}
	for _, line := range statusLines(migrations, applied) {
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}

// statusLines renders one line per known or applied migration.
func statusLines(migrations []sqlite.Migration, applied []sqlite.AppliedMigration) []string {
	byVersion := make(map[int]sqlite.AppliedMigration, len(applied))
	for _, am := range applied {
		byVersion[am.Version] = am
	}

	var lines []string
	for _, m := range migrations {
		am, ok := byVersion[m.Version]
		switch {
		case !ok:
			lines = append(lines, fmt.Sprintf("  [PENDING] %04d_%s", m.Version, m.Name))
		case am.Checksum != "" && am.Checksum != m.Checksum:
			lines = append(lines, fmt.Sprintf("  [CHANGED] %04d_%s (applied %s)", m.Version, m.Name, am.AppliedAt.Format("2006-01-02 15:04")))
		default:
			lines = append(lines, fmt.Sprintf("  [OK]      %04d_%s (applied %s by %s)", m.Version, m.Name, am.AppliedAt.Format("2006-01-02 15:04"), am.AppliedBy))
		}
		delete(byVersion, m.Version)
	}
	for _, am := range applied {
		if _, unknown := byVersion[am.Version]; unknown {
			lines = append(lines, fmt.Sprintf("  [UNKNOWN] %04d_%s (no longer embedded)", am.Version, am.Name))
		}
	}
	return lines
}
