package main

import (
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema.sql", true, 1, "init_schema"},
		{"0003_bq_exports.sql", true, 3, "bq_exports"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := sqlite.ParseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("ParseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.valid)
			}
			if version != tt.version || name != tt.name {
				t.Errorf("ParseMigrationFilename(%q) = %d, %q, want %d, %q", tt.filename, version, name, tt.version, tt.name)
			}
		})
	}
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	migrations, err := sqlite.ReadMigrations()
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no embedded migrations")
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d, want contiguous versions from 1", i, m.Version)
		}
		if m.Checksum == "" || strings.TrimSpace(m.SQL) == "" {
			t.Errorf("migration %04d_%s has empty SQL or checksum", m.Version, m.Name)
		}
	}
}

func TestStatusLines(t *testing.T) {
	at := time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)
	migrations := []sqlite.Migration{
		{Version: 1, Name: "init_schema", Checksum: "aaa"},
		{Version: 2, Name: "ingest_runs", Checksum: "bbb"},
		{Version: 3, Name: "bq_exports", Checksum: "ccc"},
	}
	applied := []sqlite.AppliedMigration{
		{Version: 1, Name: "init_schema", Checksum: "aaa", AppliedAt: at, AppliedBy: "store-open"},
		{Version: 2, Name: "ingest_runs", Checksum: "old", AppliedAt: at},
		{Version: 9, Name: "dropped", Checksum: "zzz", AppliedAt: at},
	}

	want := []string{
		"  [OK]      0001_init_schema (applied 2024-03-01 09:30 by store-open)",
		"  [CHANGED] 0002_ingest_runs (applied 2024-03-01 09:30)",
		"  [PENDING] 0003_bq_exports",
		"  [UNKNOWN] 0009_dropped (no longer embedded)",
	}
	got := statusLines(migrations, applied)
	if len(got) != len(want) {
		t.Fatalf("statusLines() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}
