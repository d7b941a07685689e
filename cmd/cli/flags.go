package main

import (
	"fmt"
	"strings"

	"github.com/dvloznov/swg-merchant/internal/analytics"
	"github.com/dvloznov/swg-merchant/internal/domain"
)

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFilter(professions, categories string) analytics.Filter {
	return analytics.Filter{
		Professions: splitList(professions),
		Categories:  splitList(categories),
	}
}

func parseWindow(kind string, months int) (analytics.Window, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "trailing", "months":
		return analytics.Window{Kind: analytics.TrailingMonths, Months: months}, nil
	case "ytd", "year-to-date":
		return analytics.Window{Kind: analytics.YearToDate}, nil
	case "all", "all-history":
		return analytics.Window{Kind: analytics.AllHistory}, nil
	default:
		return analytics.Window{}, fmt.Errorf("unknown window %q (want trailing, ytd or all)", kind)
	}
}

func formatCounts(runID string, c domain.RunCounts) string {
	return fmt.Sprintf("Run %s: %d seen, %d inserted, %d linked, %d completed, %d updated, %d skipped, %d ignored, %d failed",
		runID, c.Seen, c.Inserted, c.Linked, c.Completed, c.Updated, c.Skipped, c.Ignored, c.Failed)
}

func printCounts(runID string, c domain.RunCounts) {
	fmt.Println(formatCounts(runID, c))
}
