package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/swg-merchant/internal/analytics"
	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
)

func sampleReport() *analytics.Report {
	return &analytics.Report{
		Label:       "Year-To-Date",
		GeneratedAt: time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC),
		PeriodStart: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Filter:      analytics.Filter{Categories: []string{"Medicine"}},
		KPIs: analytics.KPIs{
			Revenue:     1234567,
			Spend:       200,
			GrossMargin: 1234367,
			SalesCount:  3,
			AvgSale:     decimal.NewFromInt(411522),
		},
		MonthlySales: []analytics.MonthTrend{
			{Month: "2024-01", Count: 2, Credits: 1100, DeltaCount: 2, DeltaCredits: 1100},
			{Month: "2024-02", Count: 1, Credits: 500, PrevCount: 2, PrevCredits: 1100, DeltaCount: -1, DeltaCredits: -600},
		},
		CategoryMargin: []analytics.Margin{
			{Category: "Medicine", SalesCredits: 1600, PurchaseCredits: 200, Margin: 1400},
		},
		Customers: analytics.CustomerSummary{
			Active:            3,
			RepeatRate:        decimal.RequireFromString("66.7"),
			AvgSpendPerActive: decimal.RequireFromString("1533.33"),
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleReport())

	wants := []string{
		"# SWG Merchant: Year-To-Date Report",
		"_Period: 2024-01-01 to 2024-03-01 (UTC)_",
		"_Filter: categories=Medicine_",
		"| Revenue (credits)      | 1,234,567 |",
		"| 2024-02 | 1     | 500     | 2          | 1,100        | -1          | -600          |",
		"| Medicine | 1,600 | 200       | 1,400  |",
		"| Repeat purchase rate",
		"66.7%",
		"1,533.33",
		"## Top 10 Purchase Vendors (by spend)\n\n_No data._",
	}
	for _, want := range wants {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q\n%s", want, md)
		}
	}
}

func TestTableMarkdown(t *testing.T) {
	tbl := newTable("Item", "Sold")
	tbl.add("Bacta Tank", "5")
	tbl.add("Power Hypo", "3")

	want := "| Item       | Sold |\n" +
		"| ---------- | ---- |\n" +
		"| Bacta Tank | 5    |\n" +
		"| Power Hypo | 3    |\n"
	if got := tbl.markdown(); got != want {
		t.Errorf("markdown() =\n%s\nwant\n%s", got, want)
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"940", "940"},
		{"1234567", "1,234,567"},
		{"1533.33", "1,533.33"},
		{"0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := amount(decimal.RequireFromString(tt.in)); got != tt.want {
				t.Errorf("amount(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecommendations(t *testing.T) {
	rec := &analytics.Recommendations{
		Since: time.Date(2024, time.February, 19, 0, 0, 0, 0, time.UTC),
		Restock: []analytics.ItemStat{
			{Item: "Bacta Tank", Sold: 5, Credits: 2500},
		},
		Trending: []analytics.Trend{
			{Category: "Rifle", Current: 3000, Delta: 3000, New: true},
		},
		CurrentMonth:  "2024-03",
		PreviousMonth: "2024-02",
	}
	md := Recommendations(rec)
	for _, want := range []string{
		"# Recommendations since 2024-02-19",
		"| Bacta Tank | 5    | 2,500   | -         |",
		"## Hottest Categories\n\n_No data._",
		"## Trending Categories (2024-03 vs 2024-02)",
		"+3,000",
		"| new    |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Recommendations() missing %q\n%s", want, md)
		}
	}
}

func TestWriteExtracts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "csv")
	paths, err := WriteExtracts(dir, sampleReport())
	if err != nil {
		t.Fatalf("WriteExtracts() error = %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("WriteExtracts() wrote %v, want 3 files", paths)
	}

	data, err := os.ReadFile(filepath.Join(dir, MonthlySalesCSV))
	if err != nil {
		t.Fatalf("read monthly sales: %v", err)
	}
	want := "month,count,credits,prev_count,prev_credits,delta_count,delta_credits\n" +
		"2024-01,2,1100,0,0,2,1100\n" +
		"2024-02,1,500,2,1100,-1,-600\n"
	if string(data) != want {
		t.Errorf("monthly_sales.csv =\n%s\nwant\n%s", data, want)
	}

	data, err = os.ReadFile(filepath.Join(dir, CategoryMarginCSV))
	if err != nil {
		t.Fatalf("read category margin: %v", err)
	}
	if want := "category,sales_credits,purchase_credits,margin\nMedicine,1600,200,1400\n"; string(data) != want {
		t.Errorf("category_margin.csv = %q, want %q", data, want)
	}

	data, err = os.ReadFile(filepath.Join(dir, MonthlyPurchasesCSV))
	if err != nil {
		t.Fatalf("read monthly purchases: %v", err)
	}
	if !strings.HasPrefix(string(data), "month,count") || strings.Count(string(data), "\n") != 1 {
		t.Errorf("monthly_purchases.csv = %q, want header only", data)
	}
}

func TestStats(t *testing.T) {
	out := Stats(StatsData{
		Customers: []sqlite.CustomerValue{
			{Name: "hara", Total: 150500, Orders: 2,
				FirstSale: time.Date(2023, time.February, 13, 0, 0, 0, 0, time.UTC),
				LastSale:  time.Date(2023, time.February, 14, 0, 0, 0, 0, time.UTC)},
		},
		ByCategory: []sqlite.GroupTotal{{Key: "Grind Kit", Count: 1, Total: 150000}},
		Years:      []sqlite.YearTotal{{Year: 2023, SalesCount: 2, SalesTotal: 150500, PurchasesCount: 1, PurchasesTotal: 500}},
	})
	for _, want := range []string{
		"| 1 | hara     | 2      | 150,500 | 2023-02-13 | 2023-02-14 |",
		"| Grind Kit | 1     | 150,000 |",
		"## Revenue by Profession\n\n_No data._",
		"| 2023 | 2     | 150,500 | 1         | 500   | 150,000 |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Stats() missing %q\n%s", want, out)
		}
	}
}

func TestDrift(t *testing.T) {
	if got := Drift(nil); got != "Rollups consistent.\n" {
		t.Errorf("Drift(nil) = %q", got)
	}
	out := Drift([]sqlite.RollupDrift{{Name: "han", StoredSpent: 900, ActualSpent: 500, StoredCount: 2, ActualCount: 1}})
	if !strings.HasPrefix(out, "1 customer(s) with drifted rollups") || !strings.Contains(out, "| han      | 900") {
		t.Errorf("Drift() = %q", out)
	}
}

func TestRuns(t *testing.T) {
	out := Runs([]*domain.IngestRun{{
		ID:        "run-1",
		Source:    "/mail",
		StartedAt: time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC),
		Status:    domain.RunSuccess,
		Counts:    domain.RunCounts{Seen: 3, Inserted: 2, Skipped: 1},
	}})
	if !strings.Contains(out, "| run-1 | /mail  | 2024-03-01 09:30:00 | SUCCESS | 3    | 2        |") {
		t.Errorf("Runs() = %s", out)
	}
}
