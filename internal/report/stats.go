package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
)

// StatsData is the all-time read surface shown by the stats command.
type StatsData struct {
	Customers    []sqlite.CustomerValue
	ByCategory   []sqlite.GroupTotal
	ByProfession []sqlite.GroupTotal
	Years        []sqlite.YearTotal
}

// Stats renders lifetime customer value, revenue splits and yearly totals.
func Stats(d StatsData) string {
	var b strings.Builder

	customers := newTable("#", "Customer", "Orders", "Credits", "First Sale", "Last Sale")
	for i, c := range d.Customers {
		customers.add(strconv.Itoa(i+1), c.Name, credits(c.Orders), credits(c.Total), date(c.FirstSale), date(c.LastSale))
	}
	writeSection(&b, "Customer Lifetime Value", customers)

	writeSection(&b, "Revenue by Category", totalsTable("Category", d.ByCategory))
	writeSection(&b, "Revenue by Profession", totalsTable("Profession", d.ByProfession))

	years := newTable("Year", "Sales", "Revenue", "Purchases", "Spend", "Margin")
	for _, y := range d.Years {
		years.add(strconv.Itoa(y.Year), credits(y.SalesCount), credits(y.SalesTotal),
			credits(y.PurchasesCount), credits(y.PurchasesTotal), credits(y.SalesTotal-y.PurchasesTotal))
	}
	writeSection(&b, "Yearly Totals", years)

	return b.String()
}

// Runs renders recent ingestion runs.
func Runs(runs []*domain.IngestRun) string {
	t := newTable("Run", "Source", "Started", "Status", "Seen", "Inserted", "Updated", "Skipped", "Failed")
	for _, r := range runs {
		t.add(r.ID, r.Source, r.StartedAt.UTC().Format("2006-01-02 15:04:05"), r.Status,
			strconv.Itoa(r.Counts.Seen), strconv.Itoa(r.Counts.Inserted), strconv.Itoa(r.Counts.Updated),
			strconv.Itoa(r.Counts.Skipped), strconv.Itoa(r.Counts.Failed))
	}
	var b strings.Builder
	writeSection(&b, "Ingest Runs", t)
	return b.String()
}

// Drift renders customers whose rollups disagree with their sales.
func Drift(drift []sqlite.RollupDrift) string {
	if len(drift) == 0 {
		return "Rollups consistent.\n"
	}
	t := newTable("Customer", "Stored Spent", "Actual Spent", "Stored Orders", "Actual Orders")
	for _, d := range drift {
		t.add(d.Name, credits(d.StoredSpent), credits(d.ActualSpent), credits(d.StoredCount), credits(d.ActualCount))
	}
	return fmt.Sprintf("%d customer(s) with drifted rollups:\n\n%s", len(drift), t.markdown())
}

func totalsTable(key string, totals []sqlite.GroupTotal) *table {
	t := newTable(key, "Sales", "Credits")
	for _, g := range totals {
		t.add(g.Key, credits(g.Count), credits(g.Total))
	}
	return t
}

func writeSection(b *strings.Builder, title string, t *table) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(t.rows) == 0 {
		b.WriteString("_No data._\n\n")
		return
	}
	b.WriteString(t.markdown())
	b.WriteString("\n")
}
