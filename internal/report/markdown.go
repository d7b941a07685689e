package report

import (
	"fmt"
	"strings"

	"github.com/dvloznov/swg-merchant/internal/analytics"
)

// Markdown renders a full periodic report.
func Markdown(r *analytics.Report) string {
	var b strings.Builder
	section := func(title string, t *table) { writeSection(&b, title, t) }

	fmt.Fprintf(&b, "# SWG Merchant: %s Report\n\n", r.Label)
	fmt.Fprintf(&b, "_Generated %s UTC_\n\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "_Period: %s to %s (UTC)_\n\n", date(r.PeriodStart), date(r.PeriodEnd))
	if !r.Filter.Empty() {
		fmt.Fprintf(&b, "_Filter: %s_\n\n", r.Filter.String())
	}

	k := r.KPIs
	kpis := newTable("Metric", "Value")
	kpis.add("Revenue (credits)", credits(k.Revenue))
	kpis.add("Spend (credits)", credits(k.Spend))
	kpis.add("Gross margin (credits)", credits(k.GrossMargin))
	kpis.add("Sales", credits(k.SalesCount))
	kpis.add("Average sale", amount(k.AvgSale))
	kpis.add("Largest sale", credits(k.MaxSale))
	kpis.add("Purchases", credits(k.PurchasesCount))
	kpis.add("Average purchase", amount(k.AvgPurchase))
	kpis.add("Distinct items sold", credits(int64(k.DistinctItems)))
	kpis.add("Active customers", credits(int64(k.ActiveCustomers)))
	kpis.add("Purchase vendors", credits(int64(k.PurchaseVendors)))
	section("Summary KPIs", kpis)

	section("Monthly Sales Trend (with MoM deltas)", monthTable(r.MonthlySales))
	section("Sales by Category", groupTable("Category", r.SalesByCategory))
	section("Sales by Profession", groupTable("Profession", r.SalesByProfession))
	section("Top 10 Items (by quantity)", itemTable(r.TopItemsByQuantity))
	section("Top 10 Items (by credits)", itemTable(r.TopItemsByCredits))
	section("Top 10 Sale Vendors (by credits)", groupTable("Vendor", r.TopSaleVendors))
	section("Monthly Purchases Trend", monthTable(r.MonthlyPurchases))
	section("Purchases by Category", groupTable("Category", r.PurchasesByCategory))
	section("Top 10 Purchase Vendors (by spend)", groupTable("Vendor", r.TopPurchaseVendors))

	margin := newTable("Category", "Sales", "Purchases", "Margin")
	for _, m := range r.CategoryMargin {
		margin.add(m.Category, credits(m.SalesCredits), credits(m.PurchaseCredits), credits(m.Margin))
	}
	section("Category Margin (Sales - Purchases)", margin)

	c := r.Customers
	summary := newTable("Metric", "Value")
	summary.add("Active customers", credits(int64(c.Active)))
	summary.add("New customers", credits(int64(c.New)))
	summary.add("Returning (lifetime)", credits(int64(c.ReturningLifetime)))
	summary.add("Repeat purchase rate", c.RepeatRate.StringFixed(1)+"%")
	summary.add("Average spend per active customer", amount(c.AvgSpendPerActive))
	section("Customer Summary", summary)

	section("Top 10 Customers (by spend)", customerTable(r.TopCustomersBySpend))
	section("Top 10 Customers (by orders)", customerTable(r.TopCustomersByOrders))

	return b.String()
}

// Recommendations renders restock and category sections.
func Recommendations(rec *analytics.Recommendations) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Recommendations since %s\n\n", date(rec.Since))

	writeSection(&b, "Restock", itemTable(rec.Restock))
	writeSection(&b, "Hottest Categories", groupTable("Category", rec.Hottest))

	fmt.Fprintf(&b, "## Trending Categories (%s vs %s)\n\n", rec.CurrentMonth, rec.PreviousMonth)
	if len(rec.Trending) == 0 {
		b.WriteString("_No data._\n")
		return b.String()
	}
	t := newTable("Category", rec.CurrentMonth, rec.PreviousMonth, "Delta", "Growth")
	for _, tr := range rec.Trending {
		t.add(tr.Category, credits(tr.Current), credits(tr.Previous), signed(tr.Delta), tr.GrowthString())
	}
	b.WriteString(t.markdown())
	return b.String()
}

func monthTable(months []analytics.MonthTrend) *table {
	t := newTable("Month", "Count", "Credits", "Prev Count", "Prev Credits", "Delta Count", "Delta Credits")
	for _, m := range months {
		t.add(m.Month, credits(m.Count), credits(m.Credits), credits(m.PrevCount),
			credits(m.PrevCredits), signed(m.DeltaCount), signed(m.DeltaCredits))
	}
	return t
}

func groupTable(key string, groups []analytics.GroupStat) *table {
	t := newTable(key, "Count", "Credits", "Avg Price")
	for _, g := range groups {
		t.add(g.Key, credits(g.Count), credits(g.Credits), amount(g.AvgPrice))
	}
	return t
}

func itemTable(items []analytics.ItemStat) *table {
	t := newTable("Item", "Sold", "Credits", "Last Sold")
	for _, it := range items {
		t.add(it.Item, credits(it.Sold), credits(it.Credits), date(it.LastSold))
	}
	return t
}

func customerTable(customers []analytics.CustomerStat) *table {
	t := newTable("Customer", "Orders", "Credits", "First", "Last")
	for _, c := range customers {
		t.add(orDash(c.Name), credits(c.Orders), credits(c.Credits), date(c.First), date(c.Last))
	}
	return t
}
