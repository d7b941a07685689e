package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
)

// WindowKind selects the reporting period.
type WindowKind int

const (
	TrailingMonths WindowKind = iota
	YearToDate
	AllHistory
)

// Window is a reporting period relative to the engine clock.
type Window struct {
	Kind   WindowKind
	Months int // TrailingMonths only; non-positive means 12
}

const defaultMonths = 12

// Label names the window for headings.
func (w Window) Label() string {
	switch w.Kind {
	case YearToDate:
		return "Year-To-Date"
	case AllHistory:
		return "All History"
	default:
		return fmt.Sprintf("Last %d Months", w.months())
	}
}

func (w Window) months() int {
	if w.Months <= 0 {
		return defaultMonths
	}
	return w.Months
}

// start returns the inclusive lower bound, or zero for all history.
func (w Window) start(now time.Time) time.Time {
	switch w.Kind {
	case YearToDate:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case AllHistory:
		return time.Time{}
	default:
		return startOfDay(now).AddDate(0, -w.months(), 0)
	}
}

// ReportOptions parameterizes Report.
type ReportOptions struct {
	Window Window
	Filter Filter
}

// Report holds every section of a periodic report.
type Report struct {
	Label       string
	Filter      Filter
	GeneratedAt time.Time
	PeriodStart time.Time // first data point for all history; zero with no data
	PeriodEnd   time.Time

	KPIs KPIs

	MonthlySales        []MonthTrend
	SalesByCategory     []GroupStat
	SalesByProfession   []GroupStat
	TopItemsByQuantity  []ItemStat
	TopItemsByCredits   []ItemStat
	TopSaleVendors      []GroupStat
	MonthlyPurchases    []MonthTrend
	PurchasesByCategory []GroupStat
	TopPurchaseVendors  []GroupStat
	CategoryMargin      []Margin

	Customers            CustomerSummary
	TopCustomersBySpend  []CustomerStat
	TopCustomersByOrders []CustomerStat
}

// KPIs are the headline figures of a report.
type KPIs struct {
	Revenue         int64
	Spend           int64
	GrossMargin     int64
	SalesCount      int64
	AvgSale         decimal.Decimal // whole credits
	MaxSale         int64
	PurchasesCount  int64
	AvgPurchase     decimal.Decimal // whole credits
	DistinctItems   int
	ActiveCustomers int
	PurchaseVendors int
}

// MonthTrend is one calendar month with its change against the month before.
type MonthTrend struct {
	Month        string // "2006-01"
	Count        int64
	Credits      int64
	PrevCount    int64
	PrevCredits  int64
	DeltaCount   int64
	DeltaCredits int64
}

// Margin is sales minus purchases for one category.
type Margin struct {
	Category        string
	SalesCredits    int64
	PurchaseCredits int64
	Margin          int64
}

// CustomerSummary describes customer activity within the window.
type CustomerSummary struct {
	Active            int
	New               int             // first ever sale falls in the window
	ReturningLifetime int             // active, with more than one sale ever
	RepeatRate        decimal.Decimal // percent of active that are returning, one decimal
	AvgSpendPerActive decimal.Decimal // two decimals
}

// CustomerStat aggregates one customer's sales within the window.
type CustomerStat struct {
	Name    string
	Credits int64
	Orders  int64
	First   time.Time
	Last    time.Time
}

const topLimit = 10

// Report computes every report section over the window.
func (e *Engine) Report(ctx context.Context, opts ReportOptions) (*Report, error) {
	now := e.now()
	start := opts.Window.start(now)

	// Lifetime figures need every sale, not only the window.
	allSales, err := e.src.ListSales(ctx, sqlite.Range{})
	if err != nil {
		return nil, fmt.Errorf("Report: %w", err)
	}
	allSales = filterSales(allSales, opts.Filter)
	purchases, err := e.src.ListPurchases(ctx, sqlite.Range{From: start})
	if err != nil {
		return nil, fmt.Errorf("Report: %w", err)
	}
	purchases = filterPurchases(purchases, opts.Filter)

	sales := allSales
	if !start.IsZero() {
		sales = nil
		for _, s := range allSales {
			if !s.Date.Before(start) {
				sales = append(sales, s)
			}
		}
	}

	r := &Report{
		Label:       opts.Window.Label(),
		Filter:      opts.Filter,
		GeneratedAt: now,
		PeriodStart: start,
		PeriodEnd:   startOfDay(now),
	}
	if start.IsZero() {
		r.PeriodStart, r.PeriodEnd = dataBounds(sales, purchases)
	}

	r.KPIs = kpis(sales, purchases)
	r.MonthlySales = monthlyTrend(saleMonths(sales))
	r.SalesByCategory = groupSales(sales, func(s domain.Sale) string { return s.Category })
	r.SalesByProfession = groupSales(sales, func(s domain.Sale) string { return s.Profession })

	items := itemStats(sales)
	byQty := append([]ItemStat(nil), items...)
	sortItemsByQuantity(byQty)
	r.TopItemsByQuantity = topN(byQty, topLimit)
	byCredits := append([]ItemStat(nil), items...)
	sortItemsByCredits(byCredits)
	r.TopItemsByCredits = topN(byCredits, topLimit)
	r.TopSaleVendors = topN(groupSales(sales, func(s domain.Sale) string { return s.Vendor }), topLimit)

	r.MonthlyPurchases = monthlyTrend(purchaseMonths(purchases))
	r.PurchasesByCategory = groupPurchases(purchases, func(p domain.Purchase) string { return p.Category })
	r.TopPurchaseVendors = topN(groupPurchases(purchases, func(p domain.Purchase) string { return p.Vendor }), topLimit)
	r.CategoryMargin = categoryMargin(r.SalesByCategory, r.PurchasesByCategory)

	r.Customers = customerSummary(sales, allSales, start)
	stats := customerStats(sales)
	bySpend := append([]CustomerStat(nil), stats...)
	sort.SliceStable(bySpend, func(i, j int) bool {
		a, b := bySpend[i], bySpend[j]
		if a.Credits != b.Credits {
			return a.Credits > b.Credits
		}
		if a.Orders != b.Orders {
			return a.Orders > b.Orders
		}
		return a.Name < b.Name
	})
	r.TopCustomersBySpend = topN(bySpend, topLimit)
	byOrders := append([]CustomerStat(nil), stats...)
	sort.SliceStable(byOrders, func(i, j int) bool {
		a, b := byOrders[i], byOrders[j]
		if a.Orders != b.Orders {
			return a.Orders > b.Orders
		}
		if a.Credits != b.Credits {
			return a.Credits > b.Credits
		}
		return a.Name < b.Name
	})
	r.TopCustomersByOrders = topN(byOrders, topLimit)

	return r, nil
}

func dataBounds(sales []domain.Sale, purchases []domain.Purchase) (time.Time, time.Time) {
	var first, last time.Time
	see := func(t time.Time) {
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	for _, s := range sales {
		see(s.Date)
	}
	for _, p := range purchases {
		see(p.Date)
	}
	if first.IsZero() {
		return first, last
	}
	return startOfDay(first), startOfDay(last)
}

func kpis(sales []domain.Sale, purchases []domain.Purchase) KPIs {
	var k KPIs
	items := make(map[string]bool)
	customers := make(map[int64]bool)
	for _, s := range sales {
		k.Revenue += s.Amount
		k.SalesCount++
		if s.Amount > k.MaxSale {
			k.MaxSale = s.Amount
		}
		items[s.Item] = true
		if s.CustomerID != 0 {
			customers[s.CustomerID] = true
		}
	}
	vendors := make(map[string]bool)
	for _, p := range purchases {
		k.Spend += p.Amount
		k.PurchasesCount++
		if p.Vendor != "" {
			vendors[p.Vendor] = true
		}
	}
	k.GrossMargin = k.Revenue - k.Spend
	k.AvgSale = average(k.Revenue, k.SalesCount).Round(0)
	k.AvgPurchase = average(k.Spend, k.PurchasesCount).Round(0)
	k.DistinctItems = len(items)
	k.ActiveCustomers = len(customers)
	k.PurchaseVendors = len(vendors)
	return k
}

type monthPoint struct {
	month  string
	amount int64
}

func saleMonths(sales []domain.Sale) []monthPoint {
	out := make([]monthPoint, len(sales))
	for i, s := range sales {
		out[i] = monthPoint{month: MonthKey(s.Date), amount: s.Amount}
	}
	return out
}

func purchaseMonths(purchases []domain.Purchase) []monthPoint {
	out := make([]monthPoint, len(purchases))
	for i, p := range purchases {
		out[i] = monthPoint{month: MonthKey(p.Date), amount: p.Amount}
	}
	return out
}

// monthlyTrend groups points by month, oldest first. A month with no data
// in the window counts as zero for the following month's delta.
func monthlyTrend(points []monthPoint) []MonthTrend {
	byMonth := make(map[string]*MonthTrend)
	for _, p := range points {
		m, ok := byMonth[p.month]
		if !ok {
			m = &MonthTrend{Month: p.month}
			byMonth[p.month] = m
		}
		m.Count++
		m.Credits += p.amount
	}

	out := make([]MonthTrend, 0, len(byMonth))
	for _, m := range byMonth {
		if prev, ok := byMonth[previousMonth(m.Month)]; ok {
			m.PrevCount, m.PrevCredits = prev.Count, prev.Credits
		}
		m.DeltaCount = m.Count - m.PrevCount
		m.DeltaCredits = m.Credits - m.PrevCredits
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func previousMonth(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return ""
	}
	return MonthKey(t.AddDate(0, -1, 0))
}

func categoryMargin(sales, purchases []GroupStat) []Margin {
	byCat := make(map[string]*Margin)
	var order []string
	get := func(cat string) *Margin {
		m, ok := byCat[cat]
		if !ok {
			m = &Margin{Category: cat}
			byCat[cat] = m
			order = append(order, cat)
		}
		return m
	}
	for _, g := range sales {
		get(g.Key).SalesCredits = g.Credits
	}
	for _, g := range purchases {
		get(g.Key).PurchaseCredits = g.Credits
	}

	out := make([]Margin, 0, len(order))
	for _, cat := range order {
		m := byCat[cat]
		m.Margin = m.SalesCredits - m.PurchaseCredits
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Margin != b.Margin {
			return a.Margin > b.Margin
		}
		if a.SalesCredits != b.SalesCredits {
			return a.SalesCredits > b.SalesCredits
		}
		return a.Category < b.Category
	})
	return out
}

// customerSummary counts customers over the window sales, using allSales for
// lifetime figures. Sales without a resolved customer are not counted.
func customerSummary(window, allSales []domain.Sale, start time.Time) CustomerSummary {
	lifetime := make(map[int64]int64)
	first := make(map[int64]time.Time)
	for _, s := range allSales {
		if s.CustomerID == 0 {
			continue
		}
		lifetime[s.CustomerID]++
		if f, ok := first[s.CustomerID]; !ok || s.Date.Before(f) {
			first[s.CustomerID] = s.Date
		}
	}

	active := make(map[int64]bool)
	var spent int64
	for _, s := range window {
		if s.CustomerID == 0 {
			continue
		}
		active[s.CustomerID] = true
		spent += s.Amount
	}

	var cs CustomerSummary
	cs.Active = len(active)
	for id, f := range first {
		if start.IsZero() || !f.Before(start) {
			cs.New++
		}
		if active[id] && lifetime[id] > 1 {
			cs.ReturningLifetime++
		}
	}
	denom := int64(cs.Active)
	if denom < 1 {
		denom = 1
	}
	cs.RepeatRate = decimal.NewFromInt(int64(cs.ReturningLifetime) * 100).
		Div(decimal.NewFromInt(denom)).Round(1)
	cs.AvgSpendPerActive = average(spent, int64(cs.Active)).Round(2)
	return cs
}

func customerStats(sales []domain.Sale) []CustomerStat {
	byID := make(map[int64]*CustomerStat)
	var order []int64
	for _, s := range sales {
		if s.CustomerID == 0 {
			continue
		}
		c, ok := byID[s.CustomerID]
		if !ok {
			c = &CustomerStat{Name: s.CustomerName, First: s.Date, Last: s.Date}
			byID[s.CustomerID] = c
			order = append(order, s.CustomerID)
		}
		c.Credits += s.Amount
		c.Orders++
		if s.Date.Before(c.First) {
			c.First = s.Date
		}
		if s.Date.After(c.Last) {
			c.Last = s.Date
		}
	}
	out := make([]CustomerStat, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
