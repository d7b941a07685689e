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

// RecommendOptions parameterizes Recommend.
type RecommendOptions struct {
	Days     int // lookback window; non-positive means 30
	Top      int // rows per section; non-positive means unlimited
	MinSales int // restock threshold; below 1 means 1
	Filter   Filter
}

// Recommendations is the output of Recommend.
type Recommendations struct {
	Since    time.Time
	Restock  []ItemStat  // by sold desc, credits desc
	Hottest  []GroupStat // categories by credits desc
	Trending []Trend

	CurrentMonth  string // last complete calendar month, "2006-01"
	PreviousMonth string
}

// Trend compares one category's sales totals across two complete months.
type Trend struct {
	Category string
	Current  int64
	Previous int64
	Delta    int64
	Growth   decimal.Decimal // (current-previous)/previous; zero when New
	New      bool            // no sales in the previous month, growth undefined
}

// GrowthString renders growth as a percentage, or "new".
func (t Trend) GrowthString() string {
	if t.New {
		return "new"
	}
	return t.Growth.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

const defaultDays = 30

// Recommend ranks items to restock and categories by recent demand.
func (e *Engine) Recommend(ctx context.Context, opts RecommendOptions) (*Recommendations, error) {
	days := opts.Days
	if days <= 0 {
		days = defaultDays
	}
	minSales := int64(opts.MinSales)
	if minSales < 1 {
		minSales = 1
	}

	now := e.now()
	since := startOfDay(now.AddDate(0, 0, -days))
	current := startOfMonth(now).AddDate(0, -1, 0)
	previous := current.AddDate(0, -1, 0)

	from := since
	if previous.Before(from) {
		from = previous
	}
	sales, err := e.src.ListSales(ctx, sqlite.Range{From: from})
	if err != nil {
		return nil, fmt.Errorf("Recommend: %w", err)
	}
	sales = filterSales(sales, opts.Filter)

	var recent []domain.Sale
	for _, s := range sales {
		if !s.Date.Before(since) {
			recent = append(recent, s)
		}
	}

	var restock []ItemStat
	for _, it := range itemStats(recent) {
		if it.Sold >= minSales {
			restock = append(restock, it)
		}
	}
	sortItemsByQuantity(restock)

	hottest := groupSales(recent, func(s domain.Sale) string { return s.Category })

	return &Recommendations{
		Since:         since,
		Restock:       topN(restock, opts.Top),
		Hottest:       topN(hottest, opts.Top),
		Trending:      topN(trending(sales, previous, current), opts.Top),
		CurrentMonth:  MonthKey(current),
		PreviousMonth: MonthKey(previous),
	}, nil
}

// trending compares per-category credits of the month starting at current
// against the month starting at previous.
func trending(sales []domain.Sale, previous, current time.Time) []Trend {
	end := current.AddDate(0, 1, 0)
	cur := make(map[string]int64)
	prev := make(map[string]int64)
	for _, s := range sales {
		cat := orUnknown(s.Category)
		switch {
		case !s.Date.Before(current) && s.Date.Before(end):
			cur[cat] += s.Amount
		case !s.Date.Before(previous) && s.Date.Before(current):
			prev[cat] += s.Amount
		}
	}

	seen := make(map[string]bool)
	var out []Trend
	add := func(cat string) {
		if seen[cat] {
			return
		}
		seen[cat] = true
		t := Trend{Category: cat, Current: cur[cat], Previous: prev[cat]}
		t.Delta = t.Current - t.Previous
		if t.Previous > 0 {
			t.Growth = decimal.NewFromInt(t.Delta).Div(decimal.NewFromInt(t.Previous))
		} else {
			t.New = true
		}
		out = append(out, t)
	}
	for cat := range cur {
		add(cat)
	}
	for cat := range prev {
		add(cat)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Delta != b.Delta {
			return a.Delta > b.Delta
		}
		if a.Current != b.Current {
			return a.Current > b.Current
		}
		return a.Category < b.Category
	})
	return out
}
