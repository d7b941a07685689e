// Package analytics is the read-side aggregation engine: restock
// recommendations, category trends and periodic reports, computed on demand
// from stored sales and purchases.
package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
)

// Source is the read surface the engine aggregates over.
// *sqlite.Store is the production implementation.
type Source interface {
	ListSales(ctx context.Context, r sqlite.Range) ([]domain.Sale, error)
	ListPurchases(ctx context.Context, r sqlite.Range) ([]domain.Purchase, error)
}

// Engine computes aggregates. It holds no state besides its source and clock.
type Engine struct {
	src   Source
	clock func() time.Time
}

// NewEngine creates an engine over src. A nil clock uses the wall clock.
func NewEngine(src Source, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{src: src, clock: clock}
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// Filter restricts aggregation to some professions and categories.
// Dimensions combine with AND, values within a dimension with OR.
// An empty dimension does not constrain. Matching ignores case.
type Filter struct {
	Professions []string
	Categories  []string
}

// MatchSale reports whether a sale passes the filter.
func (f Filter) MatchSale(s domain.Sale) bool {
	return matchAny(f.Professions, s.Profession) && matchAny(f.Categories, s.Category)
}

// MatchPurchase reports whether a purchase passes the filter.
// Purchases carry no profession, so only categories apply.
func (f Filter) MatchPurchase(p domain.Purchase) bool {
	return matchAny(f.Categories, p.Category)
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool {
	return len(f.Professions) == 0 && len(f.Categories) == 0
}

// String renders the filter for report headings, e.g. "professions=Doctor; categories=Buff".
func (f Filter) String() string {
	var bits []string
	if len(f.Professions) > 0 {
		bits = append(bits, "professions="+strings.Join(f.Professions, ","))
	}
	if len(f.Categories) > 0 {
		bits = append(bits, "categories="+strings.Join(f.Categories, ","))
	}
	return strings.Join(bits, "; ")
}

func matchAny(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, want := range values {
		if strings.EqualFold(strings.TrimSpace(want), v) {
			return true
		}
	}
	return false
}

func filterSales(sales []domain.Sale, f Filter) []domain.Sale {
	if f.Empty() {
		return sales
	}
	out := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if f.MatchSale(s) {
			out = append(out, s)
		}
	}
	return out
}

func filterPurchases(purchases []domain.Purchase, f Filter) []domain.Purchase {
	if len(f.Categories) == 0 {
		return purchases
	}
	out := make([]domain.Purchase, 0, len(purchases))
	for _, p := range purchases {
		if f.MatchPurchase(p) {
			out = append(out, p)
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// MonthKey formats a time as its calendar month, "2006-01".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
