package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
)

// fakeSource serves fixed rows, honouring the requested range.
type fakeSource struct {
	sales     []domain.Sale
	purchases []domain.Purchase
	err       error
}

func inRange(r sqlite.Range, t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

func (f *fakeSource) ListSales(_ context.Context, r sqlite.Range) ([]domain.Sale, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Sale
	for _, s := range f.sales {
		if inRange(r, s.Date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) ListPurchases(_ context.Context, r sqlite.Range) ([]domain.Purchase, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Purchase
	for _, p := range f.purchases {
		if inRange(r, p.Date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

type saleSpec struct {
	date       time.Time
	item       string
	amount     int64
	customer   int64
	profession string
	category   string
}

func makeSales(specs ...saleSpec) []domain.Sale {
	out := make([]domain.Sale, len(specs))
	for i, s := range specs {
		var name string
		if s.customer != 0 {
			name = "customer-" + string(rune('A'+s.customer-1))
		}
		out[i] = domain.Sale{
			ID:           int64(i + 1),
			Date:         s.date,
			Vendor:       "Main Shop",
			Item:         s.item,
			CustomerID:   s.customer,
			CustomerName: name,
			Amount:       s.amount,
			Profession:   s.profession,
			Category:     s.category,
		}
	}
	return out
}

func TestFilter(t *testing.T) {
	doctorBuff := domain.Sale{Profession: "Doctor", Category: "Buff"}
	doctorMed := domain.Sale{Profession: "Doctor", Category: "Medicine"}
	chefFood := domain.Sale{Profession: "Chef", Category: "Food"}

	tests := []struct {
		name   string
		filter Filter
		sale   domain.Sale
		want   bool
	}{
		{"empty filter matches", Filter{}, chefFood, true},
		{"profession match", Filter{Professions: []string{"doctor"}}, doctorBuff, true},
		{"profession miss", Filter{Professions: []string{"Doctor"}}, chefFood, false},
		{"values within dimension are OR", Filter{Professions: []string{"Chef", "Doctor"}}, chefFood, true},
		{"dimensions are AND", Filter{Professions: []string{"Doctor"}, Categories: []string{"Buff"}}, doctorMed, false},
		{"both dimensions match", Filter{Professions: []string{"Doctor"}, Categories: []string{"Buff", "Food"}}, doctorBuff, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.MatchSale(tt.sale); got != tt.want {
				t.Errorf("MatchSale() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("profession does not constrain purchases", func(t *testing.T) {
		f := Filter{Professions: []string{"Doctor"}}
		if !f.MatchPurchase(domain.Purchase{Category: "Resources"}) {
			t.Error("purchase rejected by a profession-only filter")
		}
	})

	t.Run("string", func(t *testing.T) {
		f := Filter{Professions: []string{"Doctor"}, Categories: []string{"Buff", "Food"}}
		if got, want := f.String(), "professions=Doctor; categories=Buff,Food"; got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	})
}

func TestSourceErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	e := NewEngine(&fakeSource{err: boom}, fixedClock(day(2024, time.March, 15)))

	if _, err := e.Recommend(context.Background(), RecommendOptions{}); !errors.Is(err, boom) {
		t.Errorf("Recommend() error = %v, want %v", err, boom)
	}
	if _, err := e.Report(context.Background(), ReportOptions{}); !errors.Is(err, boom) {
		t.Errorf("Report() error = %v, want %v", err, boom)
	}
}
