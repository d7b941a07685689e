package analytics

import (
	"context"
	"testing"
	"time"
)

func itemNames(items []ItemStat) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Item
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRecommendRestock(t *testing.T) {
	now := day(2024, time.March, 20)
	var specs []saleSpec
	for i := 0; i < 5; i++ {
		specs = append(specs, saleSpec{date: day(2024, time.March, 10+i), item: "Bacta Tank", amount: 500, category: "Medicine"})
	}
	for i := 0; i < 3; i++ {
		specs = append(specs, saleSpec{date: day(2024, time.March, 10+i), item: "Power Hypo", amount: 600, category: "Medicine"})
	}
	specs = append(specs,
		saleSpec{date: day(2024, time.March, 11), item: "Stim Pack", amount: 9000, category: "Medicine"},
		// outside the 30 day lookback
		saleSpec{date: day(2024, time.January, 5), item: "Old Item", amount: 100, category: "Medicine"},
		saleSpec{date: day(2024, time.January, 6), item: "Old Item", amount: 100, category: "Medicine"},
	)
	src := &fakeSource{sales: makeSales(specs...)}
	e := NewEngine(src, fixedClock(now))

	tests := []struct {
		name string
		opts RecommendOptions
		want []string
	}{
		{"top two by quantity", RecommendOptions{Top: 2}, []string{"Bacta Tank", "Power Hypo"}},
		{"min sales drops single sellers", RecommendOptions{MinSales: 2}, []string{"Bacta Tank", "Power Hypo"}},
		{"min sales below one acts as one", RecommendOptions{MinSales: -4}, []string{"Bacta Tank", "Power Hypo", "Stim Pack"}},
		{"high threshold", RecommendOptions{MinSales: 4}, []string{"Bacta Tank"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := e.Recommend(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if got := itemNames(rec.Restock); !equalStrings(got, tt.want) {
				t.Errorf("Restock = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("restock totals", func(t *testing.T) {
		rec, err := e.Recommend(context.Background(), RecommendOptions{Top: 2})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if rec.Restock[0].Sold != 5 || rec.Restock[0].Credits != 2500 {
			t.Errorf("Bacta Tank = %+v, want 5 sold for 2500", rec.Restock[0])
		}
		if rec.Restock[1].Sold != 3 || rec.Restock[1].Credits != 1800 {
			t.Errorf("Power Hypo = %+v, want 3 sold for 1800", rec.Restock[1])
		}
		if want := time.Date(2024, time.February, 19, 0, 0, 0, 0, time.UTC); !rec.Since.Equal(want) {
			t.Errorf("Since = %v, want %v", rec.Since, want)
		}
	})
}

func TestRecommendHottest(t *testing.T) {
	src := &fakeSource{sales: makeSales(
		saleSpec{date: day(2024, time.March, 1), item: "Bacta Tank", amount: 500, category: "Medicine"},
		saleSpec{date: day(2024, time.March, 2), item: "Rifle", amount: 4000, category: "Rifle"},
		saleSpec{date: day(2024, time.March, 3), item: "Soup", amount: 50, category: ""},
	)}
	e := NewEngine(src, fixedClock(day(2024, time.March, 10)))

	rec, err := e.Recommend(context.Background(), RecommendOptions{})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	var got []string
	for _, g := range rec.Hottest {
		got = append(got, g.Key)
	}
	if want := []string{"Rifle", "Medicine", "Uncategorized"}; !equalStrings(got, want) {
		t.Errorf("Hottest = %v, want %v", got, want)
	}
}

func TestRecommendTrending(t *testing.T) {
	// Now is mid-April: March is current, February previous.
	now := day(2024, time.April, 15)
	src := &fakeSource{sales: makeSales(
		saleSpec{date: day(2024, time.February, 10), item: "Stim", amount: 1000, category: "Medicine"},
		saleSpec{date: day(2024, time.March, 10), item: "Stim", amount: 1500, category: "Medicine"},
		saleSpec{date: day(2024, time.March, 12), item: "Rifle", amount: 3000, category: "Rifle"},
		saleSpec{date: day(2024, time.February, 3), item: "Armor", amount: 800, category: "Armor"},
		// the current, incomplete month is ignored
		saleSpec{date: day(2024, time.April, 2), item: "Rifle", amount: 99999, category: "Rifle"},
	)}
	e := NewEngine(src, fixedClock(now))

	rec, err := e.Recommend(context.Background(), RecommendOptions{})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if rec.CurrentMonth != "2024-03" || rec.PreviousMonth != "2024-02" {
		t.Errorf("months = %s/%s, want 2024-03/2024-02", rec.CurrentMonth, rec.PreviousMonth)
	}

	want := []struct {
		category string
		delta    int64
		growth   string
	}{
		{"Rifle", 3000, "new"},
		{"Medicine", 500, "50.0%"},
		{"Armor", -800, "-100.0%"},
	}
	if len(rec.Trending) != len(want) {
		t.Fatalf("Trending = %+v, want %d rows", rec.Trending, len(want))
	}
	for i, w := range want {
		got := rec.Trending[i]
		if got.Category != w.category || got.Delta != w.delta || got.GrowthString() != w.growth {
			t.Errorf("Trending[%d] = %s %d %s, want %s %d %s",
				i, got.Category, got.Delta, got.GrowthString(), w.category, w.delta, w.growth)
		}
	}
	if !rec.Trending[0].New {
		t.Error("category without a previous month should be marked new")
	}
}

func TestRecommendFilter(t *testing.T) {
	src := &fakeSource{sales: makeSales(
		saleSpec{date: day(2024, time.March, 1), item: "Bacta Tank", amount: 500, profession: "Doctor", category: "Medicine"},
		saleSpec{date: day(2024, time.March, 1), item: "Bacta Tank", amount: 500, profession: "Doctor", category: "Medicine"},
		saleSpec{date: day(2024, time.March, 2), item: "Soup", amount: 50, profession: "Chef", category: "Food"},
	)}
	e := NewEngine(src, fixedClock(day(2024, time.March, 10)))

	rec, err := e.Recommend(context.Background(), RecommendOptions{Filter: Filter{Professions: []string{"Chef"}}})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if got := itemNames(rec.Restock); !equalStrings(got, []string{"Soup"}) {
		t.Errorf("Restock = %v, want [Soup]", got)
	}
}
