package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

// ItemStat aggregates the sales of one item.
type ItemStat struct {
	Item     string
	Sold     int64
	Credits  int64
	LastSold time.Time
}

// GroupStat aggregates sales or purchases sharing one key (category, profession, vendor).
type GroupStat struct {
	Key      string
	Count    int64
	Credits  int64
	AvgPrice decimal.Decimal // whole credits
}

func itemStats(sales []domain.Sale) []ItemStat {
	byItem := make(map[string]*ItemStat)
	var order []string
	for _, s := range sales {
		st, ok := byItem[s.Item]
		if !ok {
			st = &ItemStat{Item: s.Item}
			byItem[s.Item] = st
			order = append(order, s.Item)
		}
		st.Sold++
		st.Credits += s.Amount
		if s.Date.After(st.LastSold) {
			st.LastSold = s.Date
		}
	}
	out := make([]ItemStat, 0, len(order))
	for _, item := range order {
		out = append(out, *byItem[item])
	}
	return out
}

type keyed struct {
	key    string
	amount int64
}

func groupTotals(rows []keyed) []GroupStat {
	byKey := make(map[string]*GroupStat)
	var order []string
	for _, r := range rows {
		g, ok := byKey[r.key]
		if !ok {
			g = &GroupStat{Key: r.key}
			byKey[r.key] = g
			order = append(order, r.key)
		}
		g.Count++
		g.Credits += r.amount
	}
	out := make([]GroupStat, 0, len(order))
	for _, k := range order {
		g := byKey[k]
		g.AvgPrice = average(g.Credits, g.Count).Round(0)
		out = append(out, *g)
	}
	sortGroupsByCredits(out)
	return out
}

func groupSales(sales []domain.Sale, key func(domain.Sale) string) []GroupStat {
	rows := make([]keyed, len(sales))
	for i, s := range sales {
		rows[i] = keyed{key: orUnknown(key(s)), amount: s.Amount}
	}
	return groupTotals(rows)
}

func groupPurchases(purchases []domain.Purchase, key func(domain.Purchase) string) []GroupStat {
	rows := make([]keyed, len(purchases))
	for i, p := range purchases {
		rows[i] = keyed{key: orUnknown(key(p)), amount: p.Amount}
	}
	return groupTotals(rows)
}

func orUnknown(s string) string {
	if s == "" {
		return domain.Uncategorized
	}
	return s
}

func average(total, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(total).Div(decimal.NewFromInt(count))
}

func sortItemsByQuantity(items []ItemStat) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Sold != b.Sold {
			return a.Sold > b.Sold
		}
		if a.Credits != b.Credits {
			return a.Credits > b.Credits
		}
		return a.Item < b.Item
	})
}

func sortItemsByCredits(items []ItemStat) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Credits != b.Credits {
			return a.Credits > b.Credits
		}
		if a.Sold != b.Sold {
			return a.Sold > b.Sold
		}
		return a.Item < b.Item
	})
}

func sortGroupsByCredits(groups []GroupStat) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Credits != b.Credits {
			return a.Credits > b.Credits
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Key < b.Key
	})
}

func topN[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
