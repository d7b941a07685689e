package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

// Range bounds a read by timestamp: From inclusive, To exclusive.
// A zero bound is open.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) where(column string) (string, []any) {
	clause := "1 = 1"
	var args []any
	if !r.From.IsZero() {
		clause += " AND " + column + " >= ?"
		args = append(args, formatTime(r.From))
	}
	if !r.To.IsZero() {
		clause += " AND " + column + " < ?"
		args = append(args, formatTime(r.To))
	}
	return clause, args
}

// ListSales returns the sales within r, oldest first.
func (s *Store) ListSales(ctx context.Context, r Range) ([]domain.Sale, error) {
	where, args := r.where("s.sale_date")
	rows, err := s.db.QueryContext(ctx, `SELECT`+saleColumns+`
		FROM sales s LEFT JOIN customers c ON c.id = s.customer_id
		WHERE `+where+`
		ORDER BY s.sale_date, s.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("ListSales: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSales: scan: %w", err)
		}
		out = append(out, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSales: iterating results: %w", err)
	}
	return out, nil
}

// ListPurchases returns the purchases within r, oldest first.
func (s *Store) ListPurchases(ctx context.Context, r Range) ([]domain.Purchase, error) {
	where, args := r.where("p.purchase_date")
	rows, err := s.db.QueryContext(ctx, `SELECT`+purchaseColumns+`
		FROM purchases p
		WHERE `+where+`
		ORDER BY p.purchase_date, p.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("ListPurchases: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("ListPurchases: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPurchases: iterating results: %w", err)
	}
	return out, nil
}

// CustomerValue is a customer's lifetime value computed from sales.
type CustomerValue struct {
	Name      string
	Total     int64
	Orders    int64
	FirstSale time.Time
	LastSale  time.Time
}

// CustomerLifetimeValues ranks customers by lifetime spend, highest first.
// A non-positive limit returns every customer.
func (s *Store) CustomerLifetimeValues(ctx context.Context, limit int) ([]CustomerValue, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, SUM(s.amount), COUNT(*), MIN(s.sale_date), MAX(s.sale_date)
		FROM sales s JOIN customers c ON c.id = s.customer_id
		GROUP BY c.id
		ORDER BY 2 DESC, c.name ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("CustomerLifetimeValues: query: %w", err)
	}
	defer rows.Close()

	var out []CustomerValue
	for rows.Next() {
		var (
			v           CustomerValue
			first, last string
		)
		if err := rows.Scan(&v.Name, &v.Total, &v.Orders, &first, &last); err != nil {
			return nil, fmt.Errorf("CustomerLifetimeValues: scan: %w", err)
		}
		if v.FirstSale, err = parseTime(first); err != nil {
			return nil, fmt.Errorf("CustomerLifetimeValues: %w", err)
		}
		if v.LastSale, err = parseTime(last); err != nil {
			return nil, fmt.Errorf("CustomerLifetimeValues: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CustomerLifetimeValues: iterating results: %w", err)
	}
	return out, nil
}

// Dimension is a column sales can be grouped by.
type Dimension string

const (
	ByCategory   Dimension = "category"
	ByProfession Dimension = "profession"
)

// GroupTotal is one row of a grouped aggregate.
type GroupTotal struct {
	Key   string
	Count int64
	Total int64
}

// RevenueBy groups all sales by the given dimension, highest revenue first.
func (s *Store) RevenueBy(ctx context.Context, dim Dimension) ([]GroupTotal, error) {
	var column string
	switch dim {
	case ByCategory:
		column = "category"
	case ByProfession:
		column = "profession"
	default:
		return nil, fmt.Errorf("RevenueBy: unknown dimension %q", dim)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+column+`, COUNT(*), SUM(amount)
		FROM sales
		GROUP BY `+column+`
		ORDER BY 3 DESC, 1 ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("RevenueBy: query: %w", err)
	}
	defer rows.Close()

	var out []GroupTotal
	for rows.Next() {
		var g GroupTotal
		if err := rows.Scan(&g.Key, &g.Count, &g.Total); err != nil {
			return nil, fmt.Errorf("RevenueBy: scan: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RevenueBy: iterating results: %w", err)
	}
	return out, nil
}

// YearTotal aggregates one calendar year.
type YearTotal struct {
	Year           int
	SalesCount     int64
	SalesTotal     int64
	PurchasesCount int64
	PurchasesTotal int64
}

// YearlyTotals groups sales and purchases by the year of their timestamp, oldest first.
func (s *Store) YearlyTotals(ctx context.Context) ([]YearTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, SUM(sales_count), SUM(sales_total), SUM(purchases_count), SUM(purchases_total)
		FROM (
			SELECT substr(sale_date, 1, 4) AS year, COUNT(*) AS sales_count, SUM(amount) AS sales_total,
			       0 AS purchases_count, 0 AS purchases_total
			FROM sales GROUP BY 1
			UNION ALL
			SELECT substr(purchase_date, 1, 4), 0, 0, COUNT(*), SUM(amount)
			FROM purchases GROUP BY 1
		)
		GROUP BY year
		ORDER BY year
	`)
	if err != nil {
		return nil, fmt.Errorf("YearlyTotals: query: %w", err)
	}
	defer rows.Close()

	var out []YearTotal
	for rows.Next() {
		var (
			y    YearTotal
			year string
		)
		if err := rows.Scan(&year, &y.SalesCount, &y.SalesTotal, &y.PurchasesCount, &y.PurchasesTotal); err != nil {
			return nil, fmt.Errorf("YearlyTotals: scan: %w", err)
		}
		if y.Year, err = strconv.Atoi(year); err != nil {
			return nil, fmt.Errorf("YearlyTotals: year %q: %w", year, err)
		}
		out = append(out, y)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("YearlyTotals: iterating results: %w", err)
	}
	return out, nil
}

// SalesAfter returns up to limit sales with id greater than afterID, by id.
func (s *Store) SalesAfter(ctx context.Context, afterID int64, limit int) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT`+saleColumns+`
		FROM sales s LEFT JOIN customers c ON c.id = s.customer_id
		WHERE s.id > ?
		ORDER BY s.id
		LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("SalesAfter: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("SalesAfter: scan: %w", err)
		}
		out = append(out, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SalesAfter: iterating results: %w", err)
	}
	return out, nil
}

// PurchasesAfter returns up to limit purchases with id greater than afterID, by id.
func (s *Store) PurchasesAfter(ctx context.Context, afterID int64, limit int) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT`+purchaseColumns+`
		FROM purchases p
		WHERE p.id > ?
		ORDER BY p.id
		LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("PurchasesAfter: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("PurchasesAfter: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("PurchasesAfter: iterating results: %w", err)
	}
	return out, nil
}
