package sqlite

import (
	"context"
	"fmt"
)

// RollupDrift is a customer whose stored rollups disagree with their sales.
type RollupDrift struct {
	CustomerID  int64
	Name        string
	StoredSpent int64
	StoredCount int64
	ActualSpent int64
	ActualCount int64
}

// VerifyRollups lists every customer whose total_spent or total_purchases
// differs from the sum and count of their sales.
func (s *Store) VerifyRollups(ctx context.Context) ([]RollupDrift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.total_spent, c.total_purchases,
		       COALESCE(SUM(s.amount), 0), COUNT(s.id)
		FROM customers c LEFT JOIN sales s ON s.customer_id = c.id
		GROUP BY c.id
		HAVING c.total_spent <> COALESCE(SUM(s.amount), 0) OR c.total_purchases <> COUNT(s.id)
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("VerifyRollups: query: %w", err)
	}
	defer rows.Close()

	var out []RollupDrift
	for rows.Next() {
		var d RollupDrift
		if err := rows.Scan(&d.CustomerID, &d.Name, &d.StoredSpent, &d.StoredCount,
			&d.ActualSpent, &d.ActualCount); err != nil {
			return nil, fmt.Errorf("VerifyRollups: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("VerifyRollups: iterating results: %w", err)
	}
	return out, nil
}

// RepairRollups recomputes every customer's rollups from sales and returns
// the number of customers that changed.
func (s *Store) RepairRollups(ctx context.Context) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `
			UPDATE customers
			SET total_spent = (SELECT COALESCE(SUM(amount), 0) FROM sales WHERE customer_id = customers.id),
			    total_purchases = (SELECT COUNT(*) FROM sales WHERE customer_id = customers.id)
			WHERE total_spent <> (SELECT COALESCE(SUM(amount), 0) FROM sales WHERE customer_id = customers.id)
			   OR total_purchases <> (SELECT COUNT(*) FROM sales WHERE customer_id = customers.id)
		`)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("RepairRollups: %w", err)
	}
	return n, nil
}
