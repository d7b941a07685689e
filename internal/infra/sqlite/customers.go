package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

// UpsertCustomer returns the id of the customer with the given name, creating it if needed.
func (s *Store) UpsertCustomer(ctx context.Context, name string) (int64, error) {
	return upsertCustomer(ctx, s.db, name)
}

func upsertCustomer(ctx context.Context, q querier, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("upsertCustomer: empty name")
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO customers (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("upsertCustomer: insert: %w", err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM customers WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsertCustomer: select: %w", err)
	}
	return id, nil
}

// GetCustomer returns the customer with the given name.
func (s *Store) GetCustomer(ctx context.Context, name string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, total_spent, total_purchases
		FROM customers
		WHERE name = ?
	`, name).Scan(&c.ID, &c.Name, &c.TotalSpent, &c.TotalPurchases)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetCustomer: %w", err)
	}
	return &c, nil
}

// ListCustomers returns every customer ordered by stored total spend, highest first.
func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, total_spent, total_purchases
		FROM customers
		ORDER BY total_spent DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("ListCustomers: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.TotalSpent, &c.TotalPurchases); err != nil {
			return nil, fmt.Errorf("ListCustomers: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCustomers: iterating results: %w", err)
	}
	return out, nil
}

// adjustRollup adds one sale's contribution (sign +1) or removes it (sign -1).
func adjustRollup(ctx context.Context, q querier, customerID, amount int64, sign int64) error {
	if customerID == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		UPDATE customers
		SET total_spent = total_spent + ?,
		    total_purchases = total_purchases + ?
		WHERE id = ?
	`, sign*amount, sign, customerID)
	if err != nil {
		return fmt.Errorf("adjustRollup: %w", err)
	}
	return nil
}
