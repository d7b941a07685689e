package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

const saleColumns = `
	s.id, s.sale_date, s.vendor, s.item, s.customer_id, COALESCE(c.name, ''),
	s.amount, s.profession, s.category`

const purchaseColumns = `
	p.id, p.purchase_date, p.item, p.vendor, p.amount, p.category`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(r rowScanner) (domain.Sale, error) {
	var (
		sale       domain.Sale
		date       string
		customerID sql.NullInt64
	)
	if err := r.Scan(&sale.ID, &date, &sale.Vendor, &sale.Item, &customerID, &sale.CustomerName,
		&sale.Amount, &sale.Profession, &sale.Category); err != nil {
		return domain.Sale{}, err
	}
	t, err := parseTime(date)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Date = t
	sale.CustomerID = customerID.Int64
	return sale, nil
}

func scanPurchase(r rowScanner) (domain.Purchase, error) {
	var (
		p    domain.Purchase
		date string
	)
	if err := r.Scan(&p.ID, &date, &p.Item, &p.Vendor, &p.Amount, &p.Category); err != nil {
		return domain.Purchase{}, err
	}
	t, err := parseTime(date)
	if err != nil {
		return domain.Purchase{}, err
	}
	p.Date = t
	return p, nil
}

func loadSale(ctx context.Context, q querier, id int64) (domain.Sale, error) {
	row := q.QueryRowContext(ctx, `SELECT`+saleColumns+`
		FROM sales s LEFT JOIN customers c ON c.id = s.customer_id
		WHERE s.id = ?`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sale{}, ErrNotFound
	}
	if err != nil {
		return domain.Sale{}, fmt.Errorf("loadSale %d: %w", id, err)
	}
	return sale, nil
}

func loadPurchase(ctx context.Context, q querier, id int64) (domain.Purchase, error) {
	row := q.QueryRowContext(ctx, `SELECT`+purchaseColumns+`
		FROM purchases p
		WHERE p.id = ?`, id)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Purchase{}, ErrNotFound
	}
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("loadPurchase %d: %w", id, err)
	}
	return p, nil
}

// GetSale returns one stored sale.
func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	sale, err := loadSale(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetPurchase returns one stored purchase.
func (s *Store) GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	p, err := loadPurchase(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// insertSale stores a new sale and adds it to the customer's rollup.
func insertSale(ctx context.Context, q querier, ev domain.MailEvent) (int64, error) {
	var customerID int64
	if ev.Customer != "" {
		id, err := upsertCustomer(ctx, q, ev.Customer)
		if err != nil {
			return 0, fmt.Errorf("insertSale: %w", err)
		}
		customerID = id
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO sales (sale_date, vendor, item, customer_id, amount, profession, category)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, formatTime(ev.Date), ev.Vendor, ev.Item, nullID(customerID), ev.Amount,
		orUncategorized(ev.Profession), orUncategorized(ev.Category))
	if err != nil {
		return 0, fmt.Errorf("insertSale: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insertSale: last insert id: %w", err)
	}
	if err := adjustRollup(ctx, q, customerID, ev.Amount, +1); err != nil {
		return 0, fmt.Errorf("insertSale: %w", err)
	}
	return id, nil
}

func insertPurchase(ctx context.Context, q querier, ev domain.MailEvent) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO purchases (purchase_date, item, vendor, amount, category)
		VALUES (?, ?, ?, ?, ?)
	`, formatTime(ev.Date), ev.Item, ev.Vendor, ev.Amount, orUncategorized(ev.Category))
	if err != nil {
		return 0, fmt.Errorf("insertPurchase: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insertPurchase: last insert id: %w", err)
	}
	return id, nil
}

func writeSale(ctx context.Context, q querier, sale domain.Sale) error {
	_, err := q.ExecContext(ctx, `
		UPDATE sales
		SET sale_date = ?, vendor = ?, item = ?, customer_id = ?, amount = ?,
		    profession = ?, category = ?
		WHERE id = ?
	`, formatTime(sale.Date), sale.Vendor, sale.Item, nullID(sale.CustomerID), sale.Amount,
		orUncategorized(sale.Profession), orUncategorized(sale.Category), sale.ID)
	if err != nil {
		return fmt.Errorf("writeSale %d: %w", sale.ID, err)
	}
	return nil
}

func writePurchase(ctx context.Context, q querier, p domain.Purchase) error {
	_, err := q.ExecContext(ctx, `
		UPDATE purchases
		SET purchase_date = ?, item = ?, vendor = ?, amount = ?, category = ?
		WHERE id = ?
	`, formatTime(p.Date), p.Item, p.Vendor, p.Amount, orUncategorized(p.Category), p.ID)
	if err != nil {
		return fmt.Errorf("writePurchase %d: %w", p.ID, err)
	}
	return nil
}

// deleteSale removes a sale and its rollup contribution.
func deleteSale(ctx context.Context, q querier, id int64) error {
	sale, err := loadSale(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleteSale: %w", err)
	}
	if err := adjustRollup(ctx, q, sale.CustomerID, sale.Amount, -1); err != nil {
		return fmt.Errorf("deleteSale: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleteSale: delete: %w", err)
	}
	return nil
}

func deletePurchase(ctx context.Context, q querier, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deletePurchase: delete: %w", err)
	}
	return nil
}

func orUncategorized(s string) string {
	if s == "" {
		return domain.Uncategorized
	}
	return s
}
