package sqlite

import (
	"context"
	"fmt"

	"github.com/dvloznov/swg-merchant/internal/classifier"
	"github.com/dvloznov/swg-merchant/internal/domain"
)

// Classifier is the part of the rule engine reclassification needs.
type Classifier interface {
	Classify(kind domain.EventKind, vendor, item string) classifier.Result
}

// ReclassifyResult counts rows whose classification changed.
type ReclassifyResult struct {
	Sales     int
	Purchases int
}

type classified struct {
	id                   int64
	vendor, item         string
	profession, category string
}

// ReclassifyAll re-applies c to every stored sale and purchase in one transaction.
// Running it twice with the same rules changes nothing the second time.
func (s *Store) ReclassifyAll(ctx context.Context, c Classifier) (ReclassifyResult, error) {
	var res ReclassifyResult
	err := s.withTx(ctx, func(q querier) error {
		sales, err := loadClassified(ctx, q, `SELECT id, vendor, item, profession, category FROM sales ORDER BY id`)
		if err != nil {
			return fmt.Errorf("load sales: %w", err)
		}
		for _, row := range sales {
			r := c.Classify(domain.EventSale, row.vendor, row.item)
			if r.Profession == row.profession && r.Category == row.category {
				continue
			}
			if _, err := q.ExecContext(ctx, `UPDATE sales SET profession = ?, category = ? WHERE id = ?`,
				r.Profession, r.Category, row.id); err != nil {
				return fmt.Errorf("update sale %d: %w", row.id, err)
			}
			res.Sales++
		}

		purchases, err := loadClassified(ctx, q, `SELECT id, vendor, item, '', category FROM purchases ORDER BY id`)
		if err != nil {
			return fmt.Errorf("load purchases: %w", err)
		}
		for _, row := range purchases {
			r := c.Classify(domain.EventPurchase, row.vendor, row.item)
			if r.Category == row.category {
				continue
			}
			if _, err := q.ExecContext(ctx, `UPDATE purchases SET category = ? WHERE id = ?`,
				r.Category, row.id); err != nil {
				return fmt.Errorf("update purchase %d: %w", row.id, err)
			}
			res.Purchases++
		}
		return nil
	})
	if err != nil {
		return ReclassifyResult{}, fmt.Errorf("ReclassifyAll: %w", err)
	}
	return res, nil
}

// loadClassified reads every row before any update, since the store runs on one connection.
func loadClassified(ctx context.Context, q querier, query string) ([]classified, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []classified
	for rows.Next() {
		var c classified
		if err := rows.Scan(&c.id, &c.vendor, &c.item, &c.profession, &c.category); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
