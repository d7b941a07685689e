package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Export watermark tables.
const (
	ExportSales     = "sales"
	ExportPurchases = "purchases"
)

// ExportWatermark returns the highest id already exported for table, or 0.
func (s *Store) ExportWatermark(ctx context.Context, table string) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_id FROM bq_exports WHERE table_name = ?`, table).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ExportWatermark: %w", err)
	}
	return last, nil
}

// SetExportWatermark records the highest exported id for table and the batch that carried it.
func (s *Store) SetExportWatermark(ctx context.Context, table string, lastID int64, batchID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bq_exports (table_name, last_id, batch_id, exported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET
			last_id = excluded.last_id,
			batch_id = excluded.batch_id,
			exported_at = excluded.exported_at
	`, table, lastID, batchID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("SetExportWatermark: %w", err)
	}
	return nil
}
