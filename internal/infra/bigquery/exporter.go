package bigquery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
	"github.com/dvloznov/swg-merchant/internal/logger"
)

// Source is the local store the exporter reads from and keeps watermarks in.
type Source interface {
	SalesAfter(ctx context.Context, afterID int64, limit int) ([]domain.Sale, error)
	PurchasesAfter(ctx context.Context, afterID int64, limit int) ([]domain.Purchase, error)
	ExportWatermark(ctx context.Context, table string) (int64, error)
	SetExportWatermark(ctx context.Context, table string, lastID int64, batchID string) error
}

// Warehouse receives exported rows. *Repository is the production implementation.
type Warehouse interface {
	InsertSales(ctx context.Context, rows []*SaleRow) error
	InsertPurchases(ctx context.Context, rows []*PurchaseRow) error
	MaxExportedID(ctx context.Context, table string) (int64, error)
}

// DefaultBatchSize bounds rows per insert call.
const DefaultBatchSize = 500

// ExportOptions parameterizes Export.
type ExportOptions struct {
	BatchSize int
	// Reconcile raises the local watermark to the warehouse MAX(id) before sending.
	Reconcile bool
}

// ExportResult reports one export.
type ExportResult struct {
	BatchID   string
	Sales     int
	Purchases int
}

// Exporter copies rows added since the last export. Rows are append-only in
// the warehouse: a stored row changed after its export is not re-sent.
type Exporter struct {
	src   Source
	wh    Warehouse
	clock func() time.Time
}

// NewExporter creates an Exporter. A nil clock uses the wall clock.
func NewExporter(src Source, wh Warehouse, clock func() time.Time) *Exporter {
	if clock == nil {
		clock = time.Now
	}
	return &Exporter{src: src, wh: wh, clock: clock}
}

// Export sends new sales and purchases in id order, advancing the local
// watermark after every batch.
func (e *Exporter) Export(ctx context.Context, opts ExportOptions) (ExportResult, error) {
	log := logger.FromContext(ctx)
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	res := ExportResult{BatchID: uuid.NewString()}
	log = log.With().Str("batch_id", res.BatchID).Logger()

	n, err := e.exportTable(ctx, sqlite.ExportSales, SalesTable, opts.Reconcile, res.BatchID, func(after int64) (int64, int, error) {
		sales, err := e.src.SalesAfter(ctx, after, batch)
		if err != nil || len(sales) == 0 {
			return 0, 0, err
		}
		now := e.clock()
		rows := make([]*SaleRow, len(sales))
		for i, s := range sales {
			rows[i] = NewSaleRow(s, res.BatchID, now)
		}
		if err := e.wh.InsertSales(ctx, rows); err != nil {
			return 0, 0, err
		}
		return sales[len(sales)-1].ID, len(sales), nil
	})
	res.Sales = n
	if err != nil {
		return res, fmt.Errorf("Export: sales: %w", err)
	}

	n, err = e.exportTable(ctx, sqlite.ExportPurchases, PurchasesTable, opts.Reconcile, res.BatchID, func(after int64) (int64, int, error) {
		purchases, err := e.src.PurchasesAfter(ctx, after, batch)
		if err != nil || len(purchases) == 0 {
			return 0, 0, err
		}
		now := e.clock()
		rows := make([]*PurchaseRow, len(purchases))
		for i, p := range purchases {
			rows[i] = NewPurchaseRow(p, res.BatchID, now)
		}
		if err := e.wh.InsertPurchases(ctx, rows); err != nil {
			return 0, 0, err
		}
		return purchases[len(purchases)-1].ID, len(purchases), nil
	})
	res.Purchases = n
	if err != nil {
		return res, fmt.Errorf("Export: purchases: %w", err)
	}

	log.Info().Int("sales", res.Sales).Int("purchases", res.Purchases).Msg("export finished")
	return res, nil
}

// exportTable repeatedly calls next with the current watermark until it
// reports no rows. next returns the last id sent and the row count.
func (e *Exporter) exportTable(ctx context.Context, local, remote string, reconcile bool, batchID string,
	next func(after int64) (int64, int, error)) (int, error) {
	after, err := e.src.ExportWatermark(ctx, local)
	if err != nil {
		return 0, err
	}
	if reconcile {
		top, err := e.wh.MaxExportedID(ctx, remote)
		if err != nil {
			return 0, err
		}
		if top > after {
			log := logger.FromContext(ctx)
			log.Warn().
				Str("table", remote).
				Int64("local", after).
				Int64("warehouse", top).
				Msg("watermark behind warehouse, advancing")
			after = top
		}
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		last, n, err := next(after)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		if err := e.src.SetExportWatermark(ctx, local, last, batchID); err != nil {
			return total, err
		}
		total += n
		after = last
	}
}
