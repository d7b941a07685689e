// Package bigquery exports stored sales and purchases to a BigQuery dataset
// for warehouse-side analysis.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// Warehouse table names.
const (
	SalesTable     = "sales"
	PurchasesTable = "purchases"
)

// Repository writes export rows into one dataset. It holds a shared client
// for the lifetime of the export.
type Repository struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewRepository creates a Repository over project.dataset.
func NewRepository(ctx context.Context, project, dataset string) (*Repository, error) {
	if project == "" {
		return nil, fmt.Errorf("NewRepository: project is required")
	}
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, project: project, dataset: dataset}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertSales streams sale rows into the sales table.
func (r *Repository) InsertSales(ctx context.Context, rows []*SaleRow) error {
	if len(rows) == 0 {
		return nil
	}
	inserter := r.client.DatasetInProject(r.project, r.dataset).Table(SalesTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertSales: inserting rows: %w", err)
	}
	return nil
}

// InsertPurchases streams purchase rows into the purchases table.
func (r *Repository) InsertPurchases(ctx context.Context, rows []*PurchaseRow) error {
	if len(rows) == 0 {
		return nil
	}
	inserter := r.client.DatasetInProject(r.project, r.dataset).Table(PurchasesTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertPurchases: inserting rows: %w", err)
	}
	return nil
}

// MaxExportedID returns the highest store id present in table, or 0 when it is empty.
func (r *Repository) MaxExportedID(ctx context.Context, table string) (int64, error) {
	var idColumn string
	switch table {
	case SalesTable:
		idColumn = "sale_id"
	case PurchasesTable:
		idColumn = "purchase_id"
	default:
		return 0, fmt.Errorf("MaxExportedID: unknown table %q", table)
	}

	q := r.client.Query(fmt.Sprintf(
		"SELECT IFNULL(MAX(%s), 0) AS max_id FROM `%s.%s.%s`",
		idColumn, r.project, r.dataset, table))
	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("MaxExportedID: query read: %w", err)
	}

	var row struct {
		MaxID int64 `bigquery:"max_id"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("MaxExportedID: iter next: %w", err)
	}
	return row.MaxID, nil
}
