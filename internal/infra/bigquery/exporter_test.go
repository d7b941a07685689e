package bigquery

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
	"github.com/dvloznov/swg-merchant/internal/logger"
)

type mockSource struct {
	sales      []domain.Sale
	purchases  []domain.Purchase
	watermarks map[string]int64
	batches    map[string]string
}

func newMockSource(sales []domain.Sale, purchases []domain.Purchase) *mockSource {
	return &mockSource{
		sales:      sales,
		purchases:  purchases,
		watermarks: map[string]int64{},
		batches:    map[string]string{},
	}
}

func (m *mockSource) SalesAfter(_ context.Context, afterID int64, limit int) ([]domain.Sale, error) {
	var out []domain.Sale
	for _, s := range m.sales {
		if s.ID > afterID && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSource) PurchasesAfter(_ context.Context, afterID int64, limit int) ([]domain.Purchase, error) {
	var out []domain.Purchase
	for _, p := range m.purchases {
		if p.ID > afterID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockSource) ExportWatermark(_ context.Context, table string) (int64, error) {
	return m.watermarks[table], nil
}

func (m *mockSource) SetExportWatermark(_ context.Context, table string, lastID int64, batchID string) error {
	m.watermarks[table] = lastID
	m.batches[table] = batchID
	return nil
}

type mockWarehouse struct {
	sales     []*SaleRow
	purchases []*PurchaseRow
	calls     int
	maxIDs    map[string]int64
	failOn    int // fail the nth insert call, 1-based; 0 never
}

func (m *mockWarehouse) InsertSales(_ context.Context, rows []*SaleRow) error {
	m.calls++
	if m.calls == m.failOn {
		return errors.New("insert failed")
	}
	m.sales = append(m.sales, rows...)
	return nil
}

func (m *mockWarehouse) InsertPurchases(_ context.Context, rows []*PurchaseRow) error {
	m.calls++
	if m.calls == m.failOn {
		return errors.New("insert failed")
	}
	m.purchases = append(m.purchases, rows...)
	return nil
}

func (m *mockWarehouse) MaxExportedID(_ context.Context, table string) (int64, error) {
	return m.maxIDs[table], nil
}

func testContext() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(io.Discard))
}

var exportedAt = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

func fixtureSales(n int) []domain.Sale {
	out := make([]domain.Sale, n)
	for i := range out {
		out[i] = domain.Sale{
			ID:     int64(i + 1),
			Date:   time.Date(2024, time.February, 1+i, 8, 30, 0, 0, time.UTC),
			Item:   "Bacta Tank",
			Amount: 500,
		}
	}
	return out
}

func TestNewSaleRow(t *testing.T) {
	s := domain.Sale{
		ID:           7,
		Date:         time.Date(2024, time.February, 3, 23, 15, 0, 0, time.UTC),
		Vendor:       "Main Shop",
		Item:         "Bacta Tank",
		CustomerName: "",
		Amount:       500,
		Profession:   "Doctor",
	}
	row := NewSaleRow(s, "batch-1", exportedAt)

	if row.SaleID != 7 || row.Amount != 500 || row.BatchID != "batch-1" {
		t.Errorf("row = %+v", row)
	}
	if want := (civil.Date{Year: 2024, Month: time.February, Day: 3}); row.SaleDate != want {
		t.Errorf("SaleDate = %v, want %v", row.SaleDate, want)
	}
	if row.SaleTS.Time.Hour != 23 || row.SaleTS.Time.Minute != 15 {
		t.Errorf("SaleTS = %v", row.SaleTS)
	}
	if !row.Vendor.Valid || row.Vendor.StringVal != "Main Shop" {
		t.Errorf("Vendor = %+v", row.Vendor)
	}
	if row.Customer.Valid {
		t.Errorf("Customer = %+v, want NULL for an unresolved customer", row.Customer)
	}
	if row.Category != domain.Uncategorized {
		t.Errorf("Category = %q, want %q", row.Category, domain.Uncategorized)
	}
}

func TestNewPurchaseRow(t *testing.T) {
	p := domain.Purchase{ID: 3, Date: exportedAt, Item: "Hide", Amount: 50, Category: "Resources"}
	row := NewPurchaseRow(p, "batch-1", exportedAt)
	if row.PurchaseID != 3 || row.Vendor.Valid || row.Category != "Resources" {
		t.Errorf("row = %+v", row)
	}
}

func TestExport(t *testing.T) {
	src := newMockSource(fixtureSales(5), []domain.Purchase{{ID: 1, Date: exportedAt, Item: "Hide", Vendor: "Tanner", Amount: 50}})
	wh := &mockWarehouse{}
	e := NewExporter(src, wh, func() time.Time { return exportedAt })

	res, err := e.Export(testContext(), ExportOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Sales != 5 || res.Purchases != 1 || res.BatchID == "" {
		t.Errorf("result = %+v, want 5 sales and 1 purchase", res)
	}
	// 3 sale batches of at most 2, one purchase batch
	if wh.calls != 4 {
		t.Errorf("insert calls = %d, want 4", wh.calls)
	}
	if src.watermarks[sqlite.ExportSales] != 5 || src.watermarks[sqlite.ExportPurchases] != 1 {
		t.Errorf("watermarks = %v", src.watermarks)
	}
	if src.batches[sqlite.ExportSales] != res.BatchID {
		t.Errorf("batch id = %q, want %q", src.batches[sqlite.ExportSales], res.BatchID)
	}

	t.Run("second export sends nothing", func(t *testing.T) {
		res, err := e.Export(testContext(), ExportOptions{})
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if res.Sales != 0 || res.Purchases != 0 || len(wh.sales) != 5 {
			t.Errorf("result = %+v, warehouse sales = %d", res, len(wh.sales))
		}
	})
}

func TestExportFailureKeepsWatermark(t *testing.T) {
	src := newMockSource(fixtureSales(4), nil)
	wh := &mockWarehouse{failOn: 2}
	e := NewExporter(src, wh, nil)

	res, err := e.Export(testContext(), ExportOptions{BatchSize: 2})
	if err == nil {
		t.Fatal("Export() error = nil, want insert failure")
	}
	if res.Sales != 2 || src.watermarks[sqlite.ExportSales] != 2 {
		t.Errorf("sales = %d, watermark = %d, want 2 and 2", res.Sales, src.watermarks[sqlite.ExportSales])
	}

	wh.failOn = 0
	res, err = e.Export(testContext(), ExportOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("retry Export() error = %v", err)
	}
	if res.Sales != 2 || len(wh.sales) != 4 {
		t.Errorf("retry sent %d, warehouse holds %d, want 2 and 4", res.Sales, len(wh.sales))
	}
}

func TestExportReconcile(t *testing.T) {
	src := newMockSource(fixtureSales(5), nil)
	wh := &mockWarehouse{maxIDs: map[string]int64{SalesTable: 3}}
	e := NewExporter(src, wh, nil)

	res, err := e.Export(testContext(), ExportOptions{Reconcile: true})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Sales != 2 || wh.sales[0].SaleID != 4 {
		t.Errorf("reconciled export sent %d starting at %d, want 2 starting at 4", res.Sales, wh.sales[0].SaleID)
	}
}
