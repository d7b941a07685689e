package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

// SaleRow is one exported sale in <dataset>.sales.
type SaleRow struct {
	SaleID int64 `bigquery:"sale_id"` // REQUIRED, store id

	SaleDate civil.Date     `bigquery:"sale_date"` // REQUIRED
	SaleTS   civil.DateTime `bigquery:"sale_ts"`   // REQUIRED, UTC

	Vendor   bigquery.NullString `bigquery:"vendor"`   // NULLABLE
	Item     string              `bigquery:"item"`     // REQUIRED
	Customer bigquery.NullString `bigquery:"customer"` // NULLABLE until resolved
	Amount   int64               `bigquery:"amount"`   // REQUIRED, whole credits

	Profession string `bigquery:"profession"` // REQUIRED
	Category   string `bigquery:"category"`   // REQUIRED

	BatchID    string    `bigquery:"batch_id"`    // REQUIRED
	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// PurchaseRow is one exported purchase in <dataset>.purchases.
type PurchaseRow struct {
	PurchaseID int64 `bigquery:"purchase_id"` // REQUIRED, store id

	PurchaseDate civil.Date     `bigquery:"purchase_date"` // REQUIRED
	PurchaseTS   civil.DateTime `bigquery:"purchase_ts"`   // REQUIRED, UTC

	Vendor   bigquery.NullString `bigquery:"vendor"` // NULLABLE
	Item     string              `bigquery:"item"`   // REQUIRED
	Amount   int64               `bigquery:"amount"` // REQUIRED, whole credits
	Category string              `bigquery:"category"`

	BatchID    string    `bigquery:"batch_id"`
	ExportedTS time.Time `bigquery:"exported_ts"`
}

// NewSaleRow maps a stored sale to its warehouse row.
func NewSaleRow(s domain.Sale, batchID string, exported time.Time) *SaleRow {
	ts := s.Date.UTC()
	return &SaleRow{
		SaleID:     s.ID,
		SaleDate:   civil.DateOf(ts),
		SaleTS:     civil.DateTimeOf(ts),
		Vendor:     nullString(s.Vendor),
		Item:       s.Item,
		Customer:   nullString(s.CustomerName),
		Amount:     s.Amount,
		Profession: orUncategorized(s.Profession),
		Category:   orUncategorized(s.Category),
		BatchID:    batchID,
		ExportedTS: exported.UTC(),
	}
}

// NewPurchaseRow maps a stored purchase to its warehouse row.
func NewPurchaseRow(p domain.Purchase, batchID string, exported time.Time) *PurchaseRow {
	ts := p.Date.UTC()
	return &PurchaseRow{
		PurchaseID:   p.ID,
		PurchaseDate: civil.DateOf(ts),
		PurchaseTS:   civil.DateTimeOf(ts),
		Vendor:       nullString(p.Vendor),
		Item:         p.Item,
		Amount:       p.Amount,
		Category:     orUncategorized(p.Category),
		BatchID:      batchID,
		ExportedTS:   exported.UTC(),
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func orUncategorized(s string) string {
	if s == "" {
		return domain.Uncategorized
	}
	return s
}
