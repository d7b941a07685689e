package domain

import (
	"time"
)

// EventKind identifies what a mail file describes.
type EventKind string

const (
	// EventNone means the mail is unrelated correspondence.
	EventNone EventKind = ""
	// EventSale is a completed vendor sale to a customer.
	EventSale EventKind = "sale"
	// EventPurchase is a vendor item won at auction by the operator.
	EventPurchase EventKind = "purchase"
)

// Uncategorized is the profession/category given to anything no rule matches.
const Uncategorized = "Uncategorized"

// MailEvent is the typed result of parsing one mail file, enriched by the classifier.
// Vendor and Customer are left empty when the parser could not recover them.
type MailEvent struct {
	Kind   EventKind
	MailID string // first non-empty line of the file, diagnostic only

	Date     time.Time // UTC
	Vendor   string
	Item     string // suffix-trimmed
	Customer string // sales only
	Amount   int64  // whole credits, never negative

	Profession string // sales only
	Category   string
}

// Complete reports whether every optional field the event kind carries was parsed.
func (e MailEvent) Complete() bool {
	switch e.Kind {
	case EventSale:
		return e.Vendor != "" && e.Customer != ""
	case EventPurchase:
		return e.Vendor != ""
	default:
		return false
	}
}

// Sale represents one item sold to a customer.
type Sale struct {
	ID           int64
	Date         time.Time
	Vendor       string
	Item         string
	CustomerID   int64  // 0 when the customer has not been resolved
	CustomerName string // empty when the customer has not been resolved
	Amount       int64
	Profession   string
	Category     string
}

// Complete reports whether the sale has every field populated.
func (s Sale) Complete() bool {
	return s.Vendor != "" && s.CustomerID != 0
}

// Purchase represents one item bought by the vendor operator from the market.
type Purchase struct {
	ID       int64
	Date     time.Time
	Item     string
	Vendor   string
	Amount   int64
	Category string
}

// Complete reports whether the purchase has every field populated.
func (p Purchase) Complete() bool {
	return p.Vendor != ""
}
