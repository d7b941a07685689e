package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

// MailInput is one parsed source file handed to the ledger.
type MailInput struct {
	Path     string // absolute path, or a synthetic key for imported rows
	MTime    int64  // unix seconds
	Checksum string // hex sha256 of the content; empty disables the content check
	RunID    string
	Event    domain.MailEvent
}

// txRef points at the sale or purchase an ingestion record produced.
type txRef struct {
	kind domain.EventKind
	id   int64
}

func refOf(rec domain.IngestionRecord) txRef {
	switch {
	case rec.SaleID != 0:
		return txRef{kind: domain.EventSale, id: rec.SaleID}
	case rec.PurchaseID != 0:
		return txRef{kind: domain.EventPurchase, id: rec.PurchaseID}
	default:
		return txRef{}
	}
}

func (r txRef) saleID() int64 {
	if r.kind == domain.EventSale {
		return r.id
	}
	return 0
}

func (r txRef) purchaseID() int64 {
	if r.kind == domain.EventPurchase {
		return r.id
	}
	return 0
}

// ApplyMail runs the ledger decision for one file and applies it atomically:
// the transaction upsert, the customer rollup and the ingestion record commit
// together or not at all.
func (s *Store) ApplyMail(ctx context.Context, in MailInput) (domain.ApplyResult, error) {
	if in.Event.Kind != domain.EventSale && in.Event.Kind != domain.EventPurchase {
		return domain.ApplyResult{}, fmt.Errorf("ApplyMail: %s: no transaction to apply", in.Path)
	}
	var res domain.ApplyResult
	err := s.withTx(ctx, func(q querier) error {
		var err error
		res, err = s.applyMail(ctx, q, in)
		return err
	})
	if err != nil {
		return domain.ApplyResult{}, fmt.Errorf("ApplyMail: %s: %w", in.Path, err)
	}
	return res, nil
}

func (s *Store) applyMail(ctx context.Context, q querier, in MailInput) (domain.ApplyResult, error) {
	rec, err := getIngestByPath(ctx, q, in.Path)
	if errors.Is(err, ErrNotFound) {
		ref, action, err := resolve(ctx, q, in.Event, in.Path)
		if err != nil {
			return domain.ApplyResult{}, err
		}
		if err := s.insertIngest(ctx, q, in, ref); err != nil {
			return domain.ApplyResult{}, err
		}
		return result(ctx, q, action, ref)
	}
	if err != nil {
		return domain.ApplyResult{}, err
	}

	old := refOf(rec)
	if old.id == 0 {
		// The linked row is gone; start over for this path.
		ref, _, err := resolve(ctx, q, in.Event, in.Path)
		if err != nil {
			return domain.ApplyResult{}, err
		}
		if err := updateIngest(ctx, q, rec.ID, in, ref); err != nil {
			return domain.ApplyResult{}, err
		}
		return result(ctx, q, domain.ActionInserted, ref)
	}

	if !changed(rec, in) {
		filled, err := fill(ctx, q, old, in.Event)
		if err != nil {
			return domain.ApplyResult{}, err
		}
		if !filled {
			return result(ctx, q, domain.ActionSkipped, old)
		}
		if err := updateIngest(ctx, q, rec.ID, in, old); err != nil {
			return domain.ApplyResult{}, err
		}
		return result(ctx, q, domain.ActionCompleted, old)
	}

	ref, err := overwrite(ctx, q, rec, in)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	return result(ctx, q, domain.ActionUpdated, ref)
}

// changed reports whether the file differs from what was recorded.
// The content checksum is only compared when both sides have one.
func changed(rec domain.IngestionRecord, in MailInput) bool {
	if rec.FileMTime != in.MTime {
		return true
	}
	return rec.Checksum != "" && in.Checksum != "" && rec.Checksum != in.Checksum
}

// resolve links an event to an equivalent transaction recorded under another
// path with the same mail id, or inserts a new one.
func resolve(ctx context.Context, q querier, ev domain.MailEvent, path string) (txRef, domain.Action, error) {
	if ev.MailID != "" {
		ref, ok, err := findMatch(ctx, q, ev, path)
		if err != nil {
			return txRef{}, "", err
		}
		if ok {
			if _, err := fill(ctx, q, ref, ev); err != nil {
				return txRef{}, "", err
			}
			return ref, domain.ActionLinked, nil
		}
	}

	switch ev.Kind {
	case domain.EventSale:
		id, err := insertSale(ctx, q, ev)
		if err != nil {
			return txRef{}, "", err
		}
		return txRef{kind: domain.EventSale, id: id}, domain.ActionInserted, nil
	default:
		id, err := insertPurchase(ctx, q, ev)
		if err != nil {
			return txRef{}, "", err
		}
		return txRef{kind: domain.EventPurchase, id: id}, domain.ActionInserted, nil
	}
}

func findMatch(ctx context.Context, q querier, ev domain.MailEvent, path string) (txRef, bool, error) {
	var query string
	switch ev.Kind {
	case domain.EventSale:
		query = `
			SELECT DISTINCT s.id
			FROM sales s JOIN mail_ingests m ON m.sale_id = s.id
			WHERE m.mail_id = ? AND m.file_path <> ?
			  AND s.sale_date = ? AND s.item = ? AND s.amount = ?
			ORDER BY s.id`
	default:
		query = `
			SELECT DISTINCT p.id
			FROM purchases p JOIN mail_ingests m ON m.purchase_id = p.id
			WHERE m.mail_id = ? AND m.file_path <> ?
			  AND p.purchase_date = ? AND p.item = ? AND p.amount = ?
			ORDER BY p.id`
	}

	ids, err := queryIDs(ctx, q, query, ev.MailID, path, formatTime(ev.Date), ev.Item, ev.Amount)
	if err != nil {
		return txRef{}, false, fmt.Errorf("findMatch: %w", err)
	}
	for _, id := range ids {
		ref := txRef{kind: ev.Kind, id: id}
		ok, err := matches(ctx, q, ref, ev)
		if err != nil {
			return txRef{}, false, err
		}
		if ok {
			return ref, true, nil
		}
	}
	return txRef{}, false, nil
}

// matches reports whether the stored transaction describes the same event:
// equal date, item and amount, and counterparties equal or missing on one side.
func matches(ctx context.Context, q querier, ref txRef, ev domain.MailEvent) (bool, error) {
	if ref.kind != ev.Kind {
		return false, nil
	}
	switch ref.kind {
	case domain.EventSale:
		sale, err := loadSale(ctx, q, ref.id)
		if err != nil {
			return false, err
		}
		return sale.Date.Equal(ev.Date) && sale.Item == ev.Item && sale.Amount == ev.Amount &&
			compatible(sale.Vendor, ev.Vendor) && compatible(sale.CustomerName, ev.Customer), nil
	default:
		p, err := loadPurchase(ctx, q, ref.id)
		if err != nil {
			return false, err
		}
		return p.Date.Equal(ev.Date) && p.Item == ev.Item && p.Amount == ev.Amount &&
			compatible(p.Vendor, ev.Vendor), nil
	}
}

func compatible(a, b string) bool {
	return a == "" || b == "" || a == b
}

// fill recovers fields the stored transaction lacks from a new parse.
// A recovered customer adds the sale to that customer's rollup.
func fill(ctx context.Context, q querier, ref txRef, ev domain.MailEvent) (bool, error) {
	if ref.kind != ev.Kind {
		return false, nil
	}
	switch ref.kind {
	case domain.EventSale:
		sale, err := loadSale(ctx, q, ref.id)
		if err != nil {
			return false, err
		}
		filled := false
		if sale.Vendor == "" && ev.Vendor != "" {
			sale.Vendor = ev.Vendor
			classifyFrom(&sale.Profession, &sale.Category, ev)
			filled = true
		}
		if sale.CustomerID == 0 && ev.Customer != "" {
			id, err := upsertCustomer(ctx, q, ev.Customer)
			if err != nil {
				return false, err
			}
			sale.CustomerID = id
			if err := adjustRollup(ctx, q, id, sale.Amount, +1); err != nil {
				return false, err
			}
			filled = true
		}
		if !filled {
			return false, nil
		}
		return true, writeSale(ctx, q, sale)
	default:
		p, err := loadPurchase(ctx, q, ref.id)
		if err != nil {
			return false, err
		}
		if p.Vendor != "" || ev.Vendor == "" {
			return false, nil
		}
		p.Vendor = ev.Vendor
		var profession string
		classifyFrom(&profession, &p.Category, ev)
		return true, writePurchase(ctx, q, p)
	}
}

// classifyFrom takes the event's classification when it has one.
func classifyFrom(profession, category *string, ev domain.MailEvent) {
	if ev.Profession != "" {
		*profession = ev.Profession
	}
	if ev.Category != "" {
		*category = ev.Category
	}
}

// overwrite re-applies a changed file. Parsed fields replace stored ones and
// fields the new parse lacks keep their stored values. When the event no
// longer fits the linked transaction (other kind, or a transaction shared with
// other files that the new content no longer matches) the record is relinked.
func overwrite(ctx context.Context, q querier, rec domain.IngestionRecord, in MailInput) (txRef, error) {
	old := refOf(rec)
	shared, err := sharedWithOthers(ctx, q, old, rec.ID)
	if err != nil {
		return txRef{}, err
	}

	relink := old.kind != in.Event.Kind
	if !relink && shared {
		ok, err := matches(ctx, q, old, in.Event)
		if err != nil {
			return txRef{}, err
		}
		relink = !ok
	}

	if relink {
		ref, _, err := resolve(ctx, q, in.Event, in.Path)
		if err != nil {
			return txRef{}, err
		}
		if err := updateIngest(ctx, q, rec.ID, in, ref); err != nil {
			return txRef{}, err
		}
		if !shared {
			if err := deleteTx(ctx, q, old); err != nil {
				return txRef{}, err
			}
		}
		return ref, nil
	}

	if err := overwriteInPlace(ctx, q, old, in.Event); err != nil {
		return txRef{}, err
	}
	if err := updateIngest(ctx, q, rec.ID, in, old); err != nil {
		return txRef{}, err
	}
	return old, nil
}

func overwriteInPlace(ctx context.Context, q querier, ref txRef, ev domain.MailEvent) error {
	switch ref.kind {
	case domain.EventSale:
		sale, err := loadSale(ctx, q, ref.id)
		if err != nil {
			return err
		}
		if err := adjustRollup(ctx, q, sale.CustomerID, sale.Amount, -1); err != nil {
			return err
		}
		sale.Date, sale.Item, sale.Amount = ev.Date, ev.Item, ev.Amount
		if ev.Vendor != "" {
			sale.Vendor = ev.Vendor
		}
		if ev.Customer != "" {
			id, err := upsertCustomer(ctx, q, ev.Customer)
			if err != nil {
				return err
			}
			sale.CustomerID = id
		}
		classifyFrom(&sale.Profession, &sale.Category, ev)
		if err := adjustRollup(ctx, q, sale.CustomerID, sale.Amount, +1); err != nil {
			return err
		}
		return writeSale(ctx, q, sale)
	default:
		p, err := loadPurchase(ctx, q, ref.id)
		if err != nil {
			return err
		}
		p.Date, p.Item, p.Amount = ev.Date, ev.Item, ev.Amount
		if ev.Vendor != "" {
			p.Vendor = ev.Vendor
		}
		var profession string
		classifyFrom(&profession, &p.Category, ev)
		return writePurchase(ctx, q, p)
	}
}

func deleteTx(ctx context.Context, q querier, ref txRef) error {
	switch ref.kind {
	case domain.EventSale:
		return deleteSale(ctx, q, ref.id)
	case domain.EventPurchase:
		return deletePurchase(ctx, q, ref.id)
	}
	return nil
}

func sharedWithOthers(ctx context.Context, q querier, ref txRef, recordID int64) (bool, error) {
	column := "sale_id"
	if ref.kind == domain.EventPurchase {
		column = "purchase_id"
	}
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mail_ingests WHERE `+column+` = ? AND id <> ?`, ref.id, recordID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sharedWithOthers: %w", err)
	}
	return n > 0, nil
}

// result loads the linked transaction to report the state after a decision.
func result(ctx context.Context, q querier, action domain.Action, ref txRef) (domain.ApplyResult, error) {
	res := domain.ApplyResult{Action: action, SaleID: ref.saleID(), PurchaseID: ref.purchaseID()}
	complete, err := isComplete(ctx, q, ref)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	if complete {
		res.State = domain.StateSeenComplete
	} else {
		res.State = domain.StateSeenIncomplete
	}
	return res, nil
}

func isComplete(ctx context.Context, q querier, ref txRef) (bool, error) {
	switch ref.kind {
	case domain.EventSale:
		sale, err := loadSale(ctx, q, ref.id)
		if err != nil {
			return false, err
		}
		return sale.Complete(), nil
	case domain.EventPurchase:
		p, err := loadPurchase(ctx, q, ref.id)
		if err != nil {
			return false, err
		}
		return p.Complete(), nil
	}
	return false, nil
}

// State reports the ledger state of a path given its current mtime and checksum.
func (s *Store) State(ctx context.Context, path string, mtime int64, checksum string) (domain.LedgerState, error) {
	rec, err := getIngestByPath(ctx, s.db, path)
	if errors.Is(err, ErrNotFound) {
		return domain.StateUnseen, nil
	}
	if err != nil {
		return "", fmt.Errorf("State: %w", err)
	}
	if changed(rec, MailInput{MTime: mtime, Checksum: checksum}) {
		return domain.StateChanged, nil
	}
	complete, err := isComplete(ctx, s.db, refOf(rec))
	if err != nil {
		return "", fmt.Errorf("State: %w", err)
	}
	if complete {
		return domain.StateSeenComplete, nil
	}
	return domain.StateSeenIncomplete, nil
}

// GetIngestionRecord returns the ledger row for a path.
func (s *Store) GetIngestionRecord(ctx context.Context, path string) (*domain.IngestionRecord, error) {
	rec, err := getIngestByPath(ctx, s.db, path)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func getIngestByPath(ctx context.Context, q querier, path string) (domain.IngestionRecord, error) {
	var (
		rec        domain.IngestionRecord
		insertedAt string
		saleID     sql.NullInt64
		purchaseID sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, mail_id, file_path, file_mtime, checksum, inserted_at, run_id, sale_id, purchase_id
		FROM mail_ingests
		WHERE file_path = ?
	`, path).Scan(&rec.ID, &rec.MailID, &rec.FilePath, &rec.FileMTime, &rec.Checksum,
		&insertedAt, &rec.RunID, &saleID, &purchaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IngestionRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.IngestionRecord{}, fmt.Errorf("getIngestByPath: %w", err)
	}
	if rec.InsertedAt, err = parseTime(insertedAt); err != nil {
		return domain.IngestionRecord{}, fmt.Errorf("getIngestByPath: %w", err)
	}
	rec.SaleID = saleID.Int64
	rec.PurchaseID = purchaseID.Int64
	return rec, nil
}

func (s *Store) insertIngest(ctx context.Context, q querier, in MailInput, ref txRef) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO mail_ingests (mail_id, file_path, file_mtime, checksum, inserted_at, run_id, sale_id, purchase_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, in.Event.MailID, in.Path, in.MTime, in.Checksum, formatTime(s.now()), in.RunID,
		nullID(ref.saleID()), nullID(ref.purchaseID()))
	if err != nil {
		return fmt.Errorf("insertIngest: %w", err)
	}
	return nil
}

func updateIngest(ctx context.Context, q querier, id int64, in MailInput, ref txRef) error {
	_, err := q.ExecContext(ctx, `
		UPDATE mail_ingests
		SET mail_id = ?, file_mtime = ?, checksum = ?, run_id = ?, sale_id = ?, purchase_id = ?
		WHERE id = ?
	`, in.Event.MailID, in.MTime, in.Checksum, in.RunID,
		nullID(ref.saleID()), nullID(ref.purchaseID()), id)
	if err != nil {
		return fmt.Errorf("updateIngest: %w", err)
	}
	return nil
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
