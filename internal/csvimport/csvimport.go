// Package csvimport loads historical sales exported as CSV
// (Date,Vendor,Customer,Item,Price,Profession,Category) through the ingestion ledger.
package csvimport

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/swg-merchant/internal/domain"
	"github.com/dvloznov/swg-merchant/internal/infra/sqlite"
	"github.com/dvloznov/swg-merchant/internal/logger"
	"github.com/dvloznov/swg-merchant/internal/parser"
)

// DateLayout is the row date format, month/day/two-digit year.
const DateLayout = "01/02/06"

// Columns every import file must carry. Profession and Category are optional.
var requiredColumns = []string{"Date", "Vendor", "Customer", "Item", "Price"}

// ErrBadRow marks a row that could not be converted into a sale.
var ErrBadRow = errors.New("bad csv row")

// Ledger is the subset of the store the importer writes through.
type Ledger interface {
	ApplyMail(ctx context.Context, in sqlite.MailInput) (domain.ApplyResult, error)
	StartRun(ctx context.Context, source string) (string, error)
	FinishRun(ctx context.Context, runID string, counts domain.RunCounts, runErr error) error
}

// Classifier fills profession and category for rows that leave them blank.
type Classifier interface {
	Enrich(ev *domain.MailEvent)
}

// Summary reports one import.
type Summary struct {
	RunID   string
	Counts  domain.RunCounts
	BadRows []int // 1-based data row numbers
}

// Importer applies CSV rows as sales.
type Importer struct {
	ledger     Ledger
	classifier Classifier
}

// New creates an Importer.
func New(ledger Ledger, c Classifier) *Importer {
	return &Importer{ledger: ledger, classifier: c}
}

// Import reads path and applies every row. Each row is keyed as
// "<absolute path>#<row>", so importing the same file again changes nothing
// and an edited row is re-applied in place. Bad rows are logged and skipped.
func (im *Importer) Import(ctx context.Context, path string) (Summary, error) {
	log := logger.FromContext(ctx)

	abs, err := filepath.Abs(path)
	if err != nil {
		return Summary{}, fmt.Errorf("Import: absolute path of %q: %w", path, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return Summary{}, fmt.Errorf("Import: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return Summary{}, fmt.Errorf("Import: read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return Summary{}, fmt.Errorf("Import: %w", err)
	}

	runID, err := im.ledger.StartRun(ctx, "csv:"+abs)
	if err != nil {
		return Summary{}, fmt.Errorf("Import: start run: %w", err)
	}
	log = log.With().Str("run_id", runID).Str("csv", abs).Logger()

	sum := Summary{RunID: runID}
	var runErr error
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				runErr = err
				break
			}
			sum.Counts.Seen++
			sum.Counts.Failed++
			sum.BadRows = append(sum.BadRows, row)
			log.Warn().Err(err).Int("row", row).Msg("skipping row")
			continue
		}
		if blank(rec) {
			continue
		}
		sum.Counts.Seen++

		ev, err := im.event(cols, rec)
		if err != nil {
			sum.Counts.Failed++
			sum.BadRows = append(sum.BadRows, row)
			log.Warn().Err(err).Int("row", row).Strs("record", rec).Msg("skipping row")
			continue
		}

		res, err := im.ledger.ApplyMail(ctx, sqlite.MailInput{
			Path:     abs + "#" + strconv.Itoa(row),
			Checksum: checksum(rec),
			RunID:    runID,
			Event:    ev,
		})
		if err != nil {
			sum.Counts.Failed++
			sum.BadRows = append(sum.BadRows, row)
			log.Warn().Err(err).Int("row", row).Msg("failed to store row")
			continue
		}
		sum.Counts.Add(res.Action)
	}

	if err := im.ledger.FinishRun(context.WithoutCancel(ctx), runID, sum.Counts, runErr); err != nil {
		return sum, fmt.Errorf("Import: finish run: %w", err)
	}
	log.Info().
		Int("rows", sum.Counts.Seen).
		Int("inserted", sum.Counts.Inserted).
		Int("updated", sum.Counts.Updated).
		Int("skipped", sum.Counts.Skipped).
		Int("failed", sum.Counts.Failed).
		Msg("csv import finished")

	if runErr != nil {
		return sum, fmt.Errorf("Import: %w", runErr)
	}
	return sum, nil
}

type columns map[string]int

func columnIndex(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		cols[strings.ToLower(h)] = i
	}
	for _, want := range requiredColumns {
		if _, ok := cols[strings.ToLower(want)]; !ok {
			return nil, fmt.Errorf("missing column %q", want)
		}
	}
	return cols, nil
}

func (c columns) get(rec []string, name string) string {
	i, ok := c[strings.ToLower(name)]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// event converts a row into a sale event. Blank profession or category
// are taken from the classifier; given values are kept as written.
func (im *Importer) event(cols columns, rec []string) (domain.MailEvent, error) {
	date, err := time.ParseInLocation(DateLayout, cols.get(rec, "Date"), time.UTC)
	if err != nil {
		return domain.MailEvent{}, fmt.Errorf("%w: date %q", ErrBadRow, cols.get(rec, "Date"))
	}
	amount, err := ParsePrice(cols.get(rec, "Price"))
	if err != nil {
		return domain.MailEvent{}, err
	}
	ev := domain.MailEvent{
		Kind:       domain.EventSale,
		Date:       date,
		Vendor:     cols.get(rec, "Vendor"),
		Item:       parser.TrimItemSuffix(cols.get(rec, "Item")),
		Customer:   cols.get(rec, "Customer"),
		Amount:     amount,
		Profession: cols.get(rec, "Profession"),
		Category:   cols.get(rec, "Category"),
	}
	if ev.Item == "" {
		return domain.MailEvent{}, fmt.Errorf("%w: empty item", ErrBadRow)
	}

	if (ev.Profession == "" || ev.Category == "") && im.classifier != nil {
		classified := ev
		im.classifier.Enrich(&classified)
		if ev.Profession == "" {
			ev.Profession = classified.Profession
		}
		if ev.Category == "" {
			ev.Category = classified.Category
		}
	}
	return ev, nil
}

// ParsePrice parses a credit amount such as "150,000" or "1200.00".
// Fractions are truncated.
func ParsePrice(raw string) (int64, error) {
	s := strings.NewReplacer(",", "", `"`, "", " ", "").Replace(raw)
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0, fmt.Errorf("%w: price %q", ErrBadRow, raw)
	}
	return d.IntPart(), nil
}

func checksum(rec []string) string {
	sum := sha256.Sum256([]byte(strings.Join(rec, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
