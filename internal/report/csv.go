package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dvloznov/swg-merchant/internal/analytics"
)

// CSV extract file names.
const (
	MonthlySalesCSV     = "monthly_sales.csv"
	MonthlyPurchasesCSV = "monthly_purchases.csv"
	CategoryMarginCSV   = "category_margin.csv"
)

// Extract is one named CSV file. Numbers are written without separators.
type Extract struct {
	Name string
	Data []byte
}

// Extracts renders the CSV extracts of a report.
func Extracts(r *analytics.Report) ([]Extract, error) {
	sales, err := monthCSV(r.MonthlySales)
	if err != nil {
		return nil, fmt.Errorf("Extracts: monthly sales: %w", err)
	}
	purchases, err := monthCSV(r.MonthlyPurchases)
	if err != nil {
		return nil, fmt.Errorf("Extracts: monthly purchases: %w", err)
	}

	rows := [][]string{{"category", "sales_credits", "purchase_credits", "margin"}}
	for _, m := range r.CategoryMargin {
		rows = append(rows, []string{m.Category, itoa(m.SalesCredits), itoa(m.PurchaseCredits), itoa(m.Margin)})
	}
	margin, err := encode(rows)
	if err != nil {
		return nil, fmt.Errorf("Extracts: category margin: %w", err)
	}

	return []Extract{
		{Name: MonthlySalesCSV, Data: sales},
		{Name: MonthlyPurchasesCSV, Data: purchases},
		{Name: CategoryMarginCSV, Data: margin},
	}, nil
}

// WriteExtracts writes the CSV extracts of a report into dir, creating it.
func WriteExtracts(dir string, r *analytics.Report) ([]string, error) {
	extracts, err := Extracts(r)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("WriteExtracts: create %q: %w", dir, err)
	}
	var written []string
	for _, e := range extracts {
		path := filepath.Join(dir, e.Name)
		if err := os.WriteFile(path, e.Data, 0o644); err != nil {
			return written, fmt.Errorf("WriteExtracts: write %q: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func monthCSV(months []analytics.MonthTrend) ([]byte, error) {
	rows := [][]string{{"month", "count", "credits", "prev_count", "prev_credits", "delta_count", "delta_credits"}}
	for _, m := range months {
		rows = append(rows, []string{
			m.Month, itoa(m.Count), itoa(m.Credits), itoa(m.PrevCount),
			itoa(m.PrevCredits), itoa(m.DeltaCount), itoa(m.DeltaCredits),
		})
	}
	return encode(rows)
}

func encode(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
