// Package parser turns the text of one vendor mail file into a typed event.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

// Marker phrases found in the subject line of vendor mails.
const (
	SaleMarker     = "Vendor Sale Complete"
	PurchaseMarker = "Vendor Item Purchased"
)

// ErrMalformed is returned for a vendor mail whose amount, timestamp or
// transaction line cannot be parsed. The file should be skipped and reported.
var ErrMalformed = errors.New("malformed vendor mail")

var (
	saleRE = regexp.MustCompile(
		`(?i)Vendor:\s*(?P<vendor>.*?)\s*has sold\s+(?P<item>.+?)(?:\s+to\s+(?P<customer>.*?))?\s+for\s+(?P<amount>\S+)\s+credits`)
	purchaseRE = regexp.MustCompile(
		`(?i)You have won the auction of "(?P<item>.*?)" from "(?P<vendor>.*?)" for (?P<amount>\S+) credits`)
	timestampRE = regexp.MustCompile(`(?i)TIMESTAMP:\s*(\S*)`)
)

// Parse extracts a sale or purchase from raw mail text.
// A mail without a vendor marker yields an event of kind EventNone and no error.
// Profession and Category are left for the classifier.
func Parse(content []byte) (domain.MailEvent, error) {
	lines := nonEmptyLines(string(content))
	ev := domain.MailEvent{Kind: detectKind(lines)}
	if ev.Kind == domain.EventNone {
		return ev, nil
	}
	ev.MailID = firstLine(lines)

	date, err := parseTimestamp(lines)
	if err != nil {
		return domain.MailEvent{}, err
	}
	ev.Date = date

	switch ev.Kind {
	case domain.EventSale:
		m := findSubmatch(saleRE, lines)
		if m == nil {
			return domain.MailEvent{}, fmt.Errorf("%w: no sale line", ErrMalformed)
		}
		ev.Vendor = strings.TrimSpace(m["vendor"])
		ev.Item = TrimItemSuffix(m["item"])
		ev.Customer = strings.TrimSpace(m["customer"])
		ev.Amount, err = parseAmount(m["amount"])
	case domain.EventPurchase:
		m := findSubmatch(purchaseRE, lines)
		if m == nil {
			return domain.MailEvent{}, fmt.Errorf("%w: no purchase line", ErrMalformed)
		}
		ev.Vendor = strings.TrimSpace(m["vendor"])
		ev.Item = TrimItemSuffix(m["item"])
		ev.Amount, err = parseAmount(m["amount"])
	}
	if err != nil {
		return domain.MailEvent{}, err
	}
	if ev.Item == "" {
		return domain.MailEvent{}, fmt.Errorf("%w: empty item name", ErrMalformed)
	}
	return ev, nil
}

// MailID returns the first non-empty line of a mail file.
func MailID(content []byte) string {
	return firstLine(nonEmptyLines(string(content)))
}

// TrimItemSuffix strips decorative annotations after a "|" separator
// (for example a shard tag) and normalizes whitespace and Unicode form,
// so "Composite Armor | Epak" becomes "Composite Armor".
func TrimItemSuffix(item string) string {
	if i := strings.Index(item, "|"); i >= 0 {
		item = item[:i]
	}
	return norm.NFC.String(strings.Join(strings.Fields(item), " "))
}

func detectKind(lines []string) domain.EventKind {
	sale := strings.ToLower(SaleMarker)
	purchase := strings.ToLower(PurchaseMarker)
	for _, ln := range lines {
		l := strings.ToLower(ln)
		switch {
		case strings.Contains(l, sale):
			return domain.EventSale
		case strings.Contains(l, purchase):
			return domain.EventPurchase
		}
	}
	return domain.EventNone
}

func parseTimestamp(lines []string) (time.Time, error) {
	for _, ln := range lines {
		m := timestampRE.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		secs, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || secs < 0 {
			return time.Time{}, fmt.Errorf("%w: invalid timestamp %q", ErrMalformed, m[1])
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: missing timestamp", ErrMalformed)
}

func parseAmount(raw string) (int64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid amount %q", ErrMalformed, raw)
	}
	return n, nil
}

// findSubmatch returns the named groups of the first line matching re.
func findSubmatch(re *regexp.Regexp, lines []string) map[string]string {
	for _, ln := range lines {
		m := re.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		out := make(map[string]string, len(m))
		for i, name := range re.SubexpNames() {
			if name != "" {
				out[name] = m[i]
			}
		}
		return out
	}
	return nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
