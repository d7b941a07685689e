package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

const saleMail = `
SWG.Infinity.1709251200.123
SWG.Infinity.auctioner
Vendor Sale Complete
TIMESTAMP: 1709251200
Vendor: Epak Pharmaceuticals has sold Stim A | Epak to Han for 500 credits.
The sale has been completed.
`

const purchaseMail = `SWG.Infinity.1709337600.77
SWG.Infinity.auctioner
Vendor Item Purchased
TIMESTAMP: 1709337600
You have won the auction of "Geonosian Power Cube" from "Junk Dealer" for 1,250 credits. The sale has been completed.
`

func TestParse_Sale(t *testing.T) {
	ev, err := Parse([]byte(saleMail))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if ev.Kind != domain.EventSale {
		t.Fatalf("Kind = %q, want sale", ev.Kind)
	}
	if ev.MailID != "SWG.Infinity.1709251200.123" {
		t.Errorf("MailID = %q", ev.MailID)
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !ev.Date.Equal(want) || ev.Date.Location() != time.UTC {
		t.Errorf("Date = %v, want %v UTC", ev.Date, want)
	}
	if ev.Vendor != "Epak Pharmaceuticals" {
		t.Errorf("Vendor = %q", ev.Vendor)
	}
	if ev.Item != "Stim A" {
		t.Errorf("Item = %q, want %q", ev.Item, "Stim A")
	}
	if ev.Customer != "Han" {
		t.Errorf("Customer = %q, want Han", ev.Customer)
	}
	if ev.Amount != 500 {
		t.Errorf("Amount = %d, want 500", ev.Amount)
	}
	if !ev.Complete() {
		t.Error("expected complete sale")
	}
}

func TestParse_Purchase(t *testing.T) {
	ev, err := Parse([]byte(purchaseMail))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if ev.Kind != domain.EventPurchase {
		t.Fatalf("Kind = %q, want purchase", ev.Kind)
	}
	if ev.Item != "Geonosian Power Cube" || ev.Vendor != "Junk Dealer" {
		t.Errorf("got item=%q vendor=%q", ev.Item, ev.Vendor)
	}
	if ev.Amount != 1250 {
		t.Errorf("Amount = %d, want 1250", ev.Amount)
	}
	if !ev.Complete() {
		t.Error("expected complete purchase")
	}
}

func TestParse_IncompleteSale(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		vendor string
	}{
		{"no customer clause", "Vendor: Epak Weapons has sold DL44 XT for 900 credits.", "Epak Weapons"},
		{"empty customer", "Vendor: Epak Weapons has sold DL44 XT to  for 900 credits.", "Epak Weapons"},
		{"empty vendor", "Vendor: has sold DL44 XT to Han for 900 credits.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mail := "id-1\nsender\nVendor Sale Complete\nTIMESTAMP: 1709251200\n" + tt.body
			ev, err := Parse([]byte(mail))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if ev.Item != "DL44 XT" || ev.Amount != 900 {
				t.Errorf("got item=%q amount=%d", ev.Item, ev.Amount)
			}
			if ev.Vendor != tt.vendor {
				t.Errorf("Vendor = %q, want %q", ev.Vendor, tt.vendor)
			}
			if ev.Complete() {
				t.Error("expected incomplete sale")
			}
		})
	}
}

func TestParse_NoEvent(t *testing.T) {
	tests := []string{
		"",
		"hello\nfriend\nWant to group up tonight?\n",
		"id\nsender\nAuction Outbid\nTIMESTAMP: 1709251200\nYou have been outbid.",
	}

	for _, mail := range tests {
		ev, err := Parse([]byte(mail))
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", mail, err)
		}
		if ev.Kind != domain.EventNone {
			t.Errorf("Parse(%q) Kind = %q, want none", mail, ev.Kind)
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		mail string
	}{
		{"bad amount", "id\ns\nVendor Sale Complete\nTIMESTAMP: 1709251200\nVendor: V has sold X to Y for lots credits."},
		{"bad timestamp", "id\ns\nVendor Sale Complete\nTIMESTAMP: yesterday\nVendor: V has sold X to Y for 5 credits."},
		{"missing timestamp", "id\ns\nVendor Sale Complete\nVendor: V has sold X to Y for 5 credits."},
		{"no sale line", "id\ns\nVendor Sale Complete\nTIMESTAMP: 1709251200\nsomething else"},
		{"no purchase line", "id\ns\nVendor Item Purchased\nTIMESTAMP: 1709251200\nsomething else"},
		{"empty item", "id\ns\nVendor Item Purchased\nTIMESTAMP: 1709251200\nYou have won the auction of \"\" from \"V\" for 5 credits."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mail))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Parse() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	a, errA := Parse([]byte(saleMail))
	b, errB := Parse([]byte(saleMail))
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v, %v", errA, errB)
	}
	if a != b {
		t.Errorf("Parse not deterministic: %+v vs %+v", a, b)
	}
}

func TestTrimItemSuffix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Composite Armor | Epak", "Composite Armor"},
		{"Composite Armor |Bria", "Composite Armor"},
		{"  Bacta   Tank  ", "Bacta Tank"},
		{"Power Hypo", "Power Hypo"},
		{"| Epak", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := TrimItemSuffix(tt.input); got != tt.want {
				t.Errorf("TrimItemSuffix(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMailID(t *testing.T) {
	if got := MailID([]byte("\n\n  abc-123  \nsecond")); got != "abc-123" {
		t.Errorf("MailID() = %q, want abc-123", got)
	}
	if got := MailID(nil); got != "" {
		t.Errorf("MailID(nil) = %q, want empty", got)
	}
}
