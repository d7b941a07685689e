// Package classifier maps vendor and item names to a (profession, category) pair
// using an ordered rule table. First match wins; nothing matching yields Uncategorized.
package classifier

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/swg-merchant/internal/domain"
)

// Rule is one row of the classification table.
// Vendor is a substring of the vendor name; Items and ItemPrefixes are
// alternatives matched against the item name. Empty matchers match anything.
type Rule struct {
	Applies      domain.EventKind `yaml:"applies"` // sale, purchase, or empty for both
	Vendor       string           `yaml:"vendor"`
	Items        []string         `yaml:"items"`
	ItemPrefixes []string         `yaml:"item_prefixes"`
	Profession   string           `yaml:"profession"`
	Category     string           `yaml:"category"`
}

// Result is the outcome of classifying one vendor/item pair.
type Result struct {
	Profession string
	Category   string
}

// Classifier evaluates rules linearly. It is immutable after construction.
type Classifier struct {
	rules []Rule
}

// New creates a Classifier over rules, folding their patterns once.
func New(rules []Rule) *Classifier {
	folded := make([]Rule, len(rules))
	for i, r := range rules {
		r.Vendor = fold(r.Vendor)
		r.Items = foldAll(r.Items)
		r.ItemPrefixes = foldAll(r.ItemPrefixes)
		folded[i] = r
	}
	return &Classifier{rules: folded}
}

// Default returns a Classifier over the built-in rule table.
func Default() *Classifier {
	return New(DefaultRules())
}

// FromFile returns a Classifier over the rules in a YAML file, or the
// built-in table when path is empty.
func FromFile(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(rules), nil
}

// LoadRules reads a rule table from YAML of the form {rules: [...]}.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRules: read %q: %w", path, err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("LoadRules: parse %q: %w", path, err)
	}
	for i, r := range doc.Rules {
		switch r.Applies {
		case domain.EventNone, domain.EventSale, domain.EventPurchase:
		default:
			return nil, fmt.Errorf("LoadRules: rule %d: unknown applies %q", i, r.Applies)
		}
	}
	return doc.Rules, nil
}

// Classify returns the profession and category of the first rule matching
// the event kind, vendor and item. Empty results become Uncategorized.
func (c *Classifier) Classify(kind domain.EventKind, vendor, item string) Result {
	v, it := fold(vendor), fold(item)
	for _, r := range c.rules {
		if r.Applies != domain.EventNone && r.Applies != kind {
			continue
		}
		if r.Vendor != "" && !strings.Contains(v, r.Vendor) {
			continue
		}
		if !matchItem(r, it) {
			continue
		}
		return Result{
			Profession: orUncategorized(r.Profession),
			Category:   orUncategorized(r.Category),
		}
	}
	return Result{Profession: domain.Uncategorized, Category: domain.Uncategorized}
}

// Enrich sets Profession and Category on a parsed event.
// Purchases carry no profession.
func (c *Classifier) Enrich(ev *domain.MailEvent) {
	res := c.Classify(ev.Kind, ev.Vendor, ev.Item)
	ev.Category = res.Category
	if ev.Kind == domain.EventSale {
		ev.Profession = res.Profession
	} else {
		ev.Profession = ""
	}
}

func matchItem(r Rule, item string) bool {
	if len(r.Items) == 0 && len(r.ItemPrefixes) == 0 {
		return true
	}
	for _, s := range r.Items {
		if strings.Contains(item, s) {
			return true
		}
	}
	for _, p := range r.ItemPrefixes {
		if strings.HasPrefix(item, p) {
			return true
		}
	}
	return false
}

func orUncategorized(s string) string {
	if s == "" {
		return domain.Uncategorized
	}
	return s
}

// fold applies Unicode case folding; a Caser is not shared between calls.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func foldAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fold(s)
	}
	return out
}
