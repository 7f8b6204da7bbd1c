// Package rates supplies the conversion rates used to express amounts in
// the declaration currency.
//
// A rate is the number of declaration-currency units worth one unit of the
// source currency on a given day: value_in_base = amount * rate.
package rates

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/declara-dev/declara/internal/failure"
)

const dateFormat = "2006-01-02"

// Source returns conversion rates into a fixed base currency.
type Source interface {
	Rate(currency string, on time.Time) (decimal.Decimal, error)
}

// Key formats the currency@date key used in errors and caches.
func Key(currency string, on time.Time) string {
	return strings.ToUpper(currency) + "@" + on.Format(dateFormat)
}

// Missing builds the error returned when no rate is known.
func Missing(base, currency string, on time.Time) error {
	return failure.Config(Key(currency, on), "no conversion rate to %s", base)
}

// Table is an in-memory rate table.
type Table struct {
	base string
	// Lookback is how many earlier days are tried when a date has no
	// entry, so weekend dates resolve to the last published rate.
	Lookback int
	rates    map[string]map[string]decimal.Decimal
}

// NewTable creates an empty table for base currency base.
func NewTable(base string) *Table {
	return &Table{base: strings.ToUpper(base), rates: make(map[string]map[string]decimal.Decimal)}
}

// Base returns the currency rates convert into.
func (t *Table) Base() string { return t.base }

// Set records a rate.
func (t *Table) Set(currency string, on time.Time, rate decimal.Decimal) {
	currency = strings.ToUpper(currency)
	byDay, ok := t.rates[currency]
	if !ok {
		byDay = make(map[string]decimal.Decimal)
		t.rates[currency] = byDay
	}
	byDay[on.Format(dateFormat)] = rate
}

// Rate returns the rate for currency on the given day. The base currency
// always converts at 1.
func (t *Table) Rate(currency string, on time.Time) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if currency == t.base {
		return decimal.NewFromInt(1), nil
	}
	byDay := t.rates[currency]
	for i := 0; i <= t.Lookback; i++ {
		if r, ok := byDay[on.AddDate(0, 0, -i).Format(dateFormat)]; ok {
			return r, nil
		}
	}
	return decimal.Zero, Missing(t.base, currency, on)
}

// Currencies lists the currencies with at least one rate, sorted.
func (t *Table) Currencies() []string {
	out := make([]string, 0, len(t.rates))
	for c := range t.rates {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// File is the YAML layout of a rate file.
type File struct {
	Base         string                       `yaml:"base"`
	LookbackDays int                          `yaml:"lookback_days,omitempty"`
	Rates        map[string]map[string]string `yaml:"rates"`
}

// ParseYAML builds a Table from the YAML rate file contents.
func ParseYAML(data []byte) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, failure.Config("rates", "parsing rate file: %v", err)
	}
	if f.Base == "" {
		return nil, failure.Config("rates.base", "base currency missing")
	}
	t := NewTable(f.Base)
	t.Lookback = f.LookbackDays
	for cur, byDay := range f.Rates {
		for day, raw := range byDay {
			on, err := time.Parse(dateFormat, day)
			if err != nil {
				return nil, failure.Config("rates."+cur+"."+day, "invalid date: %v", err)
			}
			r, err := decimal.NewFromString(strings.TrimSpace(raw))
			if err != nil {
				return nil, failure.Config("rates."+cur+"."+day, "invalid rate %q", raw)
			}
			if !r.IsPositive() {
				return nil, failure.Config("rates."+cur+"."+day, "rate must be positive, got %s", r)
			}
			t.Set(cur, on, r)
		}
	}
	return t, nil
}

// LoadYAML reads a rate file from disk.
func LoadYAML(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rates: %w", err)
	}
	return ParseYAML(data)
}
