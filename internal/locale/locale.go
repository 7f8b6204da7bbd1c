// Package locale parses numbers, dates and currency codes as they appear in
// broker exports from different locales.
package locale

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Locale describes how a broker formats numbers and dates.
type Locale struct {
	Name        string
	Decimal     rune
	Group       rune
	DateLayouts []string
}

// Spanish formats numbers as 1.234,56 and dates as 31/12/2023.
var Spanish = Locale{
	Name:        "es",
	Decimal:     ',',
	Group:       '.',
	DateLayouts: []string{"02/01/2006", "02-01-2006", "02/01/2006 15:04", "02-01-2006 15:04"},
}

// English formats numbers as 1,234.56 and dates as 2023-12-31.
var English = Locale{
	Name:        "en",
	Decimal:     '.',
	Group:       ',',
	DateLayouts: []string{"2006-01-02", "2006-01-02, 15:04:05", "2006-01-02 15:04:05", "20060102"},
}

// ParseDecimal parses s strictly according to the locale. Input that could
// only be read by guessing (a stray separator, uneven digit groups, two
// decimal marks) is rejected.
func (l Locale) ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}

	raw := s
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart, fracPart := s, ""
	if i := strings.IndexRune(s, l.Decimal); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
		if strings.ContainsRune(fracPart, l.Decimal) {
			return decimal.Zero, fmt.Errorf("number %q has more than one decimal separator", raw)
		}
		if fracPart == "" || !allDigits(fracPart) {
			return decimal.Zero, fmt.Errorf("number %q has an invalid fractional part for locale %s", raw, l.Name)
		}
	}

	if intPart == "" {
		return decimal.Zero, fmt.Errorf("number %q has no integer digits", raw)
	}
	digits, err := l.ungroup(intPart)
	if err != nil {
		return decimal.Zero, fmt.Errorf("number %q: %w", raw, err)
	}

	canonical := digits
	if fracPart != "" {
		canonical += "." + fracPart
	}
	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return decimal.Zero, fmt.Errorf("number %q: %w", raw, err)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ungroup removes thousands separators, requiring groups of exactly three
// digits after the first.
func (l Locale) ungroup(s string) (string, error) {
	if !strings.ContainsRune(s, l.Group) {
		if !allDigits(s) {
			return "", fmt.Errorf("unexpected character for locale %s", l.Name)
		}
		return s, nil
	}
	groups := strings.Split(s, string(l.Group))
	for i, g := range groups {
		if !allDigits(g) {
			return "", fmt.Errorf("unexpected character for locale %s", l.Name)
		}
		if i == 0 && (len(g) == 0 || len(g) > 3) {
			return "", fmt.Errorf("misplaced group separator %q", l.Group)
		}
		if i > 0 && len(g) != 3 {
			return "", fmt.Errorf("misplaced group separator %q", l.Group)
		}
	}
	return strings.Join(groups, ""), nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseDate tries each of the locale's layouts and returns the day in UTC.
func (l Locale) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range l.DateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q does not match locale %s layouts %v", s, l.Name, l.DateLayouts)
}

// ParseTimestamp is like ParseDate but keeps the time of day.
func (l Locale) ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range l.DateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q does not match locale %s layouts %v", s, l.Name, l.DateLayouts)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseCurrency validates an ISO 4217 code and returns it upper-cased.
func ParseCurrency(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != 3 || money.GetCurrency(code) == nil {
		return "", fmt.Errorf("unknown currency code %q", s)
	}
	return code, nil
}
