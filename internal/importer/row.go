package importer

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/locale"
)

// RowKind tells what a provisional row describes.
type RowKind string

const (
	RowPosition RowKind = "position"
	RowTrade    RowKind = "trade"
	RowCash     RowKind = "cash"
)

// ValueKind is the type of a parsed field value.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueDecimal
	ValueDate
	ValueCurrency
)

// Value is a typed field value.
type Value struct {
	Kind ValueKind
	Str  string // string and currency values
	Dec  decimal.Decimal
	Time time.Time
}

// Field is a named value in a row.
type Field struct {
	Name  string
	Value Value
}

// Row is the format-agnostic shape every reader produces: an ordered list
// of typed, named fields plus the source line it came from.
type Row struct {
	Kind   RowKind
	Line   int
	Fields []Field
}

// Get returns the named value.
func (r Row) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// String returns a string or currency field.
func (r Row) String(name string) (string, bool) {
	v, ok := r.Get(name)
	if !ok || (v.Kind != ValueString && v.Kind != ValueCurrency) {
		return "", false
	}
	return v.Str, true
}

// Decimal returns a decimal field.
func (r Row) Decimal(name string) (decimal.Decimal, bool) {
	v, ok := r.Get(name)
	if !ok || v.Kind != ValueDecimal {
		return decimal.Zero, false
	}
	return v.Dec, true
}

// Date returns a date field.
func (r Row) Date(name string) (time.Time, bool) {
	v, ok := r.Get(name)
	if !ok || v.Kind != ValueDate {
		return time.Time{}, false
	}
	return v.Time, true
}

func (r *Row) set(name string, v Value) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = v
			return
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: v})
}

// Diagnostic describes a row that was excluded from the result.
type Diagnostic struct {
	Line   int
	Field  string
	Reason string
}

func (d Diagnostic) String() string {
	if d.Field == "" {
		return fmt.Sprintf("line %d: %s", d.Line, d.Reason)
	}
	return fmt.Sprintf("line %d: %s: %s", d.Line, d.Field, d.Reason)
}

// Report is the provisional, broker-shaped result of reading one export.
type Report struct {
	Format       string
	Account      string
	BaseCurrency string
	AsOf         time.Time // generation timestamp printed by the broker
	PeriodEnd    time.Time
	Rows         []Row
	Diagnostics  []Diagnostic
}

// reject records a bad row, or fails the whole parse in strict mode.
func (r *Report) reject(d Diagnostic, opts Options) error {
	if opts.Strict {
		return &failure.InputError{Source: r.Format, Line: d.Line, Field: d.Field, Reason: d.Reason}
	}
	r.Diagnostics = append(r.Diagnostics, d)
	return nil
}

// rowBuilder parses raw cells into a Row, remembering the first problem.
type rowBuilder struct {
	loc  locale.Locale
	row  Row
	diag *Diagnostic
}

func newRow(kind RowKind, line int, loc locale.Locale) *rowBuilder {
	return &rowBuilder{loc: loc, row: Row{Kind: kind, Line: line}}
}

func (b *rowBuilder) fail(field, format string, args ...any) {
	if b.diag == nil {
		b.diag = &Diagnostic{Line: b.row.Line, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
}

func (b *rowBuilder) str(name, column, raw string, required bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			b.fail(column, "required value missing")
		}
		return
	}
	b.row.set(name, Value{Kind: ValueString, Str: raw})
}

func (b *rowBuilder) dec(name, column, raw string, required bool) {
	if strings.TrimSpace(raw) == "" {
		if required {
			b.fail(column, "required value missing")
		}
		return
	}
	d, err := b.loc.ParseDecimal(raw)
	if err != nil {
		b.fail(column, "%v", err)
		return
	}
	b.row.set(name, Value{Kind: ValueDecimal, Dec: d})
}

func (b *rowBuilder) date(name, column, raw string) {
	if strings.TrimSpace(raw) == "" {
		b.fail(column, "required value missing")
		return
	}
	t, err := b.loc.ParseDate(raw)
	if err != nil {
		b.fail(column, "%v", err)
		return
	}
	b.row.set(name, Value{Kind: ValueDate, Time: t})
}

func (b *rowBuilder) currency(name, column, raw string) {
	code, err := locale.ParseCurrency(raw)
	if err != nil {
		b.fail(column, "%v", err)
		return
	}
	b.row.set(name, Value{Kind: ValueCurrency, Str: code})
}

func (b *rowBuilder) done() (Row, *Diagnostic) {
	return b.row, b.diag
}

var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lower-cases s and strips accents so "Operación" matches "operacion".
func fold(s string) string {
	out, _, err := transform.String(folder, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return strings.ToLower(out)
}

// columns maps folded header names to their index.
type columns map[string]int

func newColumns(header []string) columns {
	c := make(columns, len(header))
	for i, h := range header {
		c[fold(h)] = i
	}
	return c
}

// cell returns the cell for column name, or "" when the row is short.
func (c columns) cell(rec []string, name string) string {
	i, ok := c[fold(name)]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func (c columns) missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if _, ok := c[fold(n)]; !ok {
			out = append(out, n)
		}
	}
	return out
}
