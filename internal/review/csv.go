// Package review exports declaration lines as CSV so they can be checked
// before filing, and reads such an export back.
//
// The first columns identify the line. Every other column is a declaration
// field; its header carries a type suffix (":n" number, ":d" date) unless
// the field is text. An empty cell means the line has no such field.
package review

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/declara-dev/declara/internal/model"
)

const (
	dateFormat = "2006-01-02"
	numFixed   = 5
	colForm    = 0
	colSec     = 1
	colBroker  = 2
	colAcctID  = 3
	colCountry = 4

	suffixNumber = ":n"
	suffixDate   = ":d"
)

var fixedHeader = []string{"form", "security", "broker", "account_id", "custody_country"}

type column struct {
	name string
	kind model.ValueKind
}

func (c column) header() string {
	switch c.kind {
	case model.KindNumber:
		return c.name + suffixNumber
	case model.KindDate:
		return c.name + suffixDate
	}
	return c.name
}

func parseColumn(h string) column {
	switch {
	case strings.HasSuffix(h, suffixNumber):
		return column{strings.TrimSuffix(h, suffixNumber), model.KindNumber}
	case strings.HasSuffix(h, suffixDate):
		return column{strings.TrimSuffix(h, suffixDate), model.KindDate}
	}
	return column{h, model.KindText}
}

// columns returns the field columns of lines in first-seen order.
func columns(lines []model.DeclarationLine) []column {
	seen := make(map[string]bool)
	var out []column
	for _, l := range lines {
		for _, f := range l.Fields {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			out = append(out, column{f.Name, f.Value.Kind})
		}
	}
	return out
}

// WriteLines writes lines to w (including header).
func WriteLines(w io.Writer, lines []model.DeclarationLine) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	cols := columns(lines)
	header := append([]string{}, fixedHeader...)
	for _, c := range cols {
		header = append(header, c.header())
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, l := range lines {
		if err := cw.Write(marshalLine(l, cols)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// marshalLine converts a line to a CSV row with the given field columns.
func marshalLine(l model.DeclarationLine, cols []column) []string {
	row := make([]string, numFixed+len(cols))
	row[colForm] = string(l.Form)
	row[colSec], _ = l.SortKey()
	row[colBroker] = l.Account.Broker
	row[colAcctID] = l.Account.AccountID
	row[colCountry] = l.Account.Country
	for i, c := range cols {
		if v, ok := l.Fields.Get(c.name); ok {
			row[numFixed+i] = v.String()
		}
	}
	return row
}

// ReadLines reads lines written by WriteLines. The holdings of the lines
// carry only the security id.
func ReadLines(r io.Reader) ([]model.DeclarationLine, error) {
	cr := csv.NewReader(r)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading review CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	if len(header) < numFixed || strings.Join(header[:numFixed], ",") != strings.Join(fixedHeader, ",") {
		return nil, fmt.Errorf("review CSV header must start with %s", strings.Join(fixedHeader, ","))
	}
	cols := make([]column, 0, len(header)-numFixed)
	for _, h := range header[numFixed:] {
		cols = append(cols, parseColumn(h))
	}

	var lines []model.DeclarationLine
	for i, rec := range records[1:] {
		l, err := unmarshalLine(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// unmarshalLine converts a CSV row to a line.
func unmarshalLine(record []string, cols []column) (model.DeclarationLine, error) {
	if len(record) != numFixed+len(cols) {
		return model.DeclarationLine{}, fmt.Errorf("expected %d fields, got %d", numFixed+len(cols), len(record))
	}

	l := model.DeclarationLine{
		Form:    model.FormID(record[colForm]),
		Holding: &model.ConsolidatedHolding{Security: model.Security{ID: record[colSec]}},
		Account: model.CustodyAccount{
			Broker:    record[colBroker],
			AccountID: record[colAcctID],
			Country:   record[colCountry],
		},
	}
	for i, c := range cols {
		raw := record[numFixed+i]
		if raw == "" {
			continue
		}
		switch c.kind {
		case model.KindNumber:
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return model.DeclarationLine{}, fmt.Errorf("parsing %s %q: %w", c.name, raw, err)
			}
			l.Fields.Set(c.name, model.Number(d))
		case model.KindDate:
			t, err := time.Parse(dateFormat, raw)
			if err != nil {
				return model.DeclarationLine{}, fmt.Errorf("parsing %s %q: %w", c.name, raw, err)
			}
			l.Fields.Set(c.name, model.Date(t))
		default:
			l.Fields.Set(c.name, model.Text(raw))
		}
	}
	return l, nil
}
