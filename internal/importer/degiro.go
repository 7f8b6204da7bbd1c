package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/locale"
)

// DegiroReader parses the text of the Degiro annual report ("Informe
// anual"), semicolon separated and in the Spanish locale.
//
// The report has a preamble (generation time, account), a "Cartera a
// dd/mm/yyyy" portfolio section and an "Operaciones" section. Product names
// wrapped by the PDF text layer continue on a line whose only non-empty
// cell is the first one.
type DegiroReader struct{}

// Operation words accepted in the Operaciones section, folded.
const (
	DegiroBuy      = "compra"
	DegiroSell     = "venta"
	DegiroDividend = "dividendo"
	DegiroFee      = "comision"
	DegiroTransfer = "transferencia"
)

const (
	degiroFormat     = "degiro"
	degiroTitle      = "informe anual degiro"
	degiroPortfolio  = "cartera a "
	degiroOperations = "operaciones"

	degColProduct    = "Producto"
	degColSymbol     = "Símbolo/ISIN"
	degColISIN       = "ISIN"
	degColMarket     = "Bolsa"
	degColQuantity   = "Cantidad"
	degColCurrency   = "Moneda"
	degColPrice      = "Precio"
	degColValueEUR   = "Valor en EUR"
	degColDate       = "Fecha"
	degColOperation  = "Operación"
	degColLocalValue = "Valor local"
	degColCommission = "Comisión"
)

var degiroOperationKinds = map[string]RowKind{
	DegiroBuy:      RowTrade,
	DegiroSell:     RowTrade,
	DegiroDividend: RowCash,
	DegiroFee:      RowCash,
	DegiroTransfer: RowCash,
}

type degiroSection int

const (
	degiroNone degiroSection = iota
	degiroInPortfolio
	degiroInOperations
)

// Format returns the format tag.
func (p *DegiroReader) Format() string { return degiroFormat }

// Read parses a Degiro annual report.
func (p *DegiroReader) Read(data []byte, opts Options) (*Report, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, failure.Input(degiroFormat, 0, "", "decoding text: %v", err)
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rep := &Report{Format: degiroFormat, BaseCurrency: "EUR"}
	var (
		sect degiroSection
		cols columns
		last = -1 // index of the last accepted row of the current section
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, failure.Input(degiroFormat, perr.Line, "", "%v", perr.Err)
			}
			return nil, failure.Input(degiroFormat, 0, "", "reading report: %v", err)
		}
		line, _ := cr.FieldPos(0)
		first := fold(rec[0])

		switch {
		case first == degiroTitle:
			continue
		case first == "generado":
			ts, err := locale.Spanish.ParseTimestamp(cellAt(rec, 1))
			if err != nil {
				return nil, failure.Input(degiroFormat, line, "Generado", "%v", err)
			}
			rep.AsOf = ts
			continue
		case first == "cuenta":
			rep.Account = trimmed(cellAt(rec, 1))
			continue
		case first == "moneda base":
			code, err := locale.ParseCurrency(cellAt(rec, 1))
			if err != nil {
				return nil, failure.Input(degiroFormat, line, "Moneda base", "%v", err)
			}
			rep.BaseCurrency = code
			continue
		case strings.HasPrefix(first, degiroPortfolio) && onlyFirst(rec):
			d, err := locale.Spanish.ParseDate(strings.TrimSpace(rec[0])[len(degiroPortfolio):])
			if err != nil {
				return nil, failure.Input(degiroFormat, line, "Cartera", "%v", err)
			}
			rep.PeriodEnd = d
			sect, cols, last = degiroInPortfolio, nil, -1
			continue
		case first == degiroOperations && onlyFirst(rec):
			sect, cols, last = degiroInOperations, nil, -1
			continue
		}

		if sect == degiroNone {
			if err := rep.reject(Diagnostic{Line: line, Reason: "line outside any report section"}, opts); err != nil {
				return nil, err
			}
			continue
		}

		if cols == nil {
			cols = newColumns(rec)
			if missing := degiroMissingColumns(sect, cols); len(missing) > 0 {
				return nil, failure.Input(degiroFormat, line, "", "section header missing columns %s", strings.Join(missing, ", "))
			}
			continue
		}

		if onlyFirst(rec) {
			if last < 0 {
				if err := rep.reject(Diagnostic{Line: line, Field: degColProduct, Reason: "continuation line without a preceding record"}, opts); err != nil {
					return nil, err
				}
				continue
			}
			prev := &rep.Rows[last]
			name, _ := prev.String("product")
			prev.set("product", Value{Kind: ValueString, Str: name + " " + trimmed(rec[0])})
			continue
		}

		var b *rowBuilder
		if sect == degiroInPortfolio {
			b = p.portfolioRow(rep, cols, rec, line)
		} else {
			b = p.operationRow(cols, rec, line)
		}
		row, diag := b.done()
		if diag != nil {
			last = -1
			if err := rep.reject(*diag, opts); err != nil {
				return nil, err
			}
			continue
		}
		rep.Rows = append(rep.Rows, row)
		last = len(rep.Rows) - 1
	}

	if rep.Account == "" {
		return nil, failure.Input(degiroFormat, 0, "Cuenta", "report does not name the account")
	}
	return rep, nil
}

func degiroMissingColumns(sect degiroSection, cols columns) []string {
	if sect == degiroInPortfolio {
		return cols.missing(degColProduct, degColSymbol, degColQuantity, degColCurrency, degColValueEUR)
	}
	return cols.missing(degColDate, degColProduct, degColISIN, degColOperation, degColQuantity, degColCurrency, degColLocalValue)
}

func (p *DegiroReader) portfolioRow(rep *Report, cols columns, rec []string, line int) *rowBuilder {
	b := newRow(RowPosition, line, locale.Spanish)
	b.str("product", degColProduct, cols.cell(rec, degColProduct), true)
	b.str("isin", degColSymbol, cols.cell(rec, degColSymbol), true)
	b.str("market", degColMarket, cols.cell(rec, degColMarket), false)
	b.dec("quantity", degColQuantity, cols.cell(rec, degColQuantity), true)
	b.currency("currency", degColCurrency, cols.cell(rec, degColCurrency))
	b.dec("price", degColPrice, cols.cell(rec, degColPrice), false)
	b.dec("value_eur", degColValueEUR, cols.cell(rec, degColValueEUR), true)
	if rep.PeriodEnd.IsZero() {
		b.fail("Cartera", "portfolio date unknown")
	}
	b.row.set("date", Value{Kind: ValueDate, Time: rep.PeriodEnd})
	return b
}

func (p *DegiroReader) operationRow(cols columns, rec []string, line int) *rowBuilder {
	op := fold(cols.cell(rec, degColOperation))
	kind, known := degiroOperationKinds[op]
	if !known {
		kind = RowCash
	}
	b := newRow(kind, line, locale.Spanish)
	if !known {
		b.fail(degColOperation, "unknown operation %q", cols.cell(rec, degColOperation))
	}
	b.row.set("operation", Value{Kind: ValueString, Str: op})

	b.date("date", degColDate, cols.cell(rec, degColDate))
	b.str("product", degColProduct, cols.cell(rec, degColProduct), true)
	if op == DegiroFee && trimmed(cols.cell(rec, degColISIN)) == "" {
		b.fail(degColISIN, "account-level fee not linked to a security; skipped")
	}
	b.str("isin", degColISIN, cols.cell(rec, degColISIN), true)
	b.str("market", degColMarket, cols.cell(rec, degColMarket), false)
	b.dec("quantity", degColQuantity, cols.cell(rec, degColQuantity), kind == RowTrade)
	b.dec("price", degColPrice, cols.cell(rec, degColPrice), false)
	b.currency("currency", degColCurrency, cols.cell(rec, degColCurrency))
	b.dec("local_value", degColLocalValue, cols.cell(rec, degColLocalValue), true)
	b.dec("value_eur", degColValueEUR, cols.cell(rec, degColValueEUR), false)
	b.dec("commission", degColCommission, cols.cell(rec, degColCommission), false)
	return b
}
