package importer

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/locale"
)

// IBKRReader parses Interactive Brokers activity statements exported as
// CSV, either bare or inside the zip archive the broker offers for
// download.
//
// Every line starts with a section name and a discriminator. Header lines
// (re)define the section's columns. Positions and trades only carry the
// ticker symbol; ISIN, name and listing exchange come from the "Financial
// Instrument Information" section, which is joined once the whole file has
// been read. Fees are read only when they name a security; account-level
// fees become diagnostics.
type IBKRReader struct{}

const (
	ibkrFormat = "ibkr"

	ibkrStatement   = "Statement"
	ibkrAccount     = "Account Information"
	ibkrPositions   = "Open Positions"
	ibkrTrades      = "Trades"
	ibkrDividends   = "Dividends"
	ibkrFees        = "Fees"
	ibkrInstruments = "Financial Instrument Information"

	ibkrPeriodLayout = "January 2, 2006"
)

var (
	zipMagic        = []byte("PK\x03\x04")
	dividendSubject = regexp.MustCompile(`^\s*([A-Za-z0-9.\- ]+?)\s*\(([A-Z]{2}[A-Z0-9]{9}[0-9])\)`)
)

var ibkrRequired = map[string][]string{
	ibkrStatement:   {"Field Name", "Field Value"},
	ibkrAccount:     {"Field Name", "Field Value"},
	ibkrPositions:   {"DataDiscriminator", "Asset Category", "Currency", "Symbol", "Quantity", "Value"},
	ibkrTrades:      {"DataDiscriminator", "Asset Category", "Currency", "Symbol", "Date/Time", "Quantity", "Proceeds"},
	ibkrDividends:   {"Currency", "Date", "Description", "Amount"},
	ibkrFees:        {"Currency", "Date", "Description", "Amount"},
	ibkrInstruments: {"Asset Category", "Symbol", "Description", "Security ID"},
}

// Operation values of IBKR cash rows.
const (
	IBKRDividend = "dividend"
	IBKRFee      = "fee"
)

type ibkrInstrument struct {
	isin, description, exchange, kind, category string
}

// ibkrPending is a parsed row waiting for the instrument join.
type ibkrPending struct {
	b      *rowBuilder
	symbol string
	needs  bool // true when the ISIN must come from the instrument section
}

// Format returns the format tag.
func (p *IBKRReader) Format() string { return ibkrFormat }

// Read parses an activity statement.
func (p *IBKRReader) Read(data []byte, opts Options) (*Report, error) {
	if bytes.HasPrefix(data, zipMagic) {
		var err error
		if data, err = unzipStatement(data); err != nil {
			return nil, err
		}
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, failure.Input(ibkrFormat, 0, "", "decoding text: %v", err)
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rep := &Report{Format: ibkrFormat}
	headers := make(map[string]columns)
	instruments := make(map[string]ibkrInstrument)
	var pending []ibkrPending

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, failure.Input(ibkrFormat, perr.Line, "", "%v", perr.Err)
			}
			return nil, failure.Input(ibkrFormat, 0, "", "reading statement: %v", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 2 {
			if err := rep.reject(Diagnostic{Line: line, Reason: "line has no section discriminator"}, opts); err != nil {
				return nil, err
			}
			continue
		}

		section, disc, vals := trimmed(rec[0]), trimmed(rec[1]), rec[2:]
		switch disc {
		case "Header":
			cols := newColumns(vals)
			if missing := cols.missing(ibkrRequired[section]...); len(missing) > 0 {
				return nil, failure.Input(ibkrFormat, line, "", "%s header missing columns %s", section, strings.Join(missing, ", "))
			}
			headers[section] = cols
			continue
		case "Data":
		default:
			continue // Total, SubTotal, Notes
		}

		if _, known := ibkrRequired[section]; !known {
			continue
		}
		cols, ok := headers[section]
		if !ok {
			if err := rep.reject(Diagnostic{Line: line, Reason: fmt.Sprintf("%s data before its header", section)}, opts); err != nil {
				return nil, err
			}
			continue
		}

		switch section {
		case ibkrStatement, ibkrAccount:
			if err := p.metadata(rep, cols, vals, line); err != nil {
				return nil, err
			}
		case ibkrInstruments:
			inst := ibkrInstrument{
				isin:        trimmed(cols.cell(vals, "Security ID")),
				description: trimmed(cols.cell(vals, "Description")),
				exchange:    trimmed(cols.cell(vals, "Listing Exch")),
				kind:        trimmed(cols.cell(vals, "Type")),
				category:    trimmed(cols.cell(vals, "Asset Category")),
			}
			for _, sym := range strings.Split(cols.cell(vals, "Symbol"), ",") {
				if sym = trimmed(sym); sym != "" {
					instruments[sym] = inst
				}
			}
		case ibkrPositions:
			if fold(cols.cell(vals, "DataDiscriminator")) != "summary" {
				continue
			}
			pending = append(pending, p.positionRow(cols, vals, line))
		case ibkrTrades:
			d := fold(cols.cell(vals, "DataDiscriminator"))
			if d != "order" && d != "trade" {
				continue
			}
			if fold(cols.cell(vals, "Asset Category")) == "forex" {
				continue
			}
			pending = append(pending, p.tradeRow(cols, vals, line))
		case ibkrDividends:
			if strings.HasPrefix(fold(cols.cell(vals, "Currency")), "total") {
				continue
			}
			pending = append(pending, p.cashRow(IBKRDividend, cols, vals, line))
		case ibkrFees:
			if strings.HasPrefix(fold(cols.cell(vals, "Subtitle")), "total") ||
				strings.HasPrefix(fold(cols.cell(vals, "Currency")), "total") {
				continue
			}
			pending = append(pending, p.cashRow(IBKRFee, cols, vals, line))
		}
	}

	if rep.Account == "" {
		return nil, failure.Input(ibkrFormat, 0, "Account", "statement does not name the account")
	}

	for _, pr := range pending {
		if pr.b.row.Kind == RowPosition {
			if rep.PeriodEnd.IsZero() {
				pr.b.fail("Period", "statement period unknown")
			}
			pr.b.row.set("date", Value{Kind: ValueDate, Time: rep.PeriodEnd})
		}
		if inst, ok := instruments[pr.symbol]; ok {
			if _, has := pr.b.row.String("isin"); !has && inst.isin != "" {
				pr.b.row.set("isin", Value{Kind: ValueString, Str: inst.isin})
			}
			pr.b.str("description", "Description", inst.description, false)
			pr.b.str("exchange", "Listing Exch", inst.exchange, false)
			pr.b.str("instrument_type", "Type", inst.kind, false)
		} else if pr.needs {
			pr.b.fail("Symbol", "no %s entry for symbol %q", ibkrInstruments, pr.symbol)
		}
		if _, has := pr.b.row.String("isin"); !has {
			pr.b.fail("Security ID", "instrument %q has no ISIN", pr.symbol)
		}

		row, diag := pr.b.done()
		if diag != nil {
			if err := rep.reject(*diag, opts); err != nil {
				return nil, err
			}
			continue
		}
		rep.Rows = append(rep.Rows, row)
	}

	sort.SliceStable(rep.Rows, func(i, j int) bool { return rep.Rows[i].Line < rep.Rows[j].Line })
	sort.SliceStable(rep.Diagnostics, func(i, j int) bool { return rep.Diagnostics[i].Line < rep.Diagnostics[j].Line })
	return rep, nil
}

func (p *IBKRReader) metadata(rep *Report, cols columns, vals []string, line int) error {
	name, value := trimmed(cols.cell(vals, "Field Name")), trimmed(cols.cell(vals, "Field Value"))
	switch name {
	case "WhenGenerated":
		ts, err := parseGenerated(value)
		if err != nil {
			return failure.Input(ibkrFormat, line, name, "%v", err)
		}
		rep.AsOf = ts
	case "Period":
		end, err := parsePeriodEnd(value)
		if err != nil {
			return failure.Input(ibkrFormat, line, name, "%v", err)
		}
		rep.PeriodEnd = end
	case "Account":
		if f := strings.Fields(value); len(f) > 0 {
			rep.Account = f[0]
		}
	case "Base Currency":
		code, err := locale.ParseCurrency(value)
		if err != nil {
			return failure.Input(ibkrFormat, line, name, "%v", err)
		}
		rep.BaseCurrency = code
	}
	return nil
}

func (p *IBKRReader) positionRow(cols columns, vals []string, line int) ibkrPending {
	b := newRow(RowPosition, line, locale.English)
	symbol := trimmed(cols.cell(vals, "Symbol"))
	b.str("symbol", "Symbol", symbol, true)
	b.str("asset_category", "Asset Category", cols.cell(vals, "Asset Category"), true)
	b.currency("currency", "Currency", cols.cell(vals, "Currency"))
	b.dec("quantity", "Quantity", cols.cell(vals, "Quantity"), true)
	b.dec("multiplier", "Mult", cols.cell(vals, "Mult"), false)
	b.dec("price", "Close Price", cols.cell(vals, "Close Price"), false)
	b.dec("value", "Value", cols.cell(vals, "Value"), true)
	return ibkrPending{b: b, symbol: symbol, needs: true}
}

func (p *IBKRReader) tradeRow(cols columns, vals []string, line int) ibkrPending {
	b := newRow(RowTrade, line, locale.English)
	symbol := trimmed(cols.cell(vals, "Symbol"))
	b.str("symbol", "Symbol", symbol, true)
	b.str("asset_category", "Asset Category", cols.cell(vals, "Asset Category"), true)
	b.currency("currency", "Currency", cols.cell(vals, "Currency"))
	b.date("date", "Date/Time", cols.cell(vals, "Date/Time"))
	b.dec("quantity", "Quantity", cols.cell(vals, "Quantity"), true)
	b.dec("price", "T. Price", cols.cell(vals, "T. Price"), false)
	b.dec("proceeds", "Proceeds", cols.cell(vals, "Proceeds"), true)
	b.dec("commission", "Comm/Fee", cols.cell(vals, "Comm/Fee"), false)
	b.str("code", "Code", cols.cell(vals, "Code"), false)
	if q, ok := b.row.Decimal("quantity"); ok && q.IsZero() {
		b.fail("Quantity", "trade quantity is zero")
	}
	return ibkrPending{b: b, symbol: symbol, needs: true}
}

// cashRow reads a dividend or fee line. Both name the security inside the
// description: "MSFT(US5949181045) Cash Dividend ...".
func (p *IBKRReader) cashRow(op string, cols columns, vals []string, line int) ibkrPending {
	b := newRow(RowCash, line, locale.English)
	b.row.set("operation", Value{Kind: ValueString, Str: op})
	desc := trimmed(cols.cell(vals, "Description"))
	b.currency("currency", "Currency", cols.cell(vals, "Currency"))
	b.date("date", "Date", cols.cell(vals, "Date"))
	b.str("text", "Description", desc, true)
	b.dec("amount", "Amount", cols.cell(vals, "Amount"), true)

	symbol := ""
	switch m := dividendSubject.FindStringSubmatch(desc); {
	case m != nil:
		symbol = m[1]
		b.row.set("isin", Value{Kind: ValueString, Str: m[2]})
	case op == IBKRFee:
		b.fail("Description", "account-level fee not linked to a security; skipped")
	default:
		if f := strings.Fields(desc); len(f) > 0 {
			symbol = strings.SplitN(f[0], "(", 2)[0]
		}
	}
	b.str("symbol", "Description", symbol, true)
	return ibkrPending{b: b, symbol: symbol}
}

// parseGenerated reads "2024-01-05, 10:11:12 EST", dropping the zone
// abbreviation which Go cannot resolve reliably.
func parseGenerated(s string) (time.Time, error) {
	f := strings.Fields(s)
	if len(f) == 3 {
		s = f[0] + " " + f[1]
	}
	return locale.English.ParseTimestamp(s)
}

// parsePeriodEnd reads the end of "January 1, 2023 - December 31, 2023".
func parsePeriodEnd(s string) (time.Time, error) {
	parts := strings.Split(s, " - ")
	end := strings.TrimSpace(parts[len(parts)-1])
	t, err := time.Parse(ibkrPeriodLayout, end)
	if err != nil {
		return time.Time{}, fmt.Errorf("period %q: %w", s, err)
	}
	return locale.Day(t), nil
}

// unzipStatement extracts the single CSV member of a downloaded archive.
func unzipStatement(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, failure.Input(ibkrFormat, 0, "", "opening zip archive: %v", err)
	}
	var members []*zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() && strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			members = append(members, f)
		}
	}
	if len(members) != 1 {
		return nil, failure.Input(ibkrFormat, 0, "", "zip archive has %d csv members, expected exactly one", len(members))
	}
	rc, err := members[0].Open()
	if err != nil {
		return nil, failure.Input(ibkrFormat, 0, "", "opening %s: %v", members[0].Name, err)
	}
	defer rc.Close()
	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, failure.Input(ibkrFormat, 0, "", "reading %s: %v", members[0].Name, err)
	}
	return out, nil
}
