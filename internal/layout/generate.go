package layout

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/model"
)

// Generate serializes doc with schema. Lines are written in SortKey order,
// each record followed by the schema separator. Any value that does not
// fit its field fails the whole document with a *failure.LayoutError and
// no bytes are returned.
//
// Field values are looked up in the line's fields, then the header's, then
// among the generated values (fiscal_year, form_version, declaration_id,
// record_count). A missing value renders as blanks or zeros. The trailer's
// checksum field covers every byte written before the trailer.
//
// On success doc.Trailer is filled in.
func Generate(schema *Schema, doc *model.FormDocument) ([]byte, error) {
	if schema.Form != doc.Form {
		return nil, failure.Config("schema."+string(doc.Form), "layout is for form %s", schema.Form)
	}
	enc, err := encoderFor(schema.Encoding)
	if err != nil {
		return nil, failure.Config("schema."+string(schema.Form)+".encoding", "%v", err)
	}
	algo, ok := checksums[strings.ToLower(schema.Checksum)]
	if !ok {
		return nil, failure.Config("schema."+string(schema.Form)+".checksum", "unknown algorithm %q", schema.Checksum)
	}

	lines := make([]model.DeclarationLine, len(doc.Lines))
	copy(lines, doc.Lines)
	sort.SliceStable(lines, func(i, j int) bool {
		si, ai := lines[i].SortKey()
		sj, aj := lines[j].SortKey()
		if si != sj {
			return si < sj
		}
		return ai.Less(aj)
	})

	g := &generator{
		schema: schema,
		enc:    enc,
		doc:    doc,
		builtin: model.Fields{
			{Name: FieldFiscalYear, Value: model.Number(decimal.NewFromInt(int64(doc.Header.FiscalYear)))},
			{Name: FieldFormVersion, Value: model.Text(doc.Header.FormVersion)},
			{Name: FieldDeclarationID, Value: model.Text(doc.Header.DeclarationID)},
			{Name: FieldRecordCount, Value: model.Number(decimal.NewFromInt(int64(len(lines))))},
		},
	}
	sep := []byte(schema.separator())

	var buf bytes.Buffer
	if err := g.record(&buf, RecordHeader, schema.Header, 0, nil, ""); err != nil {
		return nil, err
	}
	buf.Write(sep)
	for i := range lines {
		if err := g.record(&buf, RecordLine, schema.Line, i+1, lines[i].Fields, ""); err != nil {
			return nil, err
		}
		buf.Write(sep)
	}

	var sum string
	if algo.minWidth > 0 {
		width := 0
		for _, f := range schema.Trailer {
			if f.Name == FieldChecksum {
				width = f.Width
			}
		}
		sum = algo.sum(buf.Bytes(), width)
	}
	if err := g.record(&buf, RecordTrailer, schema.Trailer, 0, nil, sum); err != nil {
		return nil, err
	}
	buf.Write(sep)

	doc.Trailer = model.Trailer{RecordCount: len(lines), Checksum: sum}
	return buf.Bytes(), nil
}

type generator struct {
	schema  *Schema
	enc     *encoding.Encoder
	doc     *model.FormDocument
	builtin model.Fields
}

func (g *generator) value(name string, line model.Fields) (model.FieldValue, bool) {
	if v, ok := line.Get(name); ok {
		return v, true
	}
	if v, ok := g.doc.Header.Fields.Get(name); ok {
		return v, true
	}
	return g.builtin.Get(name)
}

func (g *generator) record(buf *bytes.Buffer, record string, fields []FieldSpec, lineNo int, line model.Fields, checksum string) error {
	fail := func(f FieldSpec, format string, args ...any) error {
		return &failure.LayoutError{
			Form:   string(g.schema.Form),
			Line:   lineNo,
			Record: record,
			Field:  f.Name,
			Reason: fmt.Sprintf(format, args...),
		}
	}

	start := buf.Len()
	for i, f := range fields {
		var (
			out    []byte
			reason string
		)
		switch {
		case f.Kind == KindConst:
			out, reason = g.alpha(f.Const, f.Width)
		case f.Name == FieldChecksum && record == RecordTrailer:
			out, reason = g.alpha(checksum, f.Width)
		case f.Kind == KindSign:
			next := fields[i+1]
			v, _ := g.value(next.Name, line)
			out = []byte(" ")
			if n, err := number(v); err == nil && n.IsNegative() {
				out = []byte("N")
			}
		default:
			v, ok := g.value(f.Name, line)
			signed := i > 0 && fields[i-1].Kind == KindSign
			out, reason = g.render(f, v, ok, signed)
		}
		if reason != "" {
			buf.Truncate(start)
			return fail(f, "%s", reason)
		}
		buf.Write(out)
	}
	if n := buf.Len() - start; n != g.schema.RecordLength {
		return failure.Internal("layout", "%s %s record is %d bytes, want %d", g.schema.Form, record, n, g.schema.RecordLength)
	}
	return nil
}

// render encodes one field value. A non-empty reason means it does not fit.
func (g *generator) render(f FieldSpec, v model.FieldValue, present, signed bool) ([]byte, string) {
	switch f.Kind {
	case KindAlpha:
		return g.alpha(strings.ToUpper(v.String()), f.Width)

	case KindNumeric:
		if !present || v.String() == "" {
			return zeros(f.Width), ""
		}
		var digits string
		if v.Kind == model.KindNumber {
			if v.Number.IsNegative() {
				return nil, fmt.Sprintf("negative value %s", v.Number)
			}
			if !v.Number.Equal(v.Number.Truncate(0)) {
				return nil, fmt.Sprintf("value %s is not a whole number", v.Number)
			}
			digits = v.Number.Truncate(0).String()
		} else {
			digits = strings.TrimSpace(v.Text)
			if strings.TrimFunc(digits, isDigit) != "" {
				return nil, fmt.Sprintf("value %q is not numeric", digits)
			}
		}
		return pad(digits, f.Width)

	case KindAmount:
		if !present {
			return zeros(f.Width), ""
		}
		n, err := number(v)
		if err != nil {
			return nil, err.Error()
		}
		if n.IsNegative() && !signed {
			return nil, fmt.Sprintf("negative value %s and no sign field", n)
		}
		scaled := n.Abs().Shift(f.Decimals)
		if !scaled.Equal(scaled.Truncate(0)) {
			return nil, fmt.Sprintf("value %s has more than %d decimals", n, f.Decimals)
		}
		return pad(scaled.Truncate(0).String(), f.Width)

	case KindDate:
		switch {
		case !present:
			return zeros(f.Width), ""
		case v.Kind == model.KindDate && v.Date.IsZero():
			return zeros(f.Width), ""
		case v.Kind == model.KindDate:
			return []byte(v.Date.Format("20060102")), ""
		case strings.TrimSpace(v.Text) == "":
			return zeros(f.Width), ""
		}
		return nil, fmt.Sprintf("value %q is not a date", v.String())
	}
	return nil, fmt.Sprintf("unknown kind %q", f.Kind)
}

// alpha encodes s left-aligned and space padded.
func (g *generator) alpha(s string, width int) ([]byte, string) {
	for _, r := range s {
		if unicode.IsControl(r) {
			return nil, fmt.Sprintf("control character %q in %q", r, s)
		}
	}
	out, err := encode(g.enc, s)
	if err != nil {
		return nil, fmt.Sprintf("%v in %q", err, s)
	}
	if len(out) > width {
		return nil, fmt.Sprintf("value %q is %d bytes, field is %d wide", s, len(out), width)
	}
	return append(out, bytes.Repeat([]byte(" "), width-len(out))...), ""
}

func number(v model.FieldValue) (decimal.Decimal, error) {
	switch v.Kind {
	case model.KindNumber:
		return v.Number, nil
	case model.KindText:
		if strings.TrimSpace(v.Text) == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v.Text))
		if err != nil {
			return decimal.Zero, fmt.Errorf("value %q is not a number", v.Text)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("value %q is not a number", v.String())
}

func pad(digits string, width int) ([]byte, string) {
	if len(digits) > width {
		return nil, fmt.Sprintf("value %s needs %d digits, field is %d wide", digits, len(digits), width)
	}
	return []byte(strings.Repeat("0", width-len(digits)) + digits), ""
}

func zeros(width int) []byte { return bytes.Repeat([]byte("0"), width) }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
