package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FormID identifies a target government form.
type FormID string

const (
	FormForeignAssets     FormID = "aeat720"
	FormForeignInvestment FormID = "d6"
)

// ValueKind tells which member of a FieldValue is set.
type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
	KindDate
)

// FieldValue is a declaration field value already mapped to the form's
// vocabulary.
type FieldValue struct {
	Kind   ValueKind
	Text   string
	Number decimal.Decimal
	Date   time.Time
}

// Text returns a textual field value.
func Text(s string) FieldValue { return FieldValue{Kind: KindText, Text: s} }

// Number returns a numeric field value.
func Number(d decimal.Decimal) FieldValue { return FieldValue{Kind: KindNumber, Number: d} }

// Date returns a date field value. A zero time means "unknown".
func Date(t time.Time) FieldValue { return FieldValue{Kind: KindDate, Date: t} }

// String renders the value for review output.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindNumber:
		return v.Number.String()
	case KindDate:
		if v.Date.IsZero() {
			return ""
		}
		return v.Date.Format("2006-01-02")
	default:
		return v.Text
	}
}

// Field is a named declaration value.
type Field struct {
	Name  string
	Value FieldValue
}

// Fields is an ordered list of named values.
type Fields []Field

// Get returns the value named name.
func (fs Fields) Get(name string) (FieldValue, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return FieldValue{}, false
}

// Set replaces the value named name, appending it if absent.
func (fs *Fields) Set(name string, v FieldValue) {
	for i := range *fs {
		if (*fs)[i].Name == name {
			(*fs)[i].Value = v
			return
		}
	}
	*fs = append(*fs, Field{Name: name, Value: v})
}

// DeclarationLine is one row of a target form. It references exactly one
// consolidated holding and declares one custody account's part of it.
type DeclarationLine struct {
	Form    FormID
	Holding *ConsolidatedHolding
	Account CustodyAccount
	Fields  Fields
}

// SortKey returns the generator ordering key: security id, then account.
func (l DeclarationLine) SortKey() (string, AccountKey) {
	id := ""
	if l.Holding != nil {
		id = l.Holding.Security.ID
	}
	return id, l.Account.Key()
}

// Header identifies the filer and the declaration.
type Header struct {
	FiscalYear    int
	FormVersion   string
	DeclarationID string
	Fields        Fields // filer identity and form-specific aggregates
}

// Trailer closes a generated form.
type Trailer struct {
	RecordCount int
	Checksum    string
}

// FormDocument is the ordered content of one form ready for serialization.
type FormDocument struct {
	Form    FormID
	Header  Header
	Lines   []DeclarationLine
	Trailer Trailer
}
