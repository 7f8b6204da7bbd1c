// Package layout serializes form documents into the fixed-width records
// the receiving authority expects.
//
// A Schema lists the fields of the header, line and trailer records.
// Field positions are implicit: each field starts where the previous one
// ends, and every record must add up to the schema's record length.
package layout

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/model"
)

// Kind is how a field value is rendered.
type Kind string

const (
	KindAlpha   Kind = "alpha"   // left-aligned, space padded, upper case
	KindNumeric Kind = "numeric" // right-aligned, zero padded digits
	KindAmount  Kind = "amount"  // absolute value with implied decimals, zero padded
	KindDate    Kind = "date"    // YYYYMMDD, zeros when unknown
	KindSign    Kind = "sign"    // "N" when the next amount is negative, else space
	KindConst   Kind = "const"   // fixed text, space padded
)

// Names resolved by the generator rather than taken from the document.
const (
	FieldFiscalYear    = "fiscal_year"
	FieldFormVersion   = "form_version"
	FieldDeclarationID = "declaration_id"
	FieldRecordCount   = "record_count"
	FieldChecksum      = "checksum"
)

// FieldSpec describes one field of a record.
type FieldSpec struct {
	Name     string `yaml:"name"`
	Width    int    `yaml:"width"`
	Kind     Kind   `yaml:"kind"`
	Decimals int32  `yaml:"decimals,omitempty"`
	Const    string `yaml:"const,omitempty"`
}

// Schema is the layout of one form version.
type Schema struct {
	Form         model.FormID `yaml:"form"`
	Version      string       `yaml:"version"`
	RecordLength int          `yaml:"record_length"`
	Encoding     string       `yaml:"encoding"`
	Checksum     string       `yaml:"checksum"`
	Separator    string       `yaml:"separator,omitempty"`
	Header       []FieldSpec  `yaml:"header"`
	Line         []FieldSpec  `yaml:"line"`
	Trailer      []FieldSpec  `yaml:"trailer"`
}

// Record names used in errors.
const (
	RecordHeader  = "header"
	RecordLine    = "line"
	RecordTrailer = "trailer"
)

func (s *Schema) records() []struct {
	name   string
	fields []FieldSpec
} {
	return []struct {
		name   string
		fields []FieldSpec
	}{
		{RecordHeader, s.Header},
		{RecordLine, s.Line},
		{RecordTrailer, s.Trailer},
	}
}

func (s *Schema) separator() string {
	if s.Separator == "" {
		return "\r\n"
	}
	return s.Separator
}

// Validate checks that the schema is internally consistent.
func (s *Schema) Validate() error {
	key := "schema." + string(s.Form)
	if s.Form == "" {
		return failure.Config("schema.form", "not set")
	}
	if s.RecordLength <= 0 {
		return failure.Config(key+".record_length", "must be positive")
	}
	if _, err := encoderFor(s.Encoding); err != nil {
		return failure.Config(key+".encoding", "%v", err)
	}
	algo, ok := checksums[strings.ToLower(s.Checksum)]
	if !ok {
		return failure.Config(key+".checksum", "unknown algorithm %q (supported: %s)", s.Checksum, strings.Join(checksumNames(), ", "))
	}

	checksumFields := 0
	for _, rec := range s.records() {
		if len(rec.fields) == 0 {
			return failure.Config(key+"."+rec.name, "record has no fields")
		}
		width := 0
		for i, f := range rec.fields {
			fkey := fmt.Sprintf("%s.%s.%s", key, rec.name, f.Name)
			if f.Name == "" {
				return failure.Config(fmt.Sprintf("%s.%s[%d]", key, rec.name, i), "field has no name")
			}
			if f.Width <= 0 {
				return failure.Config(fkey, "width must be positive")
			}
			switch f.Kind {
			case KindNumeric, KindDate:
			case KindAlpha:
			case KindAmount:
				if f.Decimals < 0 {
					return failure.Config(fkey, "negative decimals")
				}
			case KindSign:
				if i+1 >= len(rec.fields) || rec.fields[i+1].Kind != KindAmount {
					return failure.Config(fkey, "sign field must precede an amount field")
				}
			case KindConst:
				if len([]rune(f.Const)) > f.Width {
					return failure.Config(fkey, "constant %q wider than %d", f.Const, f.Width)
				}
			default:
				return failure.Config(fkey, "unknown kind %q", f.Kind)
			}
			if f.Kind == KindDate && f.Width != 8 {
				return failure.Config(fkey, "date fields are 8 wide")
			}
			if f.Name == FieldChecksum {
				if rec.name != RecordTrailer {
					return failure.Config(fkey, "checksum belongs to the trailer")
				}
				if f.Width < algo.minWidth {
					return failure.Config(fkey, "%s needs width %d", s.Checksum, algo.minWidth)
				}
				checksumFields++
			}
			width += f.Width
		}
		if width != s.RecordLength {
			return failure.Config(key+"."+rec.name, "fields add up to %d, record length is %d", width, s.RecordLength)
		}
	}
	if algo.minWidth > 0 && checksumFields != 1 {
		return failure.Config(key+".trailer", "trailer needs exactly one %s field", FieldChecksum)
	}
	return nil
}

// ParseSchema reads a schema from YAML and validates it.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, failure.Config("schema", "parsing layout: %v", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadSchema reads a schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout: %w", err)
	}
	return ParseSchema(data)
}

// Marshal renders the schema as YAML, for editing a copy of a built-in.
func (s *Schema) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
