package layout

import (
	"sort"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/model"
)

func alpha(name string, width int) FieldSpec { return FieldSpec{Name: name, Width: width, Kind: KindAlpha} }
func numeric(name string, width int) FieldSpec { return FieldSpec{Name: name, Width: width, Kind: KindNumeric} }
func date(name string) FieldSpec { return FieldSpec{Name: name, Width: 8, Kind: KindDate} }
func sign(name string) FieldSpec { return FieldSpec{Name: name, Width: 1, Kind: KindSign} }
func constant(name, v string, width int) FieldSpec {
	return FieldSpec{Name: name, Width: width, Kind: KindConst, Const: v}
}
func amount(name string, width int, decimals int32) FieldSpec {
	return FieldSpec{Name: name, Width: width, Kind: KindAmount, Decimals: decimals}
}

func filler(width int) FieldSpec { return constant("filler", "", width) }

var builtins = map[model.FormID]map[string]func() *Schema{
	model.FormForeignAssets: {
		"2023": foreignAssets2023,
	},
	model.FormForeignInvestment: {
		"2023": foreignInvestment2023,
	},
}

// Builtin returns a fresh copy of a built-in layout.
func Builtin(form model.FormID, version string) (*Schema, error) {
	versions, ok := builtins[form]
	if !ok {
		return nil, failure.Config("forms."+string(form), "no layout for form %q", form)
	}
	build, ok := versions[version]
	if !ok {
		return nil, failure.Config("forms."+string(form)+".version", "no built-in layout version %q (have %v)", version, Versions(form))
	}
	return build(), nil
}

// Versions lists the built-in layout versions of form.
func Versions(form model.FormID) []string {
	var out []string
	for v := range builtins[form] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Latest returns the newest built-in version of form, or "".
func Latest(form model.FormID) string {
	vs := Versions(form)
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}

func foreignAssets2023() *Schema {
	return &Schema{
		Form:         model.FormForeignAssets,
		Version:      "2023",
		RecordLength: 500,
		Encoding:     "iso-8859-1",
		Checksum:     "crc32",
		Header: []FieldSpec{
			constant("record_type", "1", 1),
			constant("form", "720", 3),
			numeric(FieldFiscalYear, 4),
			alpha("nif", 9),
			alpha("filer_name", 40),
			constant("support", "T", 1),
			numeric("phone", 9),
			alpha("contact", 40),
			numeric(FieldDeclarationID, 13),
			constant("declaration_kind", "", 2),
			constant("previous_id", "0000000000000", 13),
			numeric(FieldRecordCount, 9),
			sign("total_sign"),
			amount("total_value", 17, 2),
			filler(338),
		},
		Line: []FieldSpec{
			constant("record_type", "2", 1),
			constant("form", "720", 3),
			numeric(FieldFiscalYear, 4),
			alpha("nif", 9),
			alpha("filer_name", 40),
			constant("holder_role", "1", 1),
			alpha("asset_code", 1),
			alpha("asset_subcode", 1),
			constant("id_type", "1", 1),
			alpha("isin", 12),
			alpha("name", 40),
			alpha("entity", 41),
			alpha("country", 2),
			alpha("custody_country", 2),
			alpha("account", 20),
			date("acquired"),
			alpha("origin", 1),
			sign("value_sign"),
			amount("value", 15, 2),
			amount("quantity", 12, 2),
			amount("ownership_percent", 5, 2),
			filler(280),
		},
		Trailer: []FieldSpec{
			constant("record_type", "3", 1),
			constant("form", "720", 3),
			numeric(FieldFiscalYear, 4),
			alpha("nif", 9),
			numeric(FieldRecordCount, 9),
			alpha(FieldChecksum, 8),
			filler(466),
		},
	}
}

func foreignInvestment2023() *Schema {
	return &Schema{
		Form:         model.FormForeignInvestment,
		Version:      "2023",
		RecordLength: 250,
		Encoding:     "iso-8859-1",
		Checksum:     "crc32",
		Header: []FieldSpec{
			constant("record_type", "1", 1),
			constant("form", "D6", 3),
			numeric(FieldFiscalYear, 4),
			alpha("nif", 9),
			alpha("filer_name", 40),
			numeric("phone", 9),
			numeric(FieldDeclarationID, 13),
			numeric(FieldRecordCount, 9),
			filler(162),
		},
		Line: []FieldSpec{
			constant("record_type", "2", 1),
			constant("form", "D6", 3),
			numeric(FieldFiscalYear, 4),
			alpha("nif", 9),
			alpha("isin", 12),
			alpha("name", 40),
			alpha("country", 2),
			alpha("asset_code", 1),
			alpha("movement", 1),
			date("date"),
			amount("quantity", 14, 4),
			sign("amount_sign"),
			amount("amount", 15, 2),
			alpha("currency", 3),
			sign("value_sign"),
			amount("value", 15, 2),
			sign("year_end_sign"),
			amount("year_end_value", 15, 2),
			alpha("entity", 40),
			alpha("account", 20),
			filler(44),
		},
		Trailer: []FieldSpec{
			constant("record_type", "3", 1),
			constant("form", "D6", 3),
			numeric(FieldFiscalYear, 4),
			alpha("nif", 9),
			numeric(FieldRecordCount, 9),
			alpha(FieldChecksum, 8),
			filler(216),
		},
	}
}
