// Package taxrules applies the inclusion and categorization rules of each
// form to a consolidated portfolio, producing declaration lines.
package taxrules

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/model"
)

// Params are the fiscal parameters of one form for one run.
type Params struct {
	Form      model.FormID
	Year      int
	Residence string // taxpayer residence country, ISO 3166-1 alpha-2
	Threshold decimal.Decimal
	// Decimals of monetary values; QuantityDecimals of share counts.
	Decimals         int32
	QuantityDecimals int32

	// Vocabularies map canonical values to the form's codes. Missing
	// entries fall back to the defaults below, countries to themselves.
	Countries     map[string]string
	AssetCodes    map[string]string // keyed by model.AssetClass
	AssetSubcodes map[string]string
	Movements     map[string]string // keyed by model.TxType
	Brackets      Brackets
}

var (
	defaultAssetCodes = map[string]string{
		string(model.AssetEquity):         "V",
		string(model.AssetFund):           "I",
		string(model.AssetDerivative):     "V",
		string(model.AssetCashEquivalent): "V",
	}
	defaultAssetSubcodes = map[string]string{
		string(model.AssetEquity):         "1",
		string(model.AssetCashEquivalent): "2",
		string(model.AssetDerivative):     "3",
	}
	defaultMovements = map[string]string{
		string(model.TxBuy):      "C",
		string(model.TxSell):     "V",
		string(model.TxDividend): "D",
		string(model.TxFee):      "G",
		string(model.TxTransfer): "T",
	}
)

func (p Params) check() error {
	if p.Year == 0 {
		return failure.Config("fiscal_year", "not set")
	}
	if len(p.Residence) != 2 {
		return failure.Config("taxpayer.residence", "%q is not an ISO 3166 alpha-2 code", p.Residence)
	}
	if p.Threshold.IsNegative() {
		return failure.Config("forms."+string(p.Form)+".threshold", "must not be negative")
	}
	return nil
}

func lookup(vocab, defaults map[string]string, key string) string {
	if v, ok := vocab[key]; ok {
		return v
	}
	return defaults[key]
}

func (p Params) country(cc string) string {
	if v, ok := p.Countries[cc]; ok {
		return v
	}
	return cc
}

func (p Params) assetCode(c model.AssetClass) string {
	return lookup(p.AssetCodes, defaultAssetCodes, string(c))
}

func (p Params) assetSubcode(c model.AssetClass) string {
	return lookup(p.AssetSubcodes, defaultAssetSubcodes, string(c))
}

func (p Params) movement(t model.TxType) string {
	return lookup(p.Movements, defaultMovements, string(t))
}

func (p Params) foreign(acct model.CustodyAccount) bool {
	return !strings.EqualFold(acct.Country, p.Residence)
}

// RoundHalfUp rounds d to places decimals, halves toward positive
// infinity: 2.345 -> 2.35, -2.345 -> -2.34.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Shift(places).Add(decimal.New(5, -1)).Floor().Shift(-places)
}

// Bracket is one valuation band of a form. A band without an upper bound
// is open-ended.
type Bracket struct {
	Upto decimal.NullDecimal
	Code string
}

// Brackets are bands ordered by ascending upper bound.
type Brackets []Bracket

// Code returns the code of the first band whose upper bound is >= v.
func (bs Brackets) Code(v decimal.Decimal) (string, bool) {
	for _, b := range bs {
		if !b.Upto.Valid || v.LessThanOrEqual(b.Upto.Decimal) {
			return b.Code, true
		}
	}
	return "", false
}

// Sorted reports whether the bands are in ascending order with at most one
// open-ended band, placed last.
func (bs Brackets) Sorted() bool {
	for i, b := range bs {
		if !b.Upto.Valid {
			return i == len(bs)-1
		}
		if i > 0 && !b.Upto.Decimal.GreaterThan(bs[i-1].Upto.Decimal) {
			return false
		}
	}
	return true
}

// Total sums the numeric field name over lines.
func Total(lines []model.DeclarationLine, name string) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if v, ok := l.Fields.Get(name); ok && v.Kind == model.KindNumber {
			sum = sum.Add(v.Number)
		}
	}
	return sum
}

// sortLines orders lines by security id, account, date and reference.
func sortLines(lines []model.DeclarationLine) {
	text := func(l model.DeclarationLine, name string) string {
		v, _ := l.Fields.Get(name)
		return v.String()
	}
	sort.SliceStable(lines, func(i, j int) bool {
		si, ai := lines[i].SortKey()
		sj, aj := lines[j].SortKey()
		if si != sj {
			return si < sj
		}
		if ai != aj {
			return ai.Less(aj)
		}
		if di, dj := text(lines[i], FieldDate), text(lines[j], FieldDate); di != dj {
			return di < dj
		}
		return text(lines[i], FieldReference) < text(lines[j], FieldReference)
	})
}
