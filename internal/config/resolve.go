package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/declara-dev/declara/internal/brokers"
	"github.com/declara-dev/declara/internal/consolidate"
	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/id"
	"github.com/declara-dev/declara/internal/layout"
	"github.com/declara-dev/declara/internal/locale"
	"github.com/declara-dev/declara/internal/model"
	"github.com/declara-dev/declara/internal/rates"
	"github.com/declara-dev/declara/internal/taxrules"
)

// FormParams are the resolved parameters of one form.
type FormParams struct {
	Rules     taxrules.Params
	Portfolio consolidate.Params
}

func formKey(form model.FormID, field string) string {
	return "forms." + string(form) + "." + field
}

func (c *Config) form(form model.FormID) (*FormConfig, error) {
	fc, ok := c.Form(form)
	if !ok {
		return nil, failure.Config("forms."+string(form), "unknown form")
	}
	return fc, nil
}

// Params resolves the fiscal parameters of form. Errors name the
// offending config key.
func (c *Config) Params(form model.FormID) (FormParams, error) {
	fc, err := c.form(form)
	if err != nil {
		return FormParams{}, err
	}
	if c.FiscalYear < 1900 {
		return FormParams{}, failure.Config("fiscal_year", "not set")
	}
	if len(c.Taxpayer.Residence) != 2 {
		return FormParams{}, failure.Config("taxpayer.residence", "%q is not an ISO 3166 alpha-2 code", c.Taxpayer.Residence)
	}

	if strings.TrimSpace(fc.Threshold) == "" {
		return FormParams{}, failure.Config(formKey(form, "threshold"), "not set")
	}
	threshold, err := decimal.NewFromString(strings.TrimSpace(fc.Threshold))
	if err != nil {
		return FormParams{}, failure.Config(formKey(form, "threshold"), "invalid amount %q", fc.Threshold)
	}
	currency, err := locale.ParseCurrency(fc.Currency)
	if err != nil {
		return FormParams{}, failure.Config(formKey(form, "currency"), "%v", err)
	}
	cutoff, err := c.cutoff(form, fc.Cutoff)
	if err != nil {
		return FormParams{}, err
	}
	if fc.Decimals < 0 || fc.QuantityDecimals < 0 {
		return FormParams{}, failure.Config(formKey(form, "decimals"), "must not be negative")
	}
	brackets, err := parseBrackets(form, fc.Brackets)
	if err != nil {
		return FormParams{}, err
	}

	return FormParams{
		Rules: taxrules.Params{
			Form:             form,
			Year:             c.FiscalYear,
			Residence:        strings.ToUpper(c.Taxpayer.Residence),
			Threshold:        threshold,
			Decimals:         fc.Decimals,
			QuantityDecimals: fc.QuantityDecimals,
			Countries:        fc.Countries,
			AssetCodes:       fc.AssetCodes,
			AssetSubcodes:    fc.AssetSubcodes,
			Movements:        fc.Movements,
			Brackets:         brackets,
		},
		Portfolio: consolidate.Params{
			Year:     c.FiscalYear,
			Cutoff:   cutoff,
			Currency: currency,
		},
	}, nil
}

func (c *Config) cutoff(form model.FormID, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "12-31"
	}
	md, err := time.Parse("01-02", raw)
	if err != nil {
		return time.Time{}, failure.Config(formKey(form, "cutoff"), "want MM-DD, got %q", raw)
	}
	t := time.Date(c.FiscalYear, md.Month(), md.Day(), 0, 0, 0, 0, time.UTC)
	if t.Month() != md.Month() {
		return time.Time{}, failure.Config(formKey(form, "cutoff"), "%s does not exist in %d", raw, c.FiscalYear)
	}
	return t, nil
}

func parseBrackets(form model.FormID, in []BracketConfig) (taxrules.Brackets, error) {
	out := make(taxrules.Brackets, 0, len(in))
	for i, b := range in {
		key := fmt.Sprintf("%s[%d]", formKey(form, "brackets"), i)
		if b.Code == "" {
			return nil, failure.Config(key+".code", "not set")
		}
		br := taxrules.Bracket{Code: b.Code}
		if strings.TrimSpace(b.Upto) != "" {
			d, err := decimal.NewFromString(strings.TrimSpace(b.Upto))
			if err != nil {
				return nil, failure.Config(key+".upto", "invalid amount %q", b.Upto)
			}
			br.Upto = decimal.NewNullDecimal(d)
		}
		out = append(out, br)
	}
	if !out.Sorted() {
		return nil, failure.Config(formKey(form, "brackets"), "bands must ascend with the open-ended one last")
	}
	return out, nil
}

// Schema returns the layout of form: the configured file if any, else the
// configured or latest built-in version.
func (c *Config) Schema(form model.FormID) (*layout.Schema, error) {
	fc, err := c.form(form)
	if err != nil {
		return nil, err
	}
	if fc.Schema != "" {
		s, err := layout.LoadSchema(fc.Schema)
		if err != nil {
			return nil, err
		}
		if s.Form != form {
			return nil, failure.Config(formKey(form, "schema"), "%s describes form %s", fc.Schema, s.Form)
		}
		return s, nil
	}
	version := fc.Version
	if version == "" {
		version = layout.Latest(form)
	}
	return layout.Builtin(form, version)
}

// DeclarationID returns the identifier of this run's declaration of form.
func (c *Config) DeclarationID(form model.FormID) (string, error) {
	fc, err := c.form(form)
	if err != nil {
		return "", err
	}
	seq := fc.DeclarationSeq
	if seq == 0 {
		seq = 1
	}
	s, err := id.FormatDeclarationID(fc.IDPrefix, seq)
	if err != nil {
		return "", failure.Config(formKey(form, "id_prefix"), "%v", err)
	}
	return s, nil
}

// FilerName is the name written on the forms: surname first.
func (c *Config) FilerName() string {
	return strings.TrimSpace(c.Taxpayer.Surname + " " + c.Taxpayer.Name)
}

// BrokerService returns the broker table with the configured overrides.
func (c *Config) BrokerService() (*brokers.Service, error) {
	svc := brokers.NewService(brokers.Default())
	for _, b := range c.Brokers {
		if err := svc.Override(b.Format, b.Name, b.Country); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// RateSource loads the conversion rates. Without a rate file only
// same-currency amounts can be converted. The file's base currency must
// match the currency of every enabled form.
func (c *Config) RateSource() (rates.Source, error) {
	var tbl *rates.Table
	if c.Rates.File == "" {
		tbl = rates.NewTable(c.Forms.ForeignAssets.Currency)
	} else {
		var err error
		if tbl, err = rates.LoadYAML(c.Rates.File); err != nil {
			return nil, err
		}
		for _, form := range c.EnabledForms() {
			fc, _ := c.Form(form)
			if !strings.EqualFold(fc.Currency, tbl.Base()) {
				return nil, failure.Config("rates.base", "rate file is based on %s, %s declares in %s", tbl.Base(), form, fc.Currency)
			}
		}
	}
	if c.Rates.LookbackDays > 0 {
		tbl.Lookback = c.Rates.LookbackDays
	}
	return rates.NewCached(tbl, 0), nil
}
