package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/model"
)

func configKey(t *testing.T, err error) string {
	t.Helper()
	var ce *failure.ConfigError
	require.True(t, errors.As(err, &ce), "want *failure.ConfigError, got %v", err)
	return ce.Key
}

func TestRoundTrip(t *testing.T) {
	cfg := Default(2023)
	cfg.Taxpayer.NIF = "12345678Z"
	cfg.Taxpayer.Name = "Ana"
	cfg.Taxpayer.Surname = "García López"
	cfg.Brokers = []BrokerConfig{{Format: "ibkr", Country: "US"}}
	cfg.Forms.ForeignAssets.Brackets = []BracketConfig{{Upto: "100000", Code: "1"}, {Code: "2"}}

	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default(2023)

	assert.Equal(t, 2023, cfg.FiscalYear)
	assert.Equal(t, "ES", cfg.Taxpayer.Residence)
	assert.Equal(t, []model.FormID{model.FormForeignAssets, model.FormForeignInvestment}, cfg.EnabledForms())

	p, err := cfg.Params(model.FormForeignAssets)
	require.NoError(t, err)
	assert.True(t, p.Rules.Threshold.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "EUR", p.Portfolio.Currency)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), p.Portfolio.Cutoff)
	assert.Equal(t, int32(2), p.Rules.QuantityDecimals)

	p, err = cfg.Params(model.FormForeignInvestment)
	require.NoError(t, err)
	assert.True(t, p.Rules.Threshold.IsZero())
	assert.Equal(t, int32(4), p.Rules.QuantityDecimals)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default(2023)
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "fiscal_year: 2023")
	assert.Contains(t, contents, "aeat720:")
	assert.Contains(t, contents, `threshold: "50000"`)
	assert.Contains(t, contents, "cutoff: 12-31")
}

func TestParamsErrors(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		key  string
	}{
		{"no year", func(c *Config) { c.FiscalYear = 0 }, "fiscal_year"},
		{"residence", func(c *Config) { c.Taxpayer.Residence = "ESP" }, "taxpayer.residence"},
		{"no threshold", func(c *Config) { c.Forms.ForeignAssets.Threshold = "" }, "forms.aeat720.threshold"},
		{"bad threshold", func(c *Config) { c.Forms.ForeignAssets.Threshold = "50.000,00" }, "forms.aeat720.threshold"},
		{"currency", func(c *Config) { c.Forms.ForeignAssets.Currency = "EURO" }, "forms.aeat720.currency"},
		{"cutoff format", func(c *Config) { c.Forms.ForeignAssets.Cutoff = "31/12" }, "forms.aeat720.cutoff"},
		{"leap day", func(c *Config) { c.Forms.ForeignAssets.Cutoff = "02-29" }, "forms.aeat720.cutoff"},
		{"bracket amount", func(c *Config) {
			c.Forms.ForeignAssets.Brackets = []BracketConfig{{Upto: "lots", Code: "1"}}
		}, "forms.aeat720.brackets[0].upto"},
		{"bracket order", func(c *Config) {
			c.Forms.ForeignAssets.Brackets = []BracketConfig{{Code: "2"}, {Upto: "100", Code: "1"}}
		}, "forms.aeat720.brackets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(2023)
			tt.edit(cfg)
			_, err := cfg.Params(model.FormForeignAssets)
			assert.Equal(t, tt.key, configKey(t, err))
		})
	}
}

func TestParamsLeapCutoff(t *testing.T) {
	cfg := Default(2024)
	cfg.Forms.ForeignAssets.Cutoff = "02-29"
	p, err := cfg.Params(model.FormForeignAssets)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), p.Portfolio.Cutoff)
}

func TestParamsBrackets(t *testing.T) {
	cfg := Default(2023)
	cfg.Forms.ForeignAssets.Brackets = []BracketConfig{{Upto: "100000", Code: "1"}, {Code: "2"}}
	p, err := cfg.Params(model.FormForeignAssets)
	require.NoError(t, err)

	code, ok := p.Rules.Brackets.Code(decimal.NewFromInt(100000))
	assert.True(t, ok)
	assert.Equal(t, "1", code)
	code, _ = p.Rules.Brackets.Code(decimal.NewFromInt(100001))
	assert.Equal(t, "2", code)
}

func TestSchema(t *testing.T) {
	cfg := Default(2023)
	s, err := cfg.Schema(model.FormForeignAssets)
	require.NoError(t, err)
	assert.Equal(t, 500, s.RecordLength)

	cfg.Forms.ForeignAssets.Version = "1999"
	_, err = cfg.Schema(model.FormForeignAssets)
	assert.Equal(t, "forms.aeat720.version", configKey(t, err))

	// A d6 layout file configured for the 720 form.
	d6, err := cfg.Schema(model.FormForeignInvestment)
	require.NoError(t, err)
	data, err := d6.Marshal()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "d6.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg.Forms.ForeignInvestment.Schema = path
	s, err = cfg.Schema(model.FormForeignInvestment)
	require.NoError(t, err)
	assert.Equal(t, 250, s.RecordLength)

	cfg.Forms.ForeignAssets.Schema = path
	_, err = cfg.Schema(model.FormForeignAssets)
	assert.Equal(t, "forms.aeat720.schema", configKey(t, err))
}

func TestDeclarationID(t *testing.T) {
	cfg := Default(2023)
	got, err := cfg.DeclarationID(model.FormForeignAssets)
	require.NoError(t, err)
	assert.Equal(t, "7200000000001", got)

	cfg.Forms.ForeignInvestment.DeclarationSeq = 12
	got, err = cfg.DeclarationID(model.FormForeignInvestment)
	require.NoError(t, err)
	assert.Equal(t, "6000000000012", got)

	cfg.Forms.ForeignAssets.IDPrefix = "D6"
	_, err = cfg.DeclarationID(model.FormForeignAssets)
	assert.Equal(t, "forms.aeat720.id_prefix", configKey(t, err))
}

func TestBrokerService(t *testing.T) {
	cfg := Default(2023)
	cfg.Brokers = []BrokerConfig{{Format: "IBKR", Name: "IBKR Ireland"}}
	svc, err := cfg.BrokerService()
	require.NoError(t, err)
	b, ok := svc.Get("ibkr")
	require.True(t, ok)
	assert.Equal(t, "IBKR Ireland", b.Name)
	assert.Equal(t, "IE", b.Country)

	cfg.Brokers = []BrokerConfig{{Format: "etoro"}}
	_, err = cfg.BrokerService()
	assert.Equal(t, "brokers.etoro", configKey(t, err))
}

func TestRateSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base: EUR\nrates:\n  USD:\n    \"2023-12-29\": \"0.9050\"\n"), 0o644))

	cfg := Default(2023)
	cfg.Rates.File = path
	src, err := cfg.RateSource()
	require.NoError(t, err)

	// No lookback unless asked for: a Sunday without its own rate fails.
	_, err = src.Rate("USD", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "USD@2023-12-31", configKey(t, err))

	cfg.Rates.LookbackDays = 2
	src, err = cfg.RateSource()
	require.NoError(t, err)
	r, err := src.Rate("USD", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "0.905", r.String())

	cfg.Forms.ForeignInvestment.Currency = "USD"
	_, err = cfg.RateSource()
	assert.Equal(t, "rates.base", configKey(t, err))

	cfg.Forms.ForeignInvestment.Enabled = false
	_, err = cfg.RateSource()
	assert.NoError(t, err)
}

func TestRateSourceWithoutFile(t *testing.T) {
	src, err := Default(2023).RateSource()
	require.NoError(t, err)
	r, err := src.Rate("EUR", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.NewFromInt(1)))

	_, err = src.Rate("USD", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "USD@2023-12-31", configKey(t, err))
}

func TestFilerName(t *testing.T) {
	cfg := Default(2023)
	cfg.Taxpayer.Name = "Ana"
	cfg.Taxpayer.Surname = "García López"
	assert.Equal(t, "García López Ana", cfg.FilerName())
}

func TestEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("DECLARA_NIF=99999999R\nDECLARA_NAME=Luis\n"), 0o644))

	t.Setenv(EnvNIF, "")
	t.Setenv(EnvName, "Pedro")
	t.Setenv(EnvSurname, "")
	t.Setenv(EnvPhone, "")
	t.Setenv(EnvLogLevel, "")
	os.Unsetenv(EnvNIF)
	require.NoError(t, LoadEnv(env))
	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env")))

	cfg := Default(2023)
	cfg.Taxpayer.Surname = "Ruiz"
	ApplyEnv(cfg)
	assert.Equal(t, "99999999R", cfg.Taxpayer.NIF)
	assert.Equal(t, "Pedro", cfg.Taxpayer.Name)
	assert.Equal(t, "Ruiz", cfg.Taxpayer.Surname)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfig, "")
	assert.Equal(t, DefaultFile, PathFromEnv(DefaultFile))
	t.Setenv(EnvConfig, "/etc/declara.yaml")
	assert.Equal(t, "/etc/declara.yaml", PathFromEnv(DefaultFile))
}
