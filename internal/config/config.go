// Package config holds the taxpayer and fiscal parameters of a run, read
// from declara.yaml with environment overrides for the filer identity.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/declara-dev/declara/internal/model"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "declara.yaml"

// Config represents the top-level declara.yaml configuration.
type Config struct {
	Taxpayer   Taxpayer       `yaml:"taxpayer"`
	FiscalYear int            `yaml:"fiscal_year"`
	Forms      FormsConfig    `yaml:"forms"`
	Brokers    []BrokerConfig `yaml:"brokers,omitempty"`
	Rates      RatesConfig    `yaml:"rates"`
	Log        LogConfig      `yaml:"log"`
}

// Taxpayer identifies the filer.
type Taxpayer struct {
	NIF       string `yaml:"nif"`
	Name      string `yaml:"name"`
	Surname   string `yaml:"surname"`
	Residence string `yaml:"residence"` // ISO 3166-1 alpha-2
	Phone     string `yaml:"phone,omitempty"`
}

// FormsConfig holds the parameters of each supported form.
type FormsConfig struct {
	ForeignAssets     FormConfig `yaml:"aeat720"`
	ForeignInvestment FormConfig `yaml:"d6"`
}

// FormConfig holds the fiscal parameters of one form.
type FormConfig struct {
	Enabled          bool              `yaml:"enabled"`
	Threshold        string            `yaml:"threshold"`
	Currency         string            `yaml:"currency"`
	Cutoff           string            `yaml:"cutoff"` // "MM-DD", defaults to "12-31"
	Decimals         int32             `yaml:"decimals"`
	QuantityDecimals int32             `yaml:"quantity_decimals"`
	Countries        map[string]string `yaml:"countries,omitempty"`
	AssetCodes       map[string]string `yaml:"asset_codes,omitempty"`
	AssetSubcodes    map[string]string `yaml:"asset_subcodes,omitempty"`
	Movements        map[string]string `yaml:"movements,omitempty"`
	Brackets         []BracketConfig   `yaml:"brackets,omitempty"`
	Schema           string            `yaml:"schema,omitempty"` // layout file replacing the built-in one
	Version          string            `yaml:"version,omitempty"`
	IDPrefix         string            `yaml:"id_prefix"`
	DeclarationSeq   int               `yaml:"declaration_seq"`
}

// BracketConfig is one valuation band. An empty Upto is open-ended.
type BracketConfig struct {
	Upto string `yaml:"upto,omitempty"`
	Code string `yaml:"code"`
}

// BrokerConfig overrides the reference data of a broker format.
type BrokerConfig struct {
	Format  string `yaml:"format"`
	Name    string `yaml:"name,omitempty"`
	Country string `yaml:"country,omitempty"`
}

// RatesConfig points at the conversion-rate file. LookbackDays, when set,
// overrides the file's own lookback_days; with neither, a rate must exist
// for the exact date.
type RatesConfig struct {
	File         string `yaml:"file,omitempty"`
	LookbackDays int    `yaml:"lookback_days,omitempty"`
}

// LogConfig controls CLI logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Form returns the parameters of form.
func (c *Config) Form(form model.FormID) (*FormConfig, bool) {
	switch form {
	case model.FormForeignAssets:
		return &c.Forms.ForeignAssets, true
	case model.FormForeignInvestment:
		return &c.Forms.ForeignInvestment, true
	}
	return nil, false
}

// EnabledForms lists the enabled forms in a fixed order.
func (c *Config) EnabledForms() []model.FormID {
	var out []model.FormID
	for _, f := range []model.FormID{model.FormForeignAssets, model.FormForeignInvestment} {
		if fc, _ := c.Form(f); fc.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// Load reads a declara.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config for a Spanish resident with both forms enabled.
func Default(year int) *Config {
	return &Config{
		Taxpayer:   Taxpayer{Residence: "ES"},
		FiscalYear: year,
		Forms: FormsConfig{
			ForeignAssets: FormConfig{
				Enabled:          true,
				Threshold:        "50000",
				Currency:         "EUR",
				Cutoff:           "12-31",
				Decimals:         2,
				QuantityDecimals: 2,
				IDPrefix:         "720",
				DeclarationSeq:   1,
			},
			ForeignInvestment: FormConfig{
				Enabled:          true,
				Threshold:        "0",
				Currency:         "EUR",
				Cutoff:           "12-31",
				Decimals:         2,
				QuantityDecimals: 4,
				IDPrefix:         "600",
				DeclarationSeq:   1,
			},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}
