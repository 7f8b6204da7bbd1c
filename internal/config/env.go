package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by LoadEnv and ApplyEnv.
const (
	EnvConfig   = "DECLARA_CONFIG"
	EnvNIF      = "DECLARA_NIF"
	EnvName     = "DECLARA_NAME"
	EnvSurname  = "DECLARA_SURNAME"
	EnvPhone    = "DECLARA_PHONE"
	EnvLogLevel = "DECLARA_LOG_LEVEL"
)

// LoadEnv loads a .env file into the process environment. A missing file
// is not an error. Variables already set are not overwritten.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides the taxpayer identity and log level from the
// environment.
func ApplyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Taxpayer.NIF, EnvNIF)
	set(&cfg.Taxpayer.Name, EnvName)
	set(&cfg.Taxpayer.Surname, EnvSurname)
	set(&cfg.Taxpayer.Phone, EnvPhone)
	set(&cfg.Log.Level, EnvLogLevel)
}

// PathFromEnv returns the config path named by DECLARA_CONFIG, or def.
func PathFromEnv(def string) string {
	if v := strings.TrimSpace(os.Getenv(EnvConfig)); v != "" {
		return v
	}
	return def
}
