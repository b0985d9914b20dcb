// Package config loads dbal settings from a config file, the environment
// and .env files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/roach88/dbal/internal/querysql"
	"github.com/roach88/dbal/internal/store"
)

// AppFs is the filesystem checked for .env files.
var AppFs = afero.NewOsFs()

// Config holds the application configuration.
type Config struct {
	Driver      string
	DSN         string
	Dialect     string
	SchemaDir   string
	TablePrefix string
	ParseCache  int
	LogLevel    string
}

// Load reads configuration. Values come, lowest priority first, from
// defaults, the config file (configFile, or .dbal.yaml in the working
// directory or home directory) and DBAL_* environment variables, with
// .env and .env.local applied to the environment first.
func Load(configFile string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("DBAL")
	v.AutomaticEnv()

	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", ":memory:")
	v.SetDefault("schema_dir", "schema")
	v.SetDefault("table_prefix", "")
	v.SetDefault("parse_cache", 256)
	v.SetDefault("log_level", "warn")
	// Bound explicitly so AutomaticEnv sees keys with no default.
	_ = v.BindEnv("dialect")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(".dbal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Driver:      v.GetString("driver"),
		DSN:         v.GetString("dsn"),
		Dialect:     v.GetString("dialect"),
		SchemaDir:   v.GetString("schema_dir"),
		TablePrefix: v.GetString("table_prefix"),
		ParseCache:  v.GetInt("parse_cache"),
		LogLevel:    v.GetString("log_level"),
	}
	if cfg.Dialect == "" {
		cfg.Dialect = cfg.Driver
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv applies .env and then .env.local, which overrides it.
// Missing files are skipped; a file that exists but does not parse is an
// error.
func loadDotEnv() error {
	if _, err := AppFs.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("loading .env: %w", err)
		}
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return fmt.Errorf("loading .env.local: %w", err)
		}
	}
	return nil
}

// Validate checks that the driver and dialect are known and the log level
// parses.
func (c *Config) Validate() error {
	if !store.KnownDriver(c.Driver) {
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	if _, err := querysql.DialectFor(c.Dialect); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return l, nil
}
