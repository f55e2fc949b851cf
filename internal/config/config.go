package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "ledgerwell.yaml"

// Config represents the top-level ledgerwell.yaml configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Savings SavingsConfig `yaml:"savings"`
	History HistoryConfig `yaml:"history"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig selects and configures the storage driver.
type StorageConfig struct {
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path,omitempty"` // file driver snapshot
	DSN             string        `yaml:"dsn,omitempty"`  // postgres connection string
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
}

// SavingsConfig holds savings account defaults.
type SavingsConfig struct {
	DefaultRate string `yaml:"default_rate"` // annual percent, e.g. "2.5"
}

// HistoryConfig controls transaction history listings.
type HistoryConfig struct {
	RecentLimit int `yaml:"recent_limit"`
}

// ExportConfig controls CSV export.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // text|json
	IncludeCaller bool   `yaml:"include_caller"`
}

// Load reads a ledgerwell.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
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

// Default returns a Config with sensible defaults for a new installation.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:          DriverFile,
			Path:            "ledgerwell.json",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Savings: SavingsConfig{DefaultRate: "2.5"},
		History: HistoryConfig{RecentLimit: 10},
		Export:  ExportConfig{Dir: "."},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadEnv loads KEY=value pairs from .env-style files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from LEDGERWELL_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LEDGERWELL_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("LEDGERWELL_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("LEDGERWELL_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("LEDGERWELL_SAVINGS_DEFAULT_RATE"); v != "" {
		c.Savings.DefaultRate = v
	}
	if v := os.Getenv("LEDGERWELL_HISTORY_RECENT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGERWELL_HISTORY_RECENT_LIMIT value %q: %w", v, err)
		}
		c.History.RecentLimit = n
	}
	if v := os.Getenv("LEDGERWELL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LEDGERWELL_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case DriverMemory:
	case DriverFile:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the file driver")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := c.Savings.Rate(); err != nil {
		return err
	}
	if c.History.RecentLimit <= 0 {
		return fmt.Errorf("history.recent_limit must be positive, got %d", c.History.RecentLimit)
	}
	return nil
}

// Rate parses the default savings rate.
func (s SavingsConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(s.DefaultRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid savings.default_rate %q: %w", s.DefaultRate, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("savings.default_rate must not be negative, got %s", rate)
	}
	return rate, nil
}
