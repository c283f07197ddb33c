package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the complete papertrader configuration
type Config struct {
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`
	Backup BackupConfig `json:"backup" yaml:"backup"`
	Market MarketConfig `json:"market" yaml:"market"`
	Log    LogConfig    `json:"log" yaml:"log"`
}

// LedgerConfig locates the SQLite ledger and seeds a new one.
type LedgerConfig struct {
	DBPath      string      `json:"db_path" yaml:"db_path"`
	InitialCash json.Number `json:"initial_cash" yaml:"initial_cash"`
	Currency    string      `json:"currency" yaml:"currency"`
}

// Cash parses InitialCash.
func (l LedgerConfig) Cash() (decimal.Decimal, error) {
	return decimal.NewFromString(l.InitialCash.String())
}

// BackupConfig selects where recovery snapshots are kept
type BackupConfig struct {
	Type  string      `json:"type" yaml:"type"` // "none", "file" or "redis"
	Path  string      `json:"path,omitempty" yaml:"path,omitempty"`
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db" yaml:"db"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`
	TTL      string `json:"ttl,omitempty" yaml:"ttl,omitempty"` // e.g. "24h"; empty keeps forever
}

// ParseTTL converts the TTL string to time.Duration
func (r RedisConfig) ParseTTL() (time.Duration, error) {
	return parseDuration(r.TTL)
}

// MarketConfig selects the quote provider
type MarketConfig struct {
	Provider         string                 `json:"provider" yaml:"provider"` // "static" or "yahoo"
	BaseURL          string                 `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Suffix           string                 `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Timeout          string                 `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	FailureThreshold int                    `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	ResetTimeout     string                 `json:"reset_timeout,omitempty" yaml:"reset_timeout,omitempty"`
	Prices           map[string]json.Number `json:"prices,omitempty" yaml:"prices,omitempty"`
}

func (m MarketConfig) ParseTimeout() (time.Duration, error) {
	return parseDuration(m.Timeout)
}

func (m MarketConfig) ParseResetTimeout() (time.Duration, error) {
	return parseDuration(m.ResetTimeout)
}

// StaticPrices parses the configured prices for the static provider.
func (m MarketConfig) StaticPrices() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(m.Prices))
	for sym, p := range m.Prices {
		d, err := decimal.NewFromString(p.String())
		if err != nil {
			return nil, fmt.Errorf("market.prices.%s: %w", sym, err)
		}
		out[sym] = d
	}
	return out, nil
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadFromFile loads configuration from a file (YAML or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Ledger.DBPath) == "" {
		return fmt.Errorf("ledger.db_path is required")
	}
	cash, err := c.Ledger.Cash()
	if err != nil {
		return fmt.Errorf("ledger.initial_cash must be a number")
	}
	if cash.IsNegative() {
		return fmt.Errorf("ledger.initial_cash must not be negative")
	}
	if c.Ledger.Currency == "" {
		return fmt.Errorf("ledger.currency is required")
	}

	switch c.Backup.Type {
	case "none":
	case "file":
		if c.Backup.Path == "" {
			return fmt.Errorf("backup.path required for file type")
		}
	case "redis":
		if c.Backup.Redis.Addr == "" {
			return fmt.Errorf("backup.redis.addr required for redis type")
		}
		if _, err := c.Backup.Redis.ParseTTL(); err != nil {
			return fmt.Errorf("backup.redis.ttl: %w", err)
		}
	default:
		return fmt.Errorf("backup.type must be 'none', 'file' or 'redis'")
	}

	switch c.Market.Provider {
	case "static":
		if _, err := c.Market.StaticPrices(); err != nil {
			return err
		}
	case "yahoo":
		if _, err := c.Market.ParseTimeout(); err != nil {
			return fmt.Errorf("market.timeout: %w", err)
		}
		if _, err := c.Market.ParseResetTimeout(); err != nil {
			return fmt.Errorf("market.reset_timeout: %w", err)
		}
		if c.Market.FailureThreshold < 0 {
			return fmt.Errorf("market.failure_threshold must not be negative")
		}
	default:
		return fmt.Errorf("market.provider must be 'static' or 'yahoo'")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			DBPath:      "portfolio.db",
			InitialCash: "500000",
			Currency:    "INR",
		},
		Backup: BackupConfig{
			Type: "file",
			Path: "backup/snapshot.json",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "papertrader:snapshot",
			},
		},
		Market: MarketConfig{
			Provider:         "yahoo",
			Suffix:           ".NS",
			Timeout:          "10s",
			FailureThreshold: 5,
			ResetTimeout:     "30s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
