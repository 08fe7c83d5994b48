// Package config loads bot configuration from a YAML file with
// environment overrides for credentials. Durations are expressed in
// seconds and money values as decimal strings, because YAML has no native
// representation for either.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
	"github.com/veiloq/lending-bot/pkg/lending"
)

// Environment variables that override the YAML credentials, so secrets can
// stay out of the config file.
const (
	EnvAPIKey    = "LENDINGBOT_API_KEY"
	EnvAPISecret = "LENDINGBOT_API_SECRET"
)

// ExchangeConfig selects and authenticates the exchange adapter.
type ExchangeConfig struct {
	Name      string `yaml:"name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`

	// BaseURL and PublicURL override the adapter defaults. Normally empty.
	BaseURL   string `yaml:"base_url"`
	PublicURL string `yaml:"public_url"`
}

// RateLimitConfig is the hard request budget for the exchange transport.
type RateLimitConfig struct {
	Requests  int `yaml:"requests"`
	WindowSec int `yaml:"window_sec"`
}

// BotConfig tunes the control loop and the lending policy.
type BotConfig struct {
	CycleIntervalSec  int             `yaml:"cycle_interval_sec"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	RateLimitPauseSec int             `yaml:"rate_limit_pause_sec"`

	Currencies         []string `yaml:"currencies"`
	TransferCurrencies []string `yaml:"transfer_currencies"`

	// MinRate, MaxRateSpread and MinLoanSize are decimal strings,
	// e.g. "0.00005".
	MinRate       string `yaml:"min_rate"`
	MaxRateSpread string `yaml:"max_rate_spread"`
	MinLoanSize   string `yaml:"min_loan_size"`

	DurationDays int  `yaml:"duration_days"`
	AutoRenew    bool `yaml:"auto_renew"`

	StatusFile string `yaml:"status_file"`
	DryRun     bool   `yaml:"dry_run"`
	Label      string `yaml:"label"`
}

// LogConfig tunes log output.
type LogConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
}

// Config is the full configuration document.
type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies environment overrides and
// defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.Exchange.APIKey = key
	}
	if secret := os.Getenv(EnvAPISecret); secret != "" {
		cfg.Exchange.APISecret = secret
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bot.CycleIntervalSec <= 0 {
		c.Bot.CycleIntervalSec = 60
	}
	if c.Bot.RateLimit.Requests <= 0 {
		c.Bot.RateLimit.Requests = 6
	}
	if c.Bot.RateLimit.WindowSec <= 0 {
		c.Bot.RateLimit.WindowSec = 1
	}
	if c.Bot.RateLimitPauseSec <= 0 {
		c.Bot.RateLimitPauseSec = 130
	}
	if c.Bot.MinRate == "" {
		c.Bot.MinRate = "0.00005"
	}
	if c.Bot.MaxRateSpread == "" {
		c.Bot.MaxRateSpread = "0.1"
	}
	if c.Bot.MinLoanSize == "" {
		c.Bot.MinLoanSize = "0.005"
	}
	if c.Bot.DurationDays <= 0 {
		c.Bot.DurationDays = 2
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Exchange.Name == "" {
		return fmt.Errorf("config: exchange.name is required")
	}
	if len(c.Bot.Currencies) == 0 {
		return fmt.Errorf("config: bot.currencies must name at least one currency")
	}
	for _, field := range []struct{ name, value string }{
		{"bot.min_rate", c.Bot.MinRate},
		{"bot.max_rate_spread", c.Bot.MaxRateSpread},
		{"bot.min_loan_size", c.Bot.MinLoanSize},
	} {
		if _, err := decimal.NewFromString(field.value); err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
	}
	return nil
}

// CycleInterval returns the pause between lending cycles.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Bot.CycleIntervalSec) * time.Second
}

// RateLimitPause returns the pause applied after a rate-limit ban.
func (c *Config) RateLimitPause() time.Duration {
	return time.Duration(c.Bot.RateLimitPauseSec) * time.Second
}

// ExchangeOptions builds adapter options from the configuration.
func (c *Config) ExchangeOptions() *interfaces.Options {
	opts := interfaces.NewOptions()
	opts.APIKey = c.Exchange.APIKey
	opts.APISecret = c.Exchange.APISecret
	opts.BaseURL = c.Exchange.BaseURL
	opts.PublicURL = c.Exchange.PublicURL
	opts.RateLimitRequests = c.Bot.RateLimit.Requests
	opts.RateLimitWindow = time.Duration(c.Bot.RateLimit.WindowSec) * time.Second
	return opts
}

// LendingConfig builds the lending policy configuration. Decimal fields
// are guaranteed parseable after validation.
func (c *Config) LendingConfig() lending.Config {
	return lending.Config{
		Currencies:         c.Bot.Currencies,
		TransferCurrencies: c.Bot.TransferCurrencies,
		MinDailyRate:       decimal.RequireFromString(c.Bot.MinRate),
		MaxRateSpread:      decimal.RequireFromString(c.Bot.MaxRateSpread),
		MinLoanSize:        decimal.RequireFromString(c.Bot.MinLoanSize),
		Duration:           c.Bot.DurationDays,
		AutoRenew:          c.Bot.AutoRenew,
	}
}
