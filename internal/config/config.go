// Package config defines the run configuration and loads it through viper.
package config

import (
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sessionq/internal/stats"
)

type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

const (
	ErrInvalidConcurrency = ConfigError("config: concurrency must be at least 1")
	ErrInvalidAttempts    = ConfigError("config: total attempts must not be negative")
	ErrInvalidDelay       = ConfigError("config: inter-batch delay range must satisfy 0 <= min <= max")
	ErrMissingTarget      = ConfigError("config: a target url or at least one step is required")
	ErrInvalidTimeout     = ConfigError("config: timeout must be positive")
	ErrInvalidTier        = ConfigError("config: pricing tiers need a name and a non-negative price")
	ErrDuplicateTier      = ConfigError("config: pricing tier names must be unique")
	ErrInvalidProxy       = ConfigError("config: proxy must be an absolute http, https or socks5 url")
)

// DelayRange is an inclusive range in milliseconds.
type DelayRange struct {
	MinMs int `mapstructure:"min_ms" json:"min_ms" yaml:"min_ms"`
	MaxMs int `mapstructure:"max_ms" json:"max_ms" yaml:"max_ms"`
}

func (d DelayRange) Min() time.Duration { return time.Duration(d.MinMs) * time.Millisecond }
func (d DelayRange) Max() time.Duration { return time.Duration(d.MaxMs) * time.Millisecond }

// Draw returns a duration uniformly distributed over the range.
func (d DelayRange) Draw() time.Duration {
	if d.MaxMs <= d.MinMs {
		return d.Min()
	}
	return time.Duration(d.MinMs+rand.Intn(d.MaxMs-d.MinMs+1)) * time.Millisecond
}

// Step is one request of the journey. URL and Body are templates.
type Step struct {
	Name    string            `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty"`
	URL     string            `mapstructure:"url" json:"url" yaml:"url"`
	Method  string            `mapstructure:"method" json:"method,omitempty" yaml:"method,omitempty"`
	Body    string            `mapstructure:"body" json:"body,omitempty" yaml:"body,omitempty"`
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Config is constructed once before a run and treated as read-only after.
type Config struct {
	// Scheduling
	TotalAttempts   int        `mapstructure:"total_attempts" json:"total_attempts" yaml:"total_attempts"`
	Concurrency     int        `mapstructure:"concurrency" json:"concurrency" yaml:"concurrency"`
	InterBatchDelay DelayRange `mapstructure:"inter_batch_delay" json:"inter_batch_delay" yaml:"inter_batch_delay"`

	// Journey, passed through to the session executor
	TargetURL        string            `mapstructure:"target_url" json:"target_url" yaml:"target_url"`
	Steps            []Step            `mapstructure:"steps" json:"steps,omitempty" yaml:"steps,omitempty"`
	TimeoutSec       int               `mapstructure:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
	FetchAssets      bool              `mapstructure:"fetch_assets" json:"fetch_assets" yaml:"fetch_assets"`
	MaxAssetsPerPage int               `mapstructure:"max_assets_per_page" json:"max_assets_per_page" yaml:"max_assets_per_page"`
	AssetRate        float64           `mapstructure:"asset_rate" json:"asset_rate" yaml:"asset_rate"`
	SuccessMarker    string            `mapstructure:"success_marker" json:"success_marker,omitempty" yaml:"success_marker,omitempty"`
	UserAgent        string            `mapstructure:"user_agent" json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	Headers          map[string]string `mapstructure:"headers" json:"headers,omitempty" yaml:"headers,omitempty"`
	// Proxy is an optional single egress proxy for all session traffic.
	Proxy string `mapstructure:"proxy" json:"proxy,omitempty" yaml:"proxy,omitempty"`

	// Reporting
	Pricing      []stats.Tier `mapstructure:"pricing" json:"pricing" yaml:"pricing"`
	Currency     string       `mapstructure:"currency" json:"currency" yaml:"currency"`
	ExchangeRate float64      `mapstructure:"exchange_rate" json:"exchange_rate" yaml:"exchange_rate"`
	OutPrefix    string       `mapstructure:"out" json:"out,omitempty" yaml:"out,omitempty"`
	HistoryPath  string       `mapstructure:"history_path" json:"-" yaml:"-"`

	// Logging
	Debug    bool   `mapstructure:"debug" json:"debug" yaml:"debug"`
	LogLevel string `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
}

// Default returns a Config with sensible defaults
func Default() Config {
	return Config{
		TotalAttempts:    100,
		Concurrency:      3,
		InterBatchDelay:  DelayRange{MinMs: 2000, MaxMs: 7000},
		TargetURL:        "http://localhost:8080/",
		TimeoutSec:       30,
		FetchAssets:      true,
		MaxAssetsPerPage: 50,
		AssetRate:        20,
		Pricing:          stats.DefaultTiers(),
		Currency:         "BRL",
		ExchangeRate:     5.5,
		LogLevel:         "info",
	}
}

// Timeout returns the per-request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Journey returns the steps to perform; a bare TargetURL is a one-step journey.
func (c Config) Journey() []Step {
	if len(c.Steps) > 0 {
		return c.Steps
	}
	if c.TargetURL == "" {
		return nil
	}
	return []Step{{Name: "landing", URL: c.TargetURL}}
}

// ProxyURL parses Proxy; it returns nil when no proxy is configured.
func (c Config) ProxyURL() (*url.URL, error) {
	if c.Proxy == "" {
		return nil, nil
	}
	u, err := url.Parse(c.Proxy)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, ErrInvalidProxy
	}
	if u.Host == "" {
		return nil, ErrInvalidProxy
	}
	return u, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Concurrency < 1:
		return ErrInvalidConcurrency
	case c.TotalAttempts < 0:
		return ErrInvalidAttempts
	case c.InterBatchDelay.MinMs < 0 || c.InterBatchDelay.MinMs > c.InterBatchDelay.MaxMs:
		return ErrInvalidDelay
	case c.TimeoutSec <= 0:
		return ErrInvalidTimeout
	}
	if c.Proxy != "" {
		if _, err := c.ProxyURL(); err != nil {
			return ErrInvalidProxy
		}
	}
	journey := c.Journey()
	if len(journey) == 0 {
		return ErrMissingTarget
	}
	for _, s := range journey {
		if strings.TrimSpace(s.URL) == "" {
			return ErrMissingTarget
		}
	}
	seen := make(map[string]bool, len(c.Pricing))
	for _, t := range c.Pricing {
		if t.Name == "" || t.PricePerGB < 0 {
			return ErrInvalidTier
		}
		if seen[t.Name] {
			return ErrDuplicateTier
		}
		seen[t.Name] = true
	}
	return nil
}

// SetDefaults registers Default() values on v so that file, env and flag
// sources layer on top of them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("total_attempts", d.TotalAttempts)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("inter_batch_delay.min_ms", d.InterBatchDelay.MinMs)
	v.SetDefault("inter_batch_delay.max_ms", d.InterBatchDelay.MaxMs)
	v.SetDefault("target_url", d.TargetURL)
	v.SetDefault("timeout_sec", d.TimeoutSec)
	v.SetDefault("fetch_assets", d.FetchAssets)
	v.SetDefault("max_assets_per_page", d.MaxAssetsPerPage)
	v.SetDefault("asset_rate", d.AssetRate)
	v.SetDefault("currency", d.Currency)
	v.SetDefault("exchange_rate", d.ExchangeRate)
	v.SetDefault("log_level", d.LogLevel)
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	// slices decode element-wise into existing values, so start them empty
	cfg.Steps = nil
	cfg.Pricing = nil
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if len(cfg.Pricing) == 0 {
		cfg.Pricing = stats.DefaultTiers()
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
