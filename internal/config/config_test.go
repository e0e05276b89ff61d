package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionq/internal/stats"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.InterBatchDelay.Min())
	assert.Equal(t, 7*time.Second, cfg.InterBatchDelay.Max())
	assert.Len(t, cfg.Pricing, 3)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative attempts", func(c *Config) { c.TotalAttempts = -1 }, ErrInvalidAttempts},
		{"zero attempts allowed", func(c *Config) { c.TotalAttempts = 0 }, nil},
		{"inverted delay", func(c *Config) { c.InterBatchDelay = DelayRange{MinMs: 10, MaxMs: 5} }, ErrInvalidDelay},
		{"negative delay", func(c *Config) { c.InterBatchDelay = DelayRange{MinMs: -1, MaxMs: 5} }, ErrInvalidDelay},
		{"no timeout", func(c *Config) { c.TimeoutSec = 0 }, ErrInvalidTimeout},
		{"no target", func(c *Config) { c.TargetURL = "" }, ErrMissingTarget},
		{"blank step", func(c *Config) { c.Steps = []Step{{URL: " "}} }, ErrMissingTarget},
		{"bad tier", func(c *Config) { c.Pricing[0].PricePerGB = -2 }, ErrInvalidTier},
		{"proxy without host", func(c *Config) { c.Proxy = "http://" }, ErrInvalidProxy},
		{"proxy bad scheme", func(c *Config) { c.Proxy = "ftp://proxy.example:21" }, ErrInvalidProxy},
		{"duplicate tier", func(c *Config) {
			c.Pricing = []stats.Tier{{Name: "proxy", PricePerGB: 2.5}, {Name: "proxy", PricePerGB: 12.5}}
		}, ErrDuplicateTier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProxyURL(t *testing.T) {
	cfg := Default()
	u, err := cfg.ProxyURL()
	require.NoError(t, err)
	assert.Nil(t, u)

	cfg.Proxy = "http://user:pw@proxy.example:8080"
	require.NoError(t, cfg.Validate())
	u, err = cfg.ProxyURL()
	require.NoError(t, err)
	assert.Equal(t, "proxy.example:8080", u.Host)
}

func TestDelayRange_Draw(t *testing.T) {
	d := DelayRange{MinMs: 100, MaxMs: 120}
	for i := 0; i < 200; i++ {
		got := d.Draw()
		assert.GreaterOrEqual(t, got, 100*time.Millisecond)
		assert.LessOrEqual(t, got, 120*time.Millisecond)
	}
	assert.Equal(t, 5*time.Millisecond, DelayRange{MinMs: 5, MaxMs: 5}.Draw())
}

func TestJourney(t *testing.T) {
	cfg := Default()
	cfg.TargetURL = "http://example.test/"
	assert.Equal(t, []Step{{Name: "landing", URL: "http://example.test/"}}, cfg.Journey())

	cfg.Steps = []Step{{URL: "http://example.test/a"}, {URL: "http://example.test/b"}}
	assert.Len(t, cfg.Journey(), 2)
}

func TestLoad_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessionq.yaml")
	content := `
total_attempts: 12
concurrency: 4
inter_batch_delay:
  min_ms: 10
  max_ms: 20
steps:
  - name: landing
    url: http://localhost:8080/
  - name: offer
    url: http://localhost:8080/offer?i={{.Index}}
success_marker: thank-you
pricing:
  - name: budget
    price_per_gb: 1.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.TotalAttempts)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, DelayRange{MinMs: 10, MaxMs: 20}, cfg.InterBatchDelay)
	require.Len(t, cfg.Steps, 2)
	assert.Equal(t, "offer", cfg.Steps[1].Name)
	assert.Equal(t, "thank-you", cfg.SuccessMarker)
	assert.Equal(t, 30, cfg.TimeoutSec)
	require.Len(t, cfg.Pricing, 1)
	assert.Equal(t, 1.5, cfg.Pricing[0].PricePerGB)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("concurrency", 0)

	_, err := Load(v)
	assert.ErrorIs(t, err, ErrInvalidConcurrency)
}

func TestLoad_DebugForcesDebugLevel(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("debug", true)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}
