package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
site:
  base_url: "https://example.com"
`))
	require.NoError(t, err)

	require.Equal(t, "https://example.com", cfg.Site.BaseURL)
	require.Equal(t, 500, cfg.Crawl.MaxPages)
	require.Equal(t, 8, cfg.Worker.Concurrency)
	require.Equal(t, "sitemirror/1.0", cfg.Fetch.UserAgent)
	require.Equal(t, 3, cfg.Fetch.MaxRetries)
	require.True(t, cfg.Robots.Respect)
	require.Equal(t, "dist", cfg.Output.Directory)
	require.False(t, cfg.DB.Enabled())
}

func TestLoadFromReaderOverrides(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
site:
  base_url: "https://example.com"
crawl:
  max_pages: 10
  per_host_delay: 1s
fetch:
  request_timeout: 30s
  max_retries: 0
forms:
  handler_url: "https://forms.example.net/api/form-handler"
`))
	require.NoError(t, err)

	require.Equal(t, 10, cfg.Crawl.MaxPages)
	require.Equal(t, time.Second, cfg.Crawl.PerHostDelay.Duration)
	require.Equal(t, 30*time.Second, cfg.Fetch.Timeout.Duration)
	require.Equal(t, 0, cfg.Fetch.MaxRetries)
	require.Equal(t, "https://forms.example.net/api/form-handler", cfg.Forms.HandlerURL)
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
site:
  base_url: "https://example.com"
crwal:
  max_pages: 10
`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Site.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name:    "bad scheme",
			mutate:  func(c *Config) { c.Site.BaseURL = "ftp://example.com" },
			wantErr: "http or https",
		},
		{
			name:    "relative handler url",
			mutate:  func(c *Config) { c.Forms.HandlerURL = "/api/form-handler" },
			wantErr: "absolute",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr: "concurrency",
		},
		{
			name:    "empty output dir",
			mutate:  func(c *Config) { c.Output.Directory = " " },
			wantErr: "output.directory",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Site.BaseURL = "https://example.com"
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	cfg := Default()
	cfg.Site.BaseURL = "https://example.com/"
	require.NoError(t, cfg.Validate())

	base, err := cfg.BaseURL()
	require.NoError(t, err)
	require.Equal(t, "https://example.com", base.String())
}

func TestDurationForms(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
site:
  base_url: "https://example.com"
crawl:
  per_host_delay: 500ms
robots:
  cache_ttl: 120
`))
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, cfg.Crawl.PerHostDelay.Duration)
	require.Equal(t, 120*time.Second, cfg.Robots.CacheTTL.Duration)
}

func TestRobotsOverridesNormalised(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
site:
  base_url: "https://example.com"
robots:
  overrides: ["Example.COM", "example.com", "  ", "cdn.example.net"]
`))
	require.NoError(t, err)
	require.Equal(t, []string{"cdn.example.net", "example.com"}, cfg.Robots.Overrides)
}
