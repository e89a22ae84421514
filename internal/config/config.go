package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures everything required to run a mirroring pipeline.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Worker   WorkerConfig   `yaml:"worker"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Robots   RobotsConfig   `yaml:"robots"`
	Forms    FormsConfig    `yaml:"forms"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Output   OutputConfig   `yaml:"output"`
	DB       SQLConfig      `yaml:"db"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig identifies the published site being mirrored.
type SiteConfig struct {
	BaseURL string `yaml:"base_url"`
}

// CrawlConfig controls the page frontier and politeness policy.
type CrawlConfig struct {
	MaxPages        int             `yaml:"max_pages"`
	MaxLinksPerPage int             `yaml:"max_links_per_page"`
	PerHostDelay    Duration        `yaml:"per_host_delay"`
	RateLimit       RateLimitConfig `yaml:"rate_limit_per_host"`
}

// RateLimitConfig applies a token bucket per host.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// Enabled reports whether per-host rate limiting is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}

// WorkerConfig controls crawl/resolve concurrency and queue sizing.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
}

// FetchConfig controls HTTP fetching and retry behaviour.
type FetchConfig struct {
	UserAgent    string            `yaml:"user_agent"`
	Headers      map[string]string `yaml:"headers"`
	Timeout      Duration          `yaml:"request_timeout"`
	MaxBodyBytes int64             `yaml:"max_body_bytes"`
	ProxyURL     string            `yaml:"proxy_url"`
	MaxRetries   int               `yaml:"max_retries"`
	RetryBackoff Duration          `yaml:"retry_backoff"`
}

// RobotsConfig configures robots.txt handling for the crawl phase.
type RobotsConfig struct {
	Respect   bool     `yaml:"respect"`
	Overrides []string `yaml:"overrides"`
	UserAgent string   `yaml:"user_agent"`
	CacheTTL  Duration `yaml:"cache_ttl"`
}

// FormsConfig carries the external form handler endpoint, if one has been
// provisioned. An empty handler URL disables the form rewrite pass.
type FormsConfig struct {
	HandlerURL string `yaml:"handler_url"`
}

// OptimizeConfig gates content transformations applied while the mirror is
// written. Everything defaults to off: an unconfigured mirror stores bytes
// exactly as fetched.
type OptimizeConfig struct {
	MinifyCSS bool `yaml:"minify_css"`
	MinifyJS  bool `yaml:"minify_js"`
	// StripSelectors lists CSS selectors whose elements are removed from
	// every page before rewriting, for platform badges and tracking widgets
	// the mirror should not carry.
	StripSelectors []string `yaml:"strip_selectors"`
}

// OutputConfig selects where the mirrored site is materialized.
type OutputConfig struct {
	Directory string `yaml:"directory"`
}

// SQLConfig describes an optional relational snapshot sink.
type SQLConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
}

// Enabled reports whether the SQL sink is configured.
func (c SQLConfig) Enabled() bool {
	return c.Driver != "" && c.DSN != ""
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Crawl: CrawlConfig{
			MaxPages:        500,
			MaxLinksPerPage: 200,
			PerHostDelay:    DurationFrom(250 * time.Millisecond),
		},
		Worker: WorkerConfig{
			Concurrency: 8,
			QueueSize:   1024,
		},
		Fetch: FetchConfig{
			UserAgent:    "sitemirror/1.0",
			Headers:      map[string]string{},
			Timeout:      DurationFrom(15 * time.Second),
			MaxBodyBytes: 16 * 1024 * 1024,
			MaxRetries:   3,
			RetryBackoff: DurationFrom(500 * time.Millisecond),
		},
		Robots: RobotsConfig{
			Respect:   true,
			Overrides: []string{},
			UserAgent: "sitemirror/1.0",
			CacheTTL:  DurationFrom(6 * time.Hour),
		},
		Output: OutputConfig{
			Directory: "dist",
		},
		DB: SQLConfig{
			AutoMigrate: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces required invariants for the pipeline configuration.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return errors.New("site.base_url must be set")
	}
	parsed, err := url.Parse(c.Site.BaseURL)
	if err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("site.base_url must be http or https (got %q)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("site.base_url missing host")
	}
	if c.Crawl.MaxPages < 0 {
		return fmt.Errorf("crawl.max_pages must be >= 0 (got %d)", c.Crawl.MaxPages)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0 (got %d)", c.Worker.Concurrency)
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be > 0 (got %d)", c.Worker.QueueSize)
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0 (got %d)", c.Fetch.MaxRetries)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return errors.New("fetch.user_agent must be set")
	}
	if c.Robots.Respect && strings.TrimSpace(c.Robots.UserAgent) == "" {
		return errors.New("robots.user_agent must be set")
	}
	if c.Forms.HandlerURL != "" {
		handler, err := url.Parse(c.Forms.HandlerURL)
		if err != nil {
			return fmt.Errorf("forms.handler_url: %w", err)
		}
		if !handler.IsAbs() {
			return errors.New("forms.handler_url must be absolute")
		}
	}
	if strings.TrimSpace(c.Output.Directory) == "" {
		return errors.New("output.directory must be set")
	}
	return nil
}

// BaseURL returns the parsed seed URL. Validate must have succeeded first.
func (c Config) BaseURL() (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSuffix(c.Site.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return parsed, nil
}

func (c *Config) normalise() {
	c.Site.BaseURL = strings.TrimSpace(c.Site.BaseURL)
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	c.Robots.UserAgent = strings.TrimSpace(c.Robots.UserAgent)
	c.Forms.HandlerURL = strings.TrimSpace(c.Forms.HandlerURL)
	c.Output.Directory = strings.TrimSpace(c.Output.Directory)
	if c.Fetch.Headers == nil {
		c.Fetch.Headers = map[string]string{}
	}
	if len(c.Robots.Overrides) > 0 {
		c.Robots.Overrides = dedupeLower(c.Robots.Overrides)
	}
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return cleaned
}
