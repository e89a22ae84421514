// Package pipeline wires the crawl, rewrite and asset resolution stages into
// one run that produces a self-contained mirror in memory, ready for the
// publishers to persist.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/stasazaryarozet/sitemirror/internal/config"
	"github.com/stasazaryarozet/sitemirror/internal/crawler"
	"github.com/stasazaryarozet/sitemirror/internal/fetcher"
	"github.com/stasazaryarozet/sitemirror/internal/manifest"
	"github.com/stasazaryarozet/sitemirror/internal/optimize"
	"github.com/stasazaryarozet/sitemirror/internal/resolver"
	"github.com/stasazaryarozet/sitemirror/internal/rewrite"
	"github.com/stasazaryarozet/sitemirror/internal/robots"
	"github.com/stasazaryarozet/sitemirror/pkg/types"
)

// Options tunes a single run.
type Options struct {
	// SkipAssets stops after the crawl and rewrite stages, leaving every
	// manifest entry unfetched. Used by the crawl-only command.
	SkipAssets bool
}

// Result is everything one run produced.
type Result struct {
	RunID        string
	BaseURL      string
	StartedAt    time.Time
	Duration     time.Duration
	Pages        []types.RenderedPage
	Assets       []manifest.AssetRecord
	PagesFailed  int
	PagesSkipped int
	AssetsFailed int
}

// Pipeline runs the mirror stages against one configured site.
type Pipeline struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger
}

// New validates the configuration and builds a pipeline.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, opts: opts, logger: logger}, nil
}

// Logger exposes the pipeline's logger so commands and publishers share it.
func (p *Pipeline) Logger() *slog.Logger {
	return p.logger
}

// Run executes crawl, rewrite and resolve in order. The seed page failing is
// the only fetch error that aborts; everything downstream degrades instead.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	base, err := p.cfg.BaseURL()
	if err != nil {
		return nil, err
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    p.cfg.Fetch.UserAgent,
		Headers:      p.cfg.Fetch.Headers,
		Timeout:      p.cfg.Fetch.Timeout.Duration,
		MaxBodyBytes: p.cfg.Fetch.MaxBodyBytes,
		ProxyURL:     p.cfg.Fetch.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}

	client := fetcher.NewClient(httpFetcher, p.cfg.Fetch.MaxRetries, p.cfg.Fetch.RetryBackoff.Duration, p.logger)
	agent := robots.NewAgent(p.cfg.Robots, client.HTTPClient())

	p.logger.Info("crawl started", "base_url", base.String(), "max_pages", p.cfg.Crawl.MaxPages)

	engine := crawler.New(base, p.cfg, client, agent, p.logger)
	crawlRes, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info("crawl finished",
		"pages", crawlRes.Visited,
		"failed", crawlRes.Failed,
		"skipped", crawlRes.Skipped,
	)

	man := manifest.New()
	queue := manifest.NewQueue()

	pages, err := p.rewritePages(crawlRes.Pages, man, queue)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:        uuid.NewString(),
		BaseURL:      base.String(),
		StartedAt:    started,
		Pages:        pages,
		PagesFailed:  crawlRes.Failed,
		PagesSkipped: crawlRes.Skipped,
	}

	if !p.opts.SkipAssets {
		limiter := crawler.NewHostLimiter(p.cfg.Crawl.PerHostDelay.Duration, crawler.RateSettings{
			Requests: p.cfg.Crawl.RateLimit.Requests,
			Window:   p.cfg.Crawl.RateLimit.Window.Duration,
		})
		minifier := optimize.NewMinifier(p.cfg.Optimize.MinifyCSS, p.cfg.Optimize.MinifyJS, p.logger)
		res := resolver.New(client, man, queue, limiter, minifier, p.cfg.Worker.Concurrency, p.logger)
		stats, err := res.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		p.logger.Info("assets resolved",
			"fetched", stats.Fetched,
			"failed", stats.Failed,
			"rounds", stats.Rounds,
		)
		result.AssetsFailed = stats.Failed
	}

	result.Assets = man.Snapshot()
	result.Duration = time.Since(started)
	return result, nil
}

// rewritePages turns each raw crawled page into its rendered mirror form:
// asset references point into the assets tree, same-origin links point at
// local page files and forms target the submission handler.
func (p *Pipeline) rewritePages(records []types.PageRecord, man *manifest.Manifest, queue *manifest.Queue) ([]types.RenderedPage, error) {
	pageFiles := make(map[string]string, len(records))
	for _, rec := range records {
		pageFiles[pageFileKey(rec.URL)] = OutputFileName(rec.URL)
	}

	resolveAsset := func(abs *url.URL) (string, bool) {
		return resolver.Register(man, queue, abs), true
	}
	resolvePage := func(abs *url.URL) (string, bool) {
		name, ok := pageFiles[pageFileKey(abs)]
		return name, ok
	}

	forms := rewrite.NewFormRewriter(p.cfg.Forms.HandlerURL, p.logger)

	rendered := make([]types.RenderedPage, 0, len(records))
	for _, rec := range records {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.HTML))
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", rec.URL, err)
		}

		for _, sel := range p.cfg.Optimize.StripSelectors {
			doc.Find(sel).Remove()
		}

		// References resolve against the post-redirect URL; the page itself
		// stays filed under the URL it was requested as.
		resolveBase := rec.URL
		if rec.FinalURL != nil {
			resolveBase = rec.FinalURL
		}

		extractor := rewrite.NewExtractor(resolveBase, resolveAsset, resolvePage, p.logger)
		extractor.Rewrite(doc)
		forms.Rewrite(doc, rec.URL.String())

		html, err := doc.Html()
		if err != nil {
			return nil, fmt.Errorf("render page %s: %w", rec.URL, err)
		}

		rendered = append(rendered, types.RenderedPage{
			URL:      rec.URL.String(),
			FileName: pageFiles[pageFileKey(rec.URL)],
			HTML:     html,
		})
	}
	return rendered, nil
}

// OutputFileName derives the flat file name a page is served from at the
// mirror root: index.html for the site root, otherwise the last path segment
// with an .html suffix. Distinct paths sharing a last segment collapse to
// one file, same last-write-wins policy as query-variant assets.
func OutputFileName(u *url.URL) string {
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return "index.html"
	}
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		p = p[idx+1:]
	}
	lower := strings.ToLower(p)
	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		return p
	}
	return p + ".html"
}

// pageFileKey identifies a page for link rewriting. Query and fragment are
// dropped so variants of one path collapse to one local file, and an absent
// path is the same page as "/".
func pageFileKey(u *url.URL) string {
	clone := *u
	clone.RawQuery = ""
	clone.Fragment = ""
	clone.RawFragment = ""
	clone.Host = strings.ToLower(clone.Host)
	if clone.Path == "" {
		clone.Path = "/"
	}
	return clone.String()
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler), nil
}
