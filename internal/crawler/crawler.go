// Package crawler walks a site breadth-first from its base URL, collecting
// the raw HTML of every same-origin page it can reach. Reference rewriting
// happens later, over the collected pages.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/stasazaryarozet/sitemirror/internal/config"
	"github.com/stasazaryarozet/sitemirror/internal/fetcher"
	"github.com/stasazaryarozet/sitemirror/internal/robots"
	"github.com/stasazaryarozet/sitemirror/pkg/types"
)

// Result summarizes one crawl.
type Result struct {
	Pages   []types.PageRecord
	Visited int
	Failed  int
	Skipped int
}

// Engine drives the breadth-first crawl.
type Engine struct {
	base        *url.URL
	maxPages    int
	maxLinks    int
	concurrency int
	queueSize   int

	client  *fetcher.Client
	agent   *robots.Agent
	limiter *HostLimiter
	logger  *slog.Logger

	frontier *Frontier

	mu      sync.Mutex
	pages   []types.PageRecord
	planned int
	failed  int
	skipped int
}

// New builds a crawl engine. The worker queue is sized to hold the whole
// page budget so workers can enqueue links without ever blocking each other.
func New(base *url.URL, cfg *config.Config, client *fetcher.Client, agent *robots.Agent, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	queueSize := cfg.Worker.QueueSize
	if queueSize < cfg.Crawl.MaxPages {
		queueSize = cfg.Crawl.MaxPages
	}

	return &Engine{
		base:        base,
		maxPages:    cfg.Crawl.MaxPages,
		maxLinks:    cfg.Crawl.MaxLinksPerPage,
		concurrency: cfg.Worker.Concurrency,
		queueSize:   queueSize,
		client:      client,
		agent:       agent,
		limiter: NewHostLimiter(cfg.Crawl.PerHostDelay.Duration, RateSettings{
			Requests: cfg.Crawl.RateLimit.Requests,
			Window:   cfg.Crawl.RateLimit.Window.Duration,
		}),
		logger:   logger,
		frontier: NewFrontier(),
	}
}

// Run crawls from the base URL until the frontier is exhausted or the page
// budget is spent. A failed seed fetch aborts the whole run; failures on any
// other page are logged and counted but never stop the crawl.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	pool, err := NewWorkerPool(ctx, e.concurrency, e.queueSize)
	if err != nil {
		return Result{}, err
	}
	defer pool.Close()

	if !e.frontier.TryAdd(pageKey(e.base)) {
		return Result{}, fmt.Errorf("crawl already ran")
	}
	e.planned = 1

	if !e.agent.Allowed(ctx, e.base) {
		return Result{}, fmt.Errorf("robots.txt disallows base URL %s", e.base)
	}

	seed, err := e.fetch(ctx, e.base)
	if err != nil {
		return Result{}, fmt.Errorf("fetch seed page: %w", err)
	}

	var wg sync.WaitGroup
	e.handlePage(ctx, pool, &wg, e.base, seed)
	wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	return Result{
		Pages:   e.pages,
		Visited: len(e.pages),
		Failed:  e.failed,
		Skipped: e.skipped,
	}, nil
}

func (e *Engine) fetch(ctx context.Context, u *url.URL) (*types.Page, error) {
	if err := e.limiter.Wait(ctx, u.Hostname()); err != nil {
		return nil, err
	}
	return e.client.Fetch(ctx, u)
}

// handlePage records the fetched page and schedules its outgoing links.
func (e *Engine) handlePage(ctx context.Context, pool *WorkerPool, wg *sync.WaitGroup, pageURL *url.URL, page *types.Page) {
	if !isHTML(page.ContentType) {
		e.logger.Debug("skipping non-HTML page", "url", pageURL.String(), "content_type", page.ContentType)
		e.mu.Lock()
		e.skipped++
		e.mu.Unlock()
		return
	}

	html := string(page.Body)
	links := e.extractLinks(pageURL, page)

	final := pageURL
	if page.FinalURL != nil {
		final = page.FinalURL
	}

	e.mu.Lock()
	e.pages = append(e.pages, types.PageRecord{URL: pageURL, FinalURL: final, HTML: html})
	e.mu.Unlock()

	for _, link := range links {
		if !e.admit(link) {
			continue
		}
		link := link
		wg.Add(1)
		err := pool.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			e.crawl(ctx, pool, wg, link)
		})
		if err != nil {
			wg.Done()
			return
		}
	}
}

func (e *Engine) crawl(ctx context.Context, pool *WorkerPool, wg *sync.WaitGroup, pageURL *url.URL) {
	if !e.agent.Allowed(ctx, pageURL) {
		e.logger.Debug("robots.txt disallows page", "url", pageURL.String())
		e.mu.Lock()
		e.skipped++
		e.mu.Unlock()
		return
	}

	page, err := e.fetch(ctx, pageURL)
	if err != nil {
		e.logger.Warn("page fetch failed", "url", pageURL.String(), "error", err)
		e.mu.Lock()
		e.failed++
		e.mu.Unlock()
		return
	}

	e.handlePage(ctx, pool, wg, pageURL, page)
}

// admit claims a link in the frontier while the page budget allows.
func (e *Engine) admit(link *url.URL) bool {
	e.mu.Lock()
	if e.planned >= e.maxPages {
		e.mu.Unlock()
		return false
	}
	e.mu.Unlock()

	if !e.frontier.TryAdd(pageKey(link)) {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.planned >= e.maxPages {
		return false
	}
	e.planned++
	return true
}

// extractLinks pulls same-origin anchor targets out of a fetched page.
func (e *Engine) extractLinks(pageURL *url.URL, page *types.Page) []*url.URL {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		e.logger.Warn("parse page failed", "url", pageURL.String(), "error", err)
		return nil
	}

	resolveBase := pageURL
	if page.FinalURL != nil {
		resolveBase = page.FinalURL
	}

	var links []*url.URL
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if e.maxLinks > 0 && len(links) >= e.maxLinks {
			return false
		}
		raw, _ := s.Attr("href")
		if link, ok := e.sameOriginLink(resolveBase, raw); ok {
			links = append(links, link)
		}
		return true
	})
	return links
}

func (e *Engine) sameOriginLink(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	switch strings.ToLower(ref.Scheme) {
	case "", "http", "https":
	default:
		return nil, false
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	if !strings.EqualFold(abs.Hostname(), e.base.Hostname()) {
		return nil, false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs, true
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
