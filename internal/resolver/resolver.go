// Package resolver downloads every asset the manifest knows about and keeps
// going until no new ones appear. Stylesheets are the recursive case: a
// fetched CSS file can reference further stylesheets, fonts and images,
// which join the same worklist.
package resolver

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/stasazaryarozet/sitemirror/internal/crawler"
	"github.com/stasazaryarozet/sitemirror/internal/fetcher"
	"github.com/stasazaryarozet/sitemirror/internal/manifest"
	"github.com/stasazaryarozet/sitemirror/internal/optimize"
	"github.com/stasazaryarozet/sitemirror/internal/pathmap"
	"github.com/stasazaryarozet/sitemirror/internal/rewrite"
)

// Stats counts what one Resolve pass did.
type Stats struct {
	Fetched int
	Failed  int
	Rounds  int
}

// Resolver drives the asset worklist to its fixed point.
type Resolver struct {
	client      *fetcher.Client
	man         *manifest.Manifest
	queue       *manifest.Queue
	limiter     *crawler.HostLimiter
	minifier    *optimize.Minifier
	concurrency int
	logger      *slog.Logger
}

// New builds a resolver over the shared manifest and discovery queue.
// limiter and minifier may be nil when no politeness constraints apply and
// no content optimization is configured.
func New(client *fetcher.Client, man *manifest.Manifest, queue *manifest.Queue, limiter *crawler.HostLimiter, minifier *optimize.Minifier, concurrency int, logger *slog.Logger) *Resolver {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:      client,
		man:         man,
		queue:       queue,
		limiter:     limiter,
		minifier:    minifier,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Register adds an asset URL to the manifest and the worklist, returning its
// local path. Registration is idempotent: the first caller fixes the path
// and everyone after gets the same answer.
func Register(man *manifest.Manifest, queue *manifest.Queue, abs *url.URL) string {
	canonical := manifest.CanonicalURL(abs)
	rec, _ := man.Insert(canonical, pathmap.Map(abs), manifest.DetectKind(abs))
	queue.Enqueue(canonical)
	return rec.LocalPath
}

// Resolve drains the queue in rounds until a round produces no work. Each
// round fetches its batch concurrently; stylesheet processing within a round
// enqueues discoveries for the next one. A fetch failure leaves the entry
// unfetched and the mirror degraded, never aborts the pass.
func (r *Resolver) Resolve(ctx context.Context) (Stats, error) {
	var fetched, failed atomic.Int64
	stats := Stats{}

	for {
		batch := r.queue.Drain()
		if len(batch) == 0 {
			break
		}
		stats.Rounds++

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, src := range batch {
			src := src
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if r.process(gctx, src) {
					fetched.Add(1)
				} else {
					failed.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			stats.Fetched = int(fetched.Load())
			stats.Failed = int(failed.Load())
			return stats, err
		}
	}

	stats.Fetched = int(fetched.Load())
	stats.Failed = int(failed.Load())
	return stats, nil
}

func (r *Resolver) process(ctx context.Context, src string) bool {
	rec, ok := r.man.Get(src)
	if !ok || rec.Fetched {
		return true
	}

	target, err := url.Parse(src)
	if err != nil {
		r.logger.Warn("unparsable asset URL", "url", src, "error", err)
		return false
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, target.Hostname()); err != nil {
			return false
		}
	}

	page, err := r.client.Fetch(ctx, target)
	if err != nil {
		r.logger.Warn("asset fetch failed", "url", src, "error", err)
		return false
	}

	content := page.Body
	switch {
	case isStylesheet(rec, page.ContentType):
		content = []byte(r.rewriteStylesheet(rec, target, string(content)))
		content = r.minifier.CSS(content)
	case rec.Kind == manifest.KindJS:
		content = r.minifier.JS(content)
	}

	r.man.Attach(src, content)
	return true
}

// rewriteStylesheet substitutes local references into fetched CSS and feeds
// its discoveries back into the worklist. References are rendered relative
// to the stylesheet's own location under the assets root.
func (r *Resolver) rewriteStylesheet(rec manifest.AssetRecord, cssURL *url.URL, css string) string {
	return rewrite.RewriteCSS(css, cssURL, func(abs *url.URL) (string, bool) {
		local := Register(r.man, r.queue, abs)
		ref := rewrite.RelativeRef(rec.LocalPath, local)
		if abs.RawQuery != "" {
			ref += "?" + abs.RawQuery
		}
		return ref, true
	})
}

func isStylesheet(rec manifest.AssetRecord, contentType string) bool {
	if rec.Kind == manifest.KindCSS {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "text/css")
}
