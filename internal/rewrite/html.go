package rewrite

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// assetAttrs lists element/attribute pairs that carry asset references.
// Anchor hrefs are page links and are handled separately.
var assetAttrs = []struct {
	selector string
	attr     string
}{
	{"img[src]", "src"},
	{"script[src]", "src"},
	{"source[src]", "src"},
	{"video[src]", "src"},
	{"audio[src]", "src"},
	{"video[poster]", "poster"},
	{"embed[src]", "src"},
	{"input[type='image'][src]", "src"},
}

var stylesheetRels = map[string]struct{}{
	"stylesheet":       {},
	"icon":             {},
	"shortcut icon":    {},
	"apple-touch-icon": {},
	"preload":          {},
	"manifest":         {},
	"mask-icon":        {},
}

// Extractor walks a parsed document, registers every asset reference through
// its resolve callbacks and rewrites the attributes in place.
type Extractor struct {
	base         *url.URL
	resolveAsset ResolveFunc
	resolvePage  ResolveFunc
	logger       *slog.Logger
}

// NewExtractor builds an extractor rooted at base. resolvePage may be nil
// when page links should be left alone.
func NewExtractor(base *url.URL, resolveAsset, resolvePage ResolveFunc, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		base:         base,
		resolveAsset: resolveAsset,
		resolvePage:  resolvePage,
		logger:       logger,
	}
}

// Rewrite processes doc in place: asset attributes, srcset candidate lists,
// inline style attributes, <style> blocks and, when configured, same-origin
// page links.
func (e *Extractor) Rewrite(doc *goquery.Document) {
	for _, rule := range assetAttrs {
		attr := rule.attr
		doc.Find(rule.selector).Each(func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr(attr)
			if local, ok := e.renderAsset(raw); ok {
				s.SetAttr(attr, local)
			}
		})
	}

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if _, ok := stylesheetRels[strings.ToLower(strings.TrimSpace(rel))]; !ok {
			return
		}
		raw, _ := s.Attr("href")
		if local, ok := e.renderAsset(raw); ok {
			s.SetAttr("href", local)
		}
	})

	doc.Find("img[srcset], source[srcset]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr("srcset")
		if rewritten, changed := e.rewriteSrcset(raw); changed {
			s.SetAttr("srcset", rewritten)
		}
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr("style")
		rewritten := RewriteCSS(raw, e.base, e.assetRef)
		if rewritten != raw {
			s.SetAttr("style", rewritten)
		}
	})

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		raw := s.Text()
		rewritten := RewriteCSS(raw, e.base, e.assetRef)
		if rewritten != raw {
			s.SetText(rewritten)
		}
	})

	if e.resolvePage != nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr("href")
			abs, ok := resolveRef(e.base, raw)
			if !ok {
				return
			}
			if local, ok := e.resolvePage(abs); ok {
				s.SetAttr("href", local)
			}
		})
	}
}

// renderAsset resolves one raw attribute value and renders its local
// reference, reattaching the original query string so cache-busting
// parameters survive the rewrite.
func (e *Extractor) renderAsset(raw string) (string, bool) {
	abs, ok := resolveRef(e.base, raw)
	if !ok {
		return "", false
	}
	return e.assetRef(abs)
}

func (e *Extractor) assetRef(abs *url.URL) (string, bool) {
	local, ok := e.resolveAsset(abs)
	if !ok {
		return "", false
	}
	if abs.RawQuery != "" {
		local += "?" + abs.RawQuery
	}
	return local, true
}

// rewriteSrcset processes a srcset candidate list, rewriting each candidate
// URL and preserving its width or density descriptor.
func (e *Extractor) rewriteSrcset(srcset string) (string, bool) {
	candidates := strings.Split(srcset, ",")
	changed := false
	out := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		fields := strings.Fields(strings.TrimSpace(candidate))
		if len(fields) == 0 {
			continue
		}
		if local, ok := e.renderAsset(fields[0]); ok {
			fields[0] = local
			changed = true
		}
		out = append(out, strings.Join(fields, " "))
	}

	if !changed {
		return srcset, false
	}
	return strings.Join(out, ", "), true
}
