// Package rewrite extracts external references from HTML and CSS and
// substitutes local mirror paths for them. It never fetches anything itself;
// resolution callbacks decide what a reference maps to.
package rewrite

import (
	"net/url"
	"strings"
)

// ResolveFunc maps an absolute URL to a local reference. A false return
// means the reference should be left untouched.
type ResolveFunc func(*url.URL) (string, bool)

var skipSchemes = map[string]struct{}{
	"data":       {},
	"javascript": {},
	"mailto":     {},
	"tel":        {},
	"about":      {},
	"blob":       {},
}

// resolveRef parses raw and resolves it against base. References that
// cannot name a fetchable HTTP resource (empty, fragment-only, data URIs,
// javascript:, mailto: and friends) resolve to false.
func resolveRef(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if _, skip := skipSchemes[strings.ToLower(ref.Scheme)]; skip {
		return nil, false
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	if abs.Host == "" {
		return nil, false
	}
	return abs, true
}

// RelativeRef computes the reference from the directory containing fromLocal
// to toLocal, both slash-separated paths relative to the output root. It is
// how a stored stylesheet points at a sibling asset.
func RelativeRef(fromLocal, toLocal string) string {
	fromDir := ""
	if idx := strings.LastIndex(fromLocal, "/"); idx >= 0 {
		fromDir = fromLocal[:idx]
	}
	if fromDir == "" {
		return toLocal
	}

	fromParts := strings.Split(fromDir, "/")
	toParts := strings.Split(toLocal, "/")

	common := 0
	for common < len(fromParts) && common < len(toParts)-1 && fromParts[common] == toParts[common] {
		common++
	}

	var b strings.Builder
	for i := common; i < len(fromParts); i++ {
		b.WriteString("../")
	}
	b.WriteString(strings.Join(toParts[common:], "/"))
	return b.String()
}
