package rewrite

import (
	"net/url"
	"regexp"
)

// urlTokenRe matches url(...) tokens in stylesheet text, tolerating optional
// quotes and surrounding whitespace.
var urlTokenRe = regexp.MustCompile(`url\(\s*['"]?\s*([^'")]+?)\s*['"]?\s*\)`)

// RewriteCSS substitutes every resolvable url(...) token in css with the
// reference produced by render. Tokens that do not resolve (data URIs,
// fragments, unparsable values) pass through unchanged.
//
// render receives the absolute URL of the token and returns the replacement
// reference text; callers decide whether that text is root-relative or
// relative to the stylesheet's own location.
func RewriteCSS(css string, base *url.URL, render ResolveFunc) string {
	return urlTokenRe.ReplaceAllStringFunc(css, func(token string) string {
		groups := urlTokenRe.FindStringSubmatch(token)
		if len(groups) != 2 {
			return token
		}
		abs, ok := resolveRef(base, groups[1])
		if !ok {
			return token
		}
		local, ok := render(abs)
		if !ok {
			return token
		}
		return "url(" + local + ")"
	})
}

// CSSRefTokens returns the raw reference text of every url(...) token in
// css, unresolved. Validation walks stored stylesheets with this.
func CSSRefTokens(css string) []string {
	var refs []string
	for _, groups := range urlTokenRe.FindAllStringSubmatch(css, -1) {
		refs = append(refs, groups[1])
	}
	return refs
}

// ExtractCSSRefs returns the absolute URLs of every resolvable url(...)
// token in css without modifying anything.
func ExtractCSSRefs(css string, base *url.URL) []*url.URL {
	var refs []*url.URL
	for _, groups := range urlTokenRe.FindAllStringSubmatch(css, -1) {
		if abs, ok := resolveRef(base, groups[1]); ok {
			refs = append(refs, abs)
		}
	}
	return refs
}
