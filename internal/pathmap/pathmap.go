// Package pathmap turns absolute URLs into safe relative paths under the
// assets root. Mapping is pure and deterministic: the same URL always yields
// the same path within a run, and no output can escape the root.
package pathmap

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Root is the directory prefix every mapped path starts with.
const Root = "assets"

// Map converts an absolute URL into a relative local path of the form
// assets/<host>/<path>. Query string and fragment never participate in the
// mapping; callers reattach the query to rendered references themselves.
//
// Hostless URLs map under assets/no-hostname/, and any path whose
// normalization would escape the assets root maps under assets/fallback/.
// Map never fails.
func Map(u *url.URL) string {
	if u == nil {
		return fallbackPath("no-hostname", "", "")
	}

	raw := u.String()
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fallbackPath("no-hostname", raw, extensionOf(u.Path))
	}

	p := cleanSegmentText(decodedPath(u))
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index.html"
	}

	mapped := path.Join(Root, host, p)
	if !withinRoot(mapped) {
		return fallbackPath("fallback", raw, extensionOf(u.Path))
	}
	return mapped
}

// withinRoot reports whether a cleaned path stays inside the assets root
// with no surviving parent-directory segments.
func withinRoot(p string) bool {
	if p != Root && !strings.HasPrefix(p, Root+"/") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

func fallbackPath(bucket, raw, ext string) string {
	return path.Join(Root, bucket, hashName(raw)+ext)
}

func hashName(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

func extensionOf(p string) string {
	ext := path.Ext(p)
	// A traversal payload can smuggle separators into the "extension".
	if strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return strings.ToLower(ext)
}

func decodedPath(u *url.URL) string {
	unescaped, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		return u.EscapedPath()
	}
	return unescaped
}

// cleanSegmentText folds diacritics and strips characters that are unsafe in
// local filenames, so mirrored paths stay portable across filesystems.
func cleanSegmentText(p string) string {
	folded, err := removeDiacritics(p)
	if err != nil {
		folded = norm.NFC.String(p)
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '<' || r == '>' || r == ':' || r == '"' || r == '|' || r == '?' || r == '*' || r == '\\':
			b.WriteRune('_')
		case r < 0x20:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func removeDiacritics(s string) (string, error) {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	result, _, err := transform.String(t, s)
	return result, err
}
