package pathmap

import (
	"net/url"
	"strings"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestMapBasicLayout(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"https://example.com/", "assets/example.com/index.html"},
		{"https://example.com", "assets/example.com/index.html"},
		{"https://example.com/css/style.css", "assets/example.com/css/style.css"},
		{"https://Example.COM/img/logo.png", "assets/example.com/img/logo.png"},
		{"https://example.com/blog/", "assets/example.com/blog/index.html"},
	}
	for _, tc := range cases {
		if got := Map(mustParse(t, tc.raw)); got != tc.want {
			t.Errorf("Map(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestMapIgnoresQueryAndFragment(t *testing.T) {
	plain := Map(mustParse(t, "https://example.com/img.png"))
	withQuery := Map(mustParse(t, "https://example.com/img.png?v=2"))
	withFragment := Map(mustParse(t, "https://example.com/img.png#top"))

	if plain != withQuery || plain != withFragment {
		t.Errorf("query/fragment changed mapping: %q / %q / %q", plain, withQuery, withFragment)
	}
}

func TestMapDeterministic(t *testing.T) {
	first := Map(mustParse(t, "https://example.com/a/b/c.js"))
	second := Map(mustParse(t, "https://example.com/a/b/c.js"))
	if first != second {
		t.Errorf("mapping not deterministic: %q vs %q", first, second)
	}
}

func TestMapTraversalFallsBack(t *testing.T) {
	for _, raw := range []string{
		"https://example.com/../../etc/passwd",
		"https://example.com/a/../../../root",
		"https://example.com/%2e%2e/%2e%2e/etc/shadow",
	} {
		got := Map(mustParse(t, raw))
		if !strings.HasPrefix(got, Root+"/fallback/") {
			t.Errorf("Map(%q) = %q, expected fallback bucket", raw, got)
		}
		if strings.Contains(got, "..") {
			t.Errorf("Map(%q) = %q contains parent segment", raw, got)
		}
	}
}

func TestMapHostlessFallsBack(t *testing.T) {
	got := Map(mustParse(t, "/relative/only.png"))
	if !strings.HasPrefix(got, Root+"/no-hostname/") {
		t.Errorf("Map hostless = %q, expected no-hostname bucket", got)
	}
	if !strings.HasSuffix(got, ".png") {
		t.Errorf("Map hostless = %q, expected extension preserved", got)
	}

	if Map(nil) == "" {
		t.Error("Map(nil) returned empty path")
	}
}

func TestMapFoldsDiacritics(t *testing.T) {
	got := Map(mustParse(t, "https://example.com/café/menu.html"))
	want := "assets/example.com/cafe/menu.html"
	if got != want {
		t.Errorf("Map diacritics = %q, want %q", got, want)
	}
}

func TestMapReplacesUnsafeCharacters(t *testing.T) {
	got := Map(mustParse(t, `https://example.com/a<b>c.png`))
	if strings.ContainsAny(got, `<>:"|?*\`) {
		t.Errorf("Map left unsafe characters in %q", got)
	}
}
