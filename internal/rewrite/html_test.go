package rewrite

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

// fakeResolver records resolved URLs and maps them the way the manifest
// would.
type fakeResolver struct {
	seen []string
}

func (f *fakeResolver) resolve(abs *url.URL) (string, bool) {
	f.seen = append(f.seen, abs.String())
	return "assets/" + abs.Hostname() + abs.Path, true
}

func TestRewriteAssetAttributes(t *testing.T) {
	base, _ := url.Parse("https://example.com/page")
	res := &fakeResolver{}
	ex := NewExtractor(base, res.resolve, nil, nil)

	doc := docFrom(t, `<html><head>
		<link rel="stylesheet" href="/css/main.css">
		<link rel="canonical" href="/page">
		<script src="https://cdn.example.net/app.js"></script>
	</head><body>
		<img src="/img/logo.png">
		<video poster="/img/poster.jpg"></video>
	</body></html>`)

	ex.Rewrite(doc)

	href, _ := doc.Find("link[rel='stylesheet']").Attr("href")
	require.Equal(t, "assets/example.com/css/main.css", href)

	canonical, _ := doc.Find("link[rel='canonical']").Attr("href")
	require.Equal(t, "/page", canonical, "non-asset link rels stay untouched")

	src, _ := doc.Find("script").Attr("src")
	require.Equal(t, "assets/cdn.example.net/app.js", src, "cross-origin assets are mirrored too")

	img, _ := doc.Find("img").Attr("src")
	require.Equal(t, "assets/example.com/img/logo.png", img)

	poster, _ := doc.Find("video").Attr("poster")
	require.Equal(t, "assets/example.com/img/poster.jpg", poster)
}

func TestRewriteSkipsNonFetchableRefs(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	res := &fakeResolver{}
	ex := NewExtractor(base, res.resolve, nil, nil)

	doc := docFrom(t, `<html><body>
		<img src="data:image/png;base64,AAAA">
		<img src="">
		<a href="javascript:void(0)">x</a>
		<a href="mailto:a@b.c">m</a>
		<a href="#top">t</a>
	</body></html>`)

	ex.Rewrite(doc)

	require.Empty(t, res.seen)
	src, _ := doc.Find("img").First().Attr("src")
	require.Equal(t, "data:image/png;base64,AAAA", src)
}

func TestRewriteReattachesQuery(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	res := &fakeResolver{}
	ex := NewExtractor(base, res.resolve, nil, nil)

	doc := docFrom(t, `<img src="/img.png?v=42">`)
	ex.Rewrite(doc)

	src, _ := doc.Find("img").Attr("src")
	require.Equal(t, "assets/example.com/img.png?v=42", src)
	require.Equal(t, []string{"https://example.com/img.png?v=42"}, res.seen)
}

func TestRewriteSrcset(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	res := &fakeResolver{}
	ex := NewExtractor(base, res.resolve, nil, nil)

	doc := docFrom(t, `<img srcset="/img/small.png 480w, /img/big.png 2x" src="/img/small.png">`)
	ex.Rewrite(doc)

	srcset, _ := doc.Find("img").Attr("srcset")
	require.Equal(t, "assets/example.com/img/small.png 480w, assets/example.com/img/big.png 2x", srcset)
}

func TestRewriteInlineAndBlockStyles(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	res := &fakeResolver{}
	ex := NewExtractor(base, res.resolve, nil, nil)

	doc := docFrom(t, `<html><head>
		<style>body { background: url('/bg.png'); }</style>
	</head><body>
		<div style="background-image: url(/hero.jpg)">x</div>
	</body></html>`)

	ex.Rewrite(doc)

	style := doc.Find("style").Text()
	require.Contains(t, style, "url(assets/example.com/bg.png)")

	attr, _ := doc.Find("div").Attr("style")
	require.Contains(t, attr, "url(assets/example.com/hero.jpg)")
}

func TestRewritePageLinks(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	res := &fakeResolver{}
	pages := map[string]string{
		"https://example.com/about": "about.html",
	}
	resolvePage := func(abs *url.URL) (string, bool) {
		clone := *abs
		clone.Fragment = ""
		name, ok := pages[clone.String()]
		return name, ok
	}
	ex := NewExtractor(base, res.resolve, resolvePage, nil)

	doc := docFrom(t, `<body>
		<a id="known" href="/about">about</a>
		<a id="unknown" href="/contact">contact</a>
		<a id="external" href="https://other.example.org/">ext</a>
	</body>`)

	ex.Rewrite(doc)

	known, _ := doc.Find("#known").Attr("href")
	require.Equal(t, "about.html", known)

	unknown, _ := doc.Find("#unknown").Attr("href")
	require.Equal(t, "/contact", unknown, "uncrawled pages keep their original href")

	external, _ := doc.Find("#external").Attr("href")
	require.Equal(t, "https://other.example.org/", external)
}
