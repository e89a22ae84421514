package types

import (
	"net/http"
	"net/url"
	"time"
)

// Page is the raw outcome of fetching a single URL.
type Page struct {
	URL             *url.URL
	FinalURL        *url.URL
	Body            []byte
	ContentType     string
	StatusCode      int
	Headers         http.Header
	FetchedAt       time.Time
	ResponseLatency time.Duration
}

// PageRecord pairs a crawled page URL with its raw document text.
// Records are immutable once the crawler produces them. FinalURL is the
// URL after redirects; relative references inside the document resolve
// against it, while the record stays filed under the requested URL.
type PageRecord struct {
	URL      *url.URL
	FinalURL *url.URL
	HTML     string
}

// RenderedPage is a page record tagged with the output filename the
// deployment collaborator should materialize it under.
type RenderedPage struct {
	URL      string
	FileName string
	HTML     string
}
