package fetcher

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func fetchFrom(t *testing.T, srv *httptest.Server) (*HTTPFetcher, *url.URL) {
	t.Helper()
	f, err := NewHTTPFetcher(Options{UserAgent: "sitemirror-test/1.0"})
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse %q: %v", srv.URL, err)
	}
	return f, u
}

func TestFetchDecodesGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/html")
		gz := gzip.NewWriter(w)
		fmt.Fprint(gz, "<html><body>compressed</body></html>")
		gz.Close()
	}))
	defer srv.Close()

	f, u := fetchFrom(t, srv)
	page, err := f.Fetch(context.Background(), u)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(string(page.Body), "compressed") {
		t.Fatalf("body not decoded: %q", page.Body)
	}
}

func TestFetchCorruptGzipBodyErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		fmt.Fprint(w, "this is not gzip")
	}))
	defer srv.Close()

	f, u := fetchFrom(t, srv)
	if _, err := f.Fetch(context.Background(), u); err == nil {
		t.Fatal("expected error for corrupt gzip body")
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 2048))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(Options{UserAgent: "sitemirror-test/1.0", MaxBodyBytes: 1024})
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse %q: %v", srv.URL, err)
	}
	if _, err := f.Fetch(context.Background(), u); err == nil {
		t.Fatal("expected error for oversized body")
	}
}
