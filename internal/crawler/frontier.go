package crawler

import (
	"net/url"
	"strings"
	"sync"
)

// Frontier tracks which page URLs have ever been admitted to the crawl.
// Admission is a single check-and-set under one lock, so a URL is claimed
// by exactly one worker no matter how many pages link to it.
type Frontier struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{seen: make(map[string]struct{})}
}

// TryAdd claims key and reports whether this caller won it.
func (f *Frontier) TryAdd(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	return true
}

// Seen reports whether key was ever admitted.
func (f *Frontier) Seen(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[key]
	return ok
}

// Len reports how many URLs have been admitted.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// pageKey normalizes a URL for frontier membership: fragments never
// distinguish pages, hosts compare case-insensitively, and an absent path
// is the same page as "/".
func pageKey(u *url.URL) string {
	clone := *u
	clone.Fragment = ""
	clone.RawFragment = ""
	clone.Host = strings.ToLower(clone.Host)
	if clone.Path == "" {
		clone.Path = "/"
	}
	return clone.String()
}
