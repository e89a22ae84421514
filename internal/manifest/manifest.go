// Package manifest owns the canonical mapping from discovered asset URLs to
// local paths and fetched bytes. Each pipeline run constructs its own
// Manifest; there is no shared global state.
package manifest

import (
	"net/url"
	"path"
	"strings"
	"sync"
)

// Kind classifies an asset for storage and reporting purposes.
type Kind string

const (
	KindCSS   Kind = "css"
	KindJS    Kind = "js"
	KindImage Kind = "image"
	KindFont  Kind = "font"
	KindOther Kind = "other"
)

var extensionKinds = map[string]Kind{
	".css":   KindCSS,
	".js":    KindJS,
	".mjs":   KindJS,
	".png":   KindImage,
	".jpg":   KindImage,
	".jpeg":  KindImage,
	".gif":   KindImage,
	".svg":   KindImage,
	".webp":  KindImage,
	".avif":  KindImage,
	".ico":   KindImage,
	".woff":  KindFont,
	".woff2": KindFont,
	".ttf":   KindFont,
	".otf":   KindFont,
	".eot":   KindFont,
}

// DetectKind classifies a URL by its path extension.
func DetectKind(u *url.URL) Kind {
	if u == nil {
		return KindOther
	}
	if kind, ok := extensionKinds[strings.ToLower(path.Ext(u.Path))]; ok {
		return kind
	}
	return KindOther
}

// CanonicalURL renders u without its query string and fragment. This is the
// manifest key and the storage identity: two URLs differing only in query
// collide to the same entry (documented last-write-wins policy).
func CanonicalURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clone := *u
	clone.RawQuery = ""
	clone.Fragment = ""
	clone.RawFragment = ""
	return clone.String()
}

// AssetRecord describes one discovered asset.
type AssetRecord struct {
	SourceURL string
	LocalPath string
	Kind      Kind
	Content   []byte
	Fetched   bool
}

// Manifest maps canonical source URLs to asset records. All operations that
// check membership and then mutate do so under one lock, preserving the
// at-most-once invariants under concurrent writers.
type Manifest struct {
	mu      sync.Mutex
	entries map[string]*AssetRecord
	order   []string
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{entries: make(map[string]*AssetRecord)}
}

// Insert records an asset if its source URL is new and reports whether an
// entry was created. An existing entry keeps its original local path and
// kind: the first mapping wins and is never recomputed.
func (m *Manifest) Insert(sourceURL, localPath string, kind Kind) (AssetRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[sourceURL]; ok {
		return *existing, false
	}
	rec := &AssetRecord{
		SourceURL: sourceURL,
		LocalPath: localPath,
		Kind:      kind,
	}
	m.entries[sourceURL] = rec
	m.order = append(m.order, sourceURL)
	return *rec, true
}

// Attach stores the fetched bytes for an existing entry.
func (m *Manifest) Attach(sourceURL string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.entries[sourceURL]; ok {
		rec.Content = content
		rec.Fetched = true
	}
}

// Get returns a copy of the record for sourceURL.
func (m *Manifest) Get(sourceURL string) (AssetRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.entries[sourceURL]
	if !ok {
		return AssetRecord{}, false
	}
	return *rec, true
}

// Unfetched lists the source URLs that have no content attached yet, in
// insertion order.
func (m *Manifest) Unfetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []string
	for _, key := range m.order {
		if !m.entries[key].Fetched {
			pending = append(pending, key)
		}
	}
	return pending
}

// Snapshot returns copies of every record in insertion order, for the
// deployment collaborator.
func (m *Manifest) Snapshot() []AssetRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AssetRecord, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, *m.entries[key])
	}
	return out
}

// Len reports the number of entries.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
