package manifest

import (
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertIsIdempotent(t *testing.T) {
	m := New()

	first, created := m.Insert("https://example.com/a.css", "assets/example.com/a.css", KindCSS)
	require.True(t, created)

	second, created := m.Insert("https://example.com/a.css", "assets/example.com/other.css", KindOther)
	require.False(t, created)
	require.Equal(t, first.LocalPath, second.LocalPath)
	require.Equal(t, KindCSS, second.Kind)
	require.Equal(t, 1, m.Len())
}

func TestAttachAndUnfetched(t *testing.T) {
	m := New()
	m.Insert("https://example.com/a.css", "assets/example.com/a.css", KindCSS)
	m.Insert("https://example.com/b.png", "assets/example.com/b.png", KindImage)

	require.Len(t, m.Unfetched(), 2)

	m.Attach("https://example.com/a.css", []byte("body{}"))

	pending := m.Unfetched()
	require.Equal(t, []string{"https://example.com/b.png"}, pending)

	rec, ok := m.Get("https://example.com/a.css")
	require.True(t, ok)
	require.True(t, rec.Fetched)
	require.Equal(t, []byte("body{}"), rec.Content)
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	m := New()
	m.Insert("https://example.com/1", "assets/example.com/1", KindOther)
	m.Insert("https://example.com/2", "assets/example.com/2", KindOther)
	m.Insert("https://example.com/3", "assets/example.com/3", KindOther)

	snap := m.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "https://example.com/1", snap[0].SourceURL)
	require.Equal(t, "https://example.com/3", snap[2].SourceURL)
}

func TestCanonicalURLDropsQueryAndFragment(t *testing.T) {
	u, err := url.Parse("https://example.com/style.css?v=3#frag")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/style.css", CanonicalURL(u))
}

func TestDetectKind(t *testing.T) {
	cases := map[string]Kind{
		"https://example.com/a.css":     KindCSS,
		"https://example.com/a.CSS":     KindCSS,
		"https://example.com/a.js":      KindJS,
		"https://example.com/a.woff2":   KindFont,
		"https://example.com/a.png?v=1": KindImage,
		"https://example.com/a":         KindOther,
	}
	for raw, want := range cases {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		require.Equal(t, want, DetectKind(u), raw)
	}
}

func TestQueueHandsOutEachURLOnce(t *testing.T) {
	q := NewQueue()

	require.True(t, q.Enqueue("https://example.com/a"))
	require.False(t, q.Enqueue("https://example.com/a"))
	require.True(t, q.Enqueue("https://example.com/b"))

	batch := q.Drain()
	require.Len(t, batch, 2)

	// Draining does not reopen the seen set.
	require.False(t, q.Enqueue("https://example.com/a"))
	require.Empty(t, q.Drain())

	require.True(t, q.Processed("https://example.com/a"))
	require.False(t, q.Processed("https://example.com/never-seen"))
}

func TestQueueConcurrentEnqueue(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	wins := make(chan bool, 32)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- q.Enqueue("https://example.com/contended")
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	require.Equal(t, 1, won)
	require.Len(t, q.Drain(), 1)
}
