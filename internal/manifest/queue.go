package manifest

import "sync"

// Queue is the discovery worklist drained by the recursive asset resolver.
// A seen-set guards enqueueing so any URL is handed out at most once across
// the whole run, which is what bounds the fixed-point iteration.
type Queue struct {
	mu    sync.Mutex
	items []string
	seen  map[string]struct{}
}

// NewQueue returns an empty discovery queue.
func NewQueue() *Queue {
	return &Queue{seen: make(map[string]struct{})}
}

// Enqueue adds a URL unless it was ever enqueued before and reports whether
// it was accepted.
func (q *Queue) Enqueue(sourceURL string) bool {
	if sourceURL == "" {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.seen[sourceURL]; ok {
		return false
	}
	q.seen[sourceURL] = struct{}{}
	q.items = append(q.items, sourceURL)
	return true
}

// Drain removes and returns all currently queued URLs.
func (q *Queue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Processed reports whether a URL has ever been enqueued.
func (q *Queue) Processed(sourceURL string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.seen[sourceURL]
	return ok
}
