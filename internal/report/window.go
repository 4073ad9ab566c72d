package report

import "sync"

// WindowCache retains every ReportCache computed in this process, keyed by
// signature, so flipping back to a seen signature needs no network call.
// Entries are only appended or replaced, never evicted.
type WindowCache struct {
	mu      sync.RWMutex
	entries map[string]*ReportCache
}

func NewWindowCache() *WindowCache {
	return &WindowCache{entries: map[string]*ReportCache{}}
}

func (w *WindowCache) Lookup(signature Signature) (*ReportCache, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cache, ok := w.entries[signature.Key()]
	return cache, ok
}

func (w *WindowCache) Store(signature Signature, cache *ReportCache) {
	if cache == nil {
		return
	}
	w.mu.Lock()
	w.entries[signature.Key()] = cache
	w.mu.Unlock()
}

func (w *WindowCache) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}
