package advert

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// historySize bounds the recent-scan history.
const historySize = 10

// History remembers the most recently scanned advertisements so the UI
// can offer quick re-connects. Oldest entries are evicted once the bound
// is reached; re-scanning a known code moves it back to the front.
type History struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Advertisement]
}

// NewHistory creates an empty scan history.
func NewHistory() *History {
	cache, _ := lru.New[string, *Advertisement](historySize)
	return &History{cache: cache}
}

// Record stores a successfully parsed advertisement, keyed by node ID.
func (h *History) Record(a *Advertisement) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache.Add(a.NodeID, a)
}

// Recent returns the history, most recent scan first.
func (h *History) Recent() []*Advertisement {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := h.cache.Keys() // oldest → newest
	out := make([]*Advertisement, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if a, ok := h.cache.Peek(keys[i]); ok {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of remembered scans.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cache.Len()
}
