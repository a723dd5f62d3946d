package dispatch

import "sync"

const defaultHistorySize = 100

// History retains the most recent dispatch summaries so the status API can
// show what the engine has been doing without any external storage.
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []Summary
}

// NewHistory constructs a history retaining up to capacity summaries. A
// non-positive capacity selects the default.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultHistorySize
	}
	return &History{capacity: capacity}
}

// Add appends a summary, evicting the oldest entries beyond capacity.
func (h *History) Add(summary Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, summary)
	if overflow := len(h.entries) - h.capacity; overflow > 0 {
		h.entries = append([]Summary(nil), h.entries[overflow:]...)
	}
}

// Recent returns the retained summaries, newest first.
func (h *History) Recent() []Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Summary, len(h.entries))
	for i, entry := range h.entries {
		out[len(h.entries)-1-i] = entry
	}
	return out
}

// Len reports how many summaries are currently retained.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
