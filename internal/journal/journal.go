// Package journal tracks terminal channel outcomes for the current run. The
// dispatcher consults it before every send so a message is never re-sent to
// a channel that already accepted it, no matter how often scanning retries.
// The journal is deliberately per-run: after a restart everything still
// unread in the mailbox is fair game again.
package journal

import (
	"sort"
	"sync"
	"time"

	"github.com/example/mailwatch/internal/models"
)

// Entry is one recorded channel outcome for a message.
type Entry struct {
	MessageID string             `json:"message_id"`
	Channel   models.ChannelKind `json:"channel"`
	Outcome   models.Outcome     `json:"outcome"`
	Reason    string             `json:"reason,omitempty"`
	At        time.Time          `json:"at"`
}

// Journal is the dispatcher's view of past outcomes.
type Journal interface {
	// Lookup returns the recorded outcome for a message and channel pair.
	Lookup(messageID string, kind models.ChannelKind) (models.Outcome, bool)
	// Record stores a terminal outcome, replacing any earlier one.
	Record(entry Entry) error
	// Len reports the number of recorded pairs.
	Len() int
	Close() error
}

// Store is a journal that can also enumerate its entries, which the status
// API uses.
type Store interface {
	Journal
	Entries() []Entry
}

// Memory keeps the journal in process memory.
type Memory struct {
	mu      sync.RWMutex
	entries map[pairKey]Entry
}

type pairKey struct {
	messageID string
	kind      models.ChannelKind
}

// NewMemory returns an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{entries: make(map[pairKey]Entry)}
}

// Lookup implements Journal.
func (m *Memory) Lookup(messageID string, kind models.ChannelKind) (models.Outcome, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[pairKey{messageID: messageID, kind: kind}]
	return entry.Outcome, ok
}

// Record implements Journal.
func (m *Memory) Record(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[pairKey{messageID: entry.MessageID, kind: entry.Channel}] = entry
	return nil
}

// Len implements Journal.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns a snapshot of every recorded entry, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		if out[i].MessageID != out[j].MessageID {
			return out[i].MessageID < out[j].MessageID
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

// Close implements Journal. The in-memory journal has nothing to release.
func (m *Memory) Close() error {
	return nil
}
