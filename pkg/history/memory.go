package history

import (
	"context"
	"sync"
)

// MemoryStore keeps the most recent entries in memory.
// Stats cover every entry added, including ones already evicted.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry // oldest first
	ids      map[string]struct{}
	stats    Stats
	capacity int
	closed   bool
}

// NewMemoryStore creates a store holding up to capacity entries.
// A capacity below 1 uses 500.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = 500
	}
	return &MemoryStore{
		entries:  make([]Entry, 0, capacity),
		ids:      make(map[string]struct{}, capacity),
		stats:    newStats(),
		capacity: capacity,
	}
}

// Add appends an entry, evicting the oldest when full.
func (m *MemoryStore) Add(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return ErrNoID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, dup := m.ids[e.ID]; dup {
		return ErrDuplicate
	}

	m.entries = append(m.entries, e)
	m.ids[e.ID] = struct{}{}
	if len(m.entries) > m.capacity {
		delete(m.ids, m.entries[0].ID)
		m.entries = m.entries[1:]
	}
	m.stats.count(e)
	return nil
}

// Recent returns matching entries, newest first.
func (m *MemoryStore) Recent(ctx context.Context, q Query) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	limit := q.limit()
	out := make([]Entry, 0, min(limit, len(m.entries)))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if q.match(m.entries[i]) {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

// Stats returns a copy of the counters.
func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Stats{}, ErrClosed
	}

	out := newStats()
	out.Total = m.stats.Total
	for k, v := range m.stats.ByCommand {
		out.ByCommand[k] = v
	}
	for k, v := range m.stats.ByOutcome {
		out.ByOutcome[k] = v
	}
	return out, nil
}

// Len returns the number of retained entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close discards the entries.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	m.ids = nil
	return nil
}

// Verify MemoryStore implements Store at compile time.
var _ Store = (*MemoryStore)(nil)
