package journal

import (
	"sync"
)

// MemoryStore is an in-memory journal for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]Record
	closed bool
}

// NewMemoryStore creates a new in-memory journal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]Record),
	}
}

// Append implements Store.
func (m *MemoryStore) Append(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	// Copy payload to avoid retaining caller's slice
	stored := rec
	if rec.Data != nil {
		stored.Data = make([]byte, len(rec.Data))
		copy(stored.Data, rec.Data)
	}

	m.data[rec.Channel] = append(m.data[rec.Channel], stored)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(channel string, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	recs := m.data[channel]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}

	out := make([]Record, len(recs))
	copy(out, recs)
	return out, nil
}

// Channels implements Store.
func (m *MemoryStore) Channels() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	channels := make([]string, 0, len(m.data))
	for ch := range m.data {
		channels = append(channels, ch)
	}
	return channels, nil
}

// DeleteChannel implements Store.
func (m *MemoryStore) DeleteChannel(channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, channel)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the total number of records across all channels.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, recs := range m.data {
		count += len(recs)
	}
	return count
}
