package cache

import (
	"context"
	"sync"
)

// Store persists cache entries by digest. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the entry for key, or ok=false if there is none.
	Get(ctx context.Context, key string) (entry *Entry, ok bool, err error)
	// Put stores e under e.Key, replacing any previous entry.
	Put(ctx context.Context, e *Entry) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Scan calls fn for every entry until fn returns false.
	Scan(ctx context.Context, fn func(*Entry) bool) error
}

// MemoryStore keeps entries in process memory. Values are held as-is, so
// their Go types survive a round trip.
type MemoryStore struct {
	entries sync.Map // digest -> *Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	v, ok := m.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	return v.(*Entry), true, nil
}

func (m *MemoryStore) Put(_ context.Context, e *Entry) error {
	m.entries.Store(e.Key, e)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}

func (m *MemoryStore) Scan(ctx context.Context, fn func(*Entry) bool) error {
	m.entries.Range(func(_, v any) bool {
		if ctx.Err() != nil {
			return false
		}
		return fn(v.(*Entry))
	})
	return ctx.Err()
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
