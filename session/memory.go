package session

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// EvictFunc is called with an entry that expired or was deleted.
type EvictFunc func(e Entry)

// MemoryStore is an in-memory Registry. Entries idle for longer than the
// TTL are evicted; every Get refreshes the idle timer.
type MemoryStore struct {
	c   *gocache.Cache
	ttl time.Duration
}

var _ Registry = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore. A ttl of zero or less keeps
// entries until they are deleted. onEvict may be nil.
func NewMemoryStore(ttl time.Duration, onEvict EvictFunc) *MemoryStore {
	exp, cleanup := gocache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		exp, cleanup = ttl, ttl/2
		if cleanup < time.Second {
			cleanup = time.Second
		}
	}
	c := gocache.New(exp, cleanup)
	if onEvict != nil {
		c.OnEvicted(func(_ string, v any) {
			if e, ok := v.(Entry); ok {
				onEvict(e)
			}
		})
	}
	return &MemoryStore{c: c, ttl: ttl}
}

// Get returns the entry for key and marks it as used.
func (m *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return Entry{}, notFound(key)
	}
	e := v.(Entry)
	e.UpdatedAt = time.Now().UTC()
	m.c.SetDefault(key, e)
	return e, nil
}

// Put creates or replaces an entry.
func (m *MemoryStore) Put(_ context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	m.c.SetDefault(e.Key, e)
	return nil
}

// Delete removes an entry. The eviction callback runs for it.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if _, ok := m.c.Get(key); !ok {
		return notFound(key)
	}
	m.c.Delete(key)
	return nil
}

// Keys lists unexpired keys.
func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	items := m.c.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys, nil
}

// Len returns the number of stored entries, including expired ones not yet
// cleaned up.
func (m *MemoryStore) Len() int {
	return m.c.ItemCount()
}

// Flush evicts every expired entry now.
func (m *MemoryStore) Flush() {
	m.c.DeleteExpired()
}
