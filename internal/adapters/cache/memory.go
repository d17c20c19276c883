package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/okian/bookmatch/internal/domain/model"
)

const defaultMaxEntries = 10000

// Option configures a Memory cache.
type Option func(*Memory)

// WithMaxEntries bounds the cache. Values <= 0 mean unbounded.
func WithMaxEntries(n int) Option {
	return func(m *Memory) {
		m.maxEntries = n
	}
}

type entryKey struct {
	userID     string
	idType     model.IdentifierType
	identifier string
}

type memoryEntry struct {
	key   entryKey
	value model.CacheEntry
}

// Memory is a bounded in-process cache. When full, the oldest written
// entry is evicted. It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	entries    map[entryKey]*list.Element
	order      *list.List
	maxEntries int
}

// NewMemory creates an in-memory cache.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		entries:    make(map[entryKey]*list.Element),
		order:      list.New(),
		maxEntries: defaultMaxEntries,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetCachedBookInfo returns the entry for identifier or Exists=false.
func (m *Memory) GetCachedBookInfo(_ context.Context, userID, identifier, _ string, idType model.IdentifierType) (model.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	el, ok := m.entries[entryKey{userID: userID, idType: idType, identifier: identifier}]
	if !ok {
		return model.CacheEntry{}, nil
	}
	return el.Value.(*memoryEntry).value, nil
}

// StoreEditionMapping inserts or replaces the mapping for entry.Identifier.
func (m *Memory) StoreEditionMapping(_ context.Context, userID string, entry model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.Exists = true
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	key := entryKey{userID: userID, idType: entry.IdentifierType, identifier: entry.Identifier}
	if el, ok := m.entries[key]; ok {
		el.Value.(*memoryEntry).value = entry
		m.order.MoveToFront(el)
		return nil
	}
	if m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictOldest()
	}
	m.entries[key] = m.order.PushFront(&memoryEntry{key: key, value: entry})
	return nil
}

// GenerateTitleAuthorIdentifier derives the title/author key.
func (m *Memory) GenerateTitleAuthorIdentifier(title, author string) string {
	return GenerateTitleAuthorIdentifier(title, author)
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// evictOldest must be called with m.mu held.
func (m *Memory) evictOldest() {
	el := m.order.Back()
	if el == nil {
		return
	}
	m.order.Remove(el)
	delete(m.entries, el.Value.(*memoryEntry).key)
}
