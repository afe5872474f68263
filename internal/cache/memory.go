package cache

import (
	"container/list"
	"sync"
	"time"
)

type memoryEntry struct {
	key      string
	value    []byte
	storedAt time.Time
}

// memoryTier is a mutex-guarded map with recency order. A limit of zero
// disables eviction.
type memoryTier struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List
	limit int
}

func newMemoryTier(limit int) *memoryTier {
	return &memoryTier{
		items: make(map[string]*list.Element),
		order: list.New(),
		limit: limit,
	}
}

func (m *memoryTier) get(key string) (memoryEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return memoryEntry{}, false
	}
	m.order.MoveToFront(el)
	return *el.Value.(*memoryEntry), true
}

func (m *memoryTier) put(key string, value []byte, storedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.storedAt = storedAt
		m.order.MoveToFront(el)
		return
	}

	m.items[key] = m.order.PushFront(&memoryEntry{key: key, value: value, storedAt: storedAt})
	for m.limit > 0 && m.order.Len() > m.limit {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*memoryEntry).key)
	}
}

func (m *memoryTier) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		m.order.Remove(el)
		delete(m.items, key)
	}
}

// deleteIfStoredAt removes key only when its entry was stored at storedAt,
// so a value rewritten since it was read survives.
func (m *memoryTier) deleteIfStoredAt(key string, storedAt time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok || !el.Value.(*memoryEntry).storedAt.Equal(storedAt) {
		return false
	}
	m.order.Remove(el)
	delete(m.items, key)
	return true
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*list.Element)
	m.order.Init()
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
