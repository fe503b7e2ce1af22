package store

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	entry   *Entry
	expires time.Time
	timer   *time.Timer
}

// Memory is a process-local Backend. Each entry carries its own one-shot
// timer, and expired entries are also rejected on read.
type Memory struct {
	mu    sync.Mutex
	items map[string]*memoryItem
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty local store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]*memoryItem),
	}
}

// Kind implements Backend.
func (m *Memory) Kind() Kind {
	return KindMemory
}

// Put implements Backend. Storing over an existing key replaces it and its
// timer.
func (m *Memory) Put(_ context.Context, key string, entry *Entry, ttl time.Duration, onExpire ExpireFunc) error {
	if entry == nil {
		return ErrNilEntry
	}
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.items[key]; ok {
		old.timer.Stop()
	}
	item := &memoryItem{
		entry:   entry,
		expires: time.Now().Add(ttl),
	}
	item.timer = time.AfterFunc(ttl, func() {
		if m.remove(key, item) && onExpire != nil {
			onExpire(key)
		}
	})
	m.items[key] = item

	return nil
}

// Get implements Backend.
func (m *Memory) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !time.Now().Before(item.expires) {
		item.timer.Stop()
		delete(m.items, key)
		return nil, ErrCacheMiss
	}
	return item.entry, nil
}

// Delete implements Backend.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		if item, ok := m.items[key]; ok {
			item.timer.Stop()
			delete(m.items, key)
		}
	}
	return nil
}

// Clear implements Backend.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, item := range m.items {
		item.timer.Stop()
		delete(m.items, key)
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// remove deletes key only if it still maps to item, so a timer from a
// replaced entry never evicts its successor.
func (m *Memory) remove(key string, item *memoryItem) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.items[key]; !ok || current != item {
		return false
	}
	delete(m.items, key)
	return true
}
