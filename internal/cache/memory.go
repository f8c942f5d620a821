package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a process-local cache. Entries are never evicted; they leave
// only through Remove once flushed.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	entry     *Entry
	updatedAt time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Retrieve(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return e.entry.Clone(), nil
}

func (m *Memory) Store(_ context.Context, key string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{entry: entry.Clone(), updatedAt: time.Now()}
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Keys(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	type pending struct {
		key string
		at  time.Time
	}
	all := make([]pending, 0, len(m.entries))
	for k, e := range m.entries {
		all = append(all, pending{k, e.updatedAt})
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].at.Equal(all[j].at) {
			return all[i].at.Before(all[j].at)
		}
		return all[i].key < all[j].key
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	keys := make([]string, len(all))
	for i, p := range all {
		keys[i] = p.key
	}
	return keys, nil
}

// Len reports the number of pending entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
