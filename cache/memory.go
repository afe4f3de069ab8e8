package cache

import (
	"context"
	"sync"
	"time"
)

// Memory caches results in process memory.
type Memory struct {
	items     map[string]memoryEntry
	mu        sync.RWMutex
	stopClean chan struct{}
	closeOnce sync.Once
}

type memoryEntry struct {
	Data      []byte
	ExpiresAt time.Time
}

// NewMemory creates an in-memory cache. When cleanupInterval is positive a
// goroutine sweeps expired entries at that interval until Close.
func NewMemory(cleanupInterval time.Duration) *Memory {
	m := &Memory{
		items:     make(map[string]memoryEntry),
		stopClean: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.cleanupLoop(cleanupInterval)
	}
	return m
}

func (m *Memory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopClean:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *Memory) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for k, v := range m.items {
		if !v.ExpiresAt.IsZero() && now.After(v.ExpiresAt) {
			delete(m.items, k)
		}
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, found := m.items[key]
	m.mu.RUnlock()

	if !found {
		return nil, false, nil
	}
	if !entry.ExpiresAt.IsZero() && !time.Now().Before(entry.ExpiresAt) {
		// lazy delete
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.Data, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	entry := memoryEntry{Data: append([]byte(nil), data...)}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = entry
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close stops the cleanup goroutine and drops every entry.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.stopClean)
		m.mu.Lock()
		m.items = make(map[string]memoryEntry)
		m.mu.Unlock()
	})
	return nil
}
