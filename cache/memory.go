package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry holds a cached value with its expiry.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is an in-process Backend. It is safe for concurrent use.
type MemoryBackend struct {
	mu         sync.RWMutex
	store      map[string]*memoryEntry
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryBackend creates a MemoryBackend holding at most maxEntries keys.
// A background goroutine evicts expired entries every sweep interval until
// Close is called.
func NewMemoryBackend(maxEntries int, sweep time.Duration) *MemoryBackend {
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}
	m := &MemoryBackend{
		store:      make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
	}

	go m.cleanupLoop(sweep)
	return m
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Ping(context.Context) error { return nil }

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()

	if !ok || !time.Now().Before(e.expiresAt) {
		return nil, ErrMiss
	}
	return e.value, nil
}

// Set stores value. If the backend is at capacity, a random entry is
// evicted to make room.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; !exists && m.maxEntries > 0 && len(m.store) >= m.maxEntries {
		// Map iteration order is random.
		for k := range m.store {
			delete(m.store, k)
			break
		}
	}

	m.store[key] = &memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.store[key]
	delete(m.store, key)
	return ok, nil
}

// Len returns the number of stored keys, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// Close stops the cleanup goroutine.
func (m *MemoryBackend) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryBackend) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryBackend) sweep() {
	now := time.Now()
	m.mu.Lock()
	for k, e := range m.store {
		if !now.Before(e.expiresAt) {
			delete(m.store, k)
		}
	}
	m.mu.Unlock()
}
