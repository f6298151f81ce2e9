// Package cache implements the cache-aside registry decorator and the
// key/value backends it runs on.
package cache

import (
	"context"
	"sync"
	"time"
)

// Backend is the minimal key/value surface the registry cache needs.
// Get reports a missing or expired key as ok=false with a nil error.
type Backend interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

type memEntry struct {
	val     []byte
	expires time.Time // zero: never
}

// MemoryBackend is a process-local Backend. Expired entries are dropped on
// read and swept periodically on write.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memEntry
	writes  int
	now     func() time.Time
}

const sweepEvery = 256

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memEntry), now: time.Now}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	m.writes++
	if m.writes%sweepEvery == 0 {
		m.sweepLocked()
	}
	return nil
}

func (m *MemoryBackend) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if e, ok := m.entries[key]; ok {
		n = decodeInt(e.val)
	}
	n++
	m.entries[key] = memEntry{val: encodeInt(n)}
	return n, nil
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryBackend) sweepLocked() {
	now := m.now()
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}

var _ Backend = (*MemoryBackend)(nil)
