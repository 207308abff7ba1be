package cache

import (
	"bytes"
	"context"
	"time"

	aicache "github.com/hrygo/eventsense/plugin/ai/cache"
)

// MemoryTier is the in-process L1 tier.
type MemoryTier struct {
	lru     *aicache.LRU[[]byte]
	sweeper *aicache.Sweeper
}

// NewMemoryTier creates an LRU tier holding at most capacity entries.
func NewMemoryTier(capacity int, ttl time.Duration) *MemoryTier {
	lru := aicache.New(aicache.Options[[]byte]{
		Capacity: capacity,
		TTL:      ttl,
		Clone:    bytes.Clone,
	})
	return &MemoryTier{lru: lru, sweeper: aicache.StartSweeper(lru, time.Minute)}
}

func (m *MemoryTier) Name() string { return "memory" }

func (m *MemoryTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemoryTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.lru.Set(key, value, ttl)
	return nil
}

func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.lru.Delete(key)
	return nil
}

// Size returns the number of cached entries.
func (m *MemoryTier) Size() int {
	return m.lru.Len()
}

func (m *MemoryTier) Close() error {
	m.sweeper.Stop()
	return nil
}
