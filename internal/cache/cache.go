package cache

import (
	"context"
	"sync"
	"time"

	"mobilehouse/backend/internal/domain"
)

// DashboardCache stores computed dashboard views. Invalidate drops every
// entry at once by bumping a generation counter. Set stores a value only
// under the generation read before the value was computed, so a view built
// from a snapshot older than the last Invalidate is never served.
type DashboardCache interface {
	Get(ctx context.Context, key string) (*domain.DashboardView, bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, key string, generation int64, value *domain.DashboardView, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string) (*domain.DashboardView, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Generation(_ context.Context) (int64, error) {
	return 0, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ int64, _ *domain.DashboardView, _ time.Duration) error {
	return nil
}

func (NoopDashboardCache) Invalidate(_ context.Context) error {
	return nil
}

type memoryEntry struct {
	value      domain.DashboardView
	generation int64
	expiresAt  time.Time
}

// MemoryDashboardCache is a process-local cache for single-instance
// deployments.
type MemoryDashboardCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	generation int64
	now        func() time.Time
}

func NewMemoryDashboardCache() *MemoryDashboardCache {
	return &MemoryDashboardCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryDashboardCache) Get(_ context.Context, key string) (*domain.DashboardView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.generation != c.generation {
		delete(c.entries, key)
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	value := entry.value
	return &value, true, nil
}

func (c *MemoryDashboardCache) Generation(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

// Set drops the value when the cache was invalidated after generation was
// read.
func (c *MemoryDashboardCache) Set(_ context.Context, key string, generation int64, value *domain.DashboardView, ttl time.Duration) error {
	if value == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return nil
	}
	entry := memoryEntry{value: *value, generation: generation}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryDashboardCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return nil
}
