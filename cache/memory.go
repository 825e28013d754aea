package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryCache is a process-local TTLCache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	tags    map[string]map[string]struct{}
	now     func() time.Time
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache(opts ...Option) *MemoryCache {
	o := buildOptions(opts)
	return &MemoryCache{
		entries: make(map[string]*Entry),
		tags:    make(map[string]map[string]struct{}),
		now:     o.now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.Expired(c.now()) {
		return nil, false
	}
	return append([]byte(nil), e.Value...), true
}

func (c *MemoryCache) GetStale(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), e.Value...), true
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	e, err := newEntry(key, value, ttl, c.now(), tags)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
	c.entries[key] = e
	for _, t := range e.Tags {
		set, ok := c.tags[t]
		if !ok {
			set = make(map[string]struct{})
			c.tags[t] = set
		}
		set[key] = struct{}{}
	}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
	return nil
}

func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	clear(c.tags)
	return nil
}

func (c *MemoryCache) Keys(ctx context.Context) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *MemoryCache) CleanupExpired(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if e.Expired(now) {
			c.removeLocked(k)
		}
	}
}

func (c *MemoryCache) InvalidateTags(ctx context.Context, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range tags {
		for k := range c.tags[t] {
			c.removeLocked(k)
		}
		delete(c.tags, t)
	}
	return nil
}

// removeLocked drops key and its tag memberships; c.mu must be held
func (c *MemoryCache) removeLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	for _, t := range e.Tags {
		if set, ok := c.tags[t]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(c.tags, t)
			}
		}
	}
}

var (
	_ TTLCache       = (*MemoryCache)(nil)
	_ TagInvalidator = (*MemoryCache)(nil)
)
