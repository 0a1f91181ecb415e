package cache

import (
	"log/slog"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe map whose entries expire after a fixed TTL.
// A janitor goroutine removes expired entries every cleanup interval until Stop.
type TTLCache[V any] struct {
	name          string
	items         map[string]*entry[V]
	mutex         sync.RWMutex
	ttl           time.Duration
	now           func() time.Time
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// Stats is a snapshot of a cache
type Stats struct {
	Name           string `json:"name"`
	TotalEntries   int    `json:"total_entries"`
	ActiveEntries  int    `json:"active_entries"`
	ExpiredEntries int    `json:"expired_entries"`
	TTL            string `json:"ttl_duration"`
}

// NewTTLCache creates a cache and starts its janitor
func NewTTLCache[V any](name string, ttl, cleanupInterval time.Duration) *TTLCache[V] {
	c := &TTLCache[V]{
		name:        name,
		items:       make(map[string]*entry[V]),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	c.cleanupTicker = time.NewTicker(cleanupInterval)
	go c.cleanupExpiredEntries()

	slog.Info("TTL cache initialized",
		"cache", name,
		"ttl", ttl.String(),
		"cleanup_interval", cleanupInterval.String())

	return c
}

// Set stores a value, replacing any previous one and restarting its TTL
func (c *TTLCache[V]) Set(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Get returns the value for key if present and not expired
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.items[key]
	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Touch returns the value for key and extends its expiration (sliding TTL)
func (c *TTLCache[V]) Touch(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	e, ok := c.items[key]
	if !ok || now.After(e.expiresAt) {
		var zero V
		return zero, false
	}
	e.expiresAt = now.Add(c.ttl)
	return e.value, true
}

// GetOrCreate returns the live value for key or stores the one built by create.
// create runs under the cache lock and must not call back into the cache.
func (c *TTLCache[V]) GetOrCreate(key string, create func() V) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	if e, ok := c.items[key]; ok && !now.After(e.expiresAt) {
		e.expiresAt = now.Add(c.ttl)
		return e.value, false
	}

	value := create()
	c.items[key] = &entry[V]{value: value, expiresAt: now.Add(c.ttl)}
	return value, true
}

// Delete removes a key
func (c *TTLCache[V]) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}

// ActiveSize returns the number of non-expired entries
func (c *TTLCache[V]) ActiveSize() int {
	return c.Stats().ActiveEntries
}

// Stop stops the janitor. Safe to call more than once.
func (c *TTLCache[V]) Stop() {
	c.stopOnce.Do(func() {
		c.cleanupTicker.Stop()
		close(c.stopCleanup)
		slog.Info("TTL cache stopped", "cache", c.name)
	})
}

// Stats returns a snapshot of the cache
func (c *TTLCache[V]) Stats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := c.now()
	stats := Stats{Name: c.name, TotalEntries: len(c.items), TTL: c.ttl.String()}
	for _, e := range c.items {
		if now.After(e.expiresAt) {
			stats.ExpiredEntries++
		} else {
			stats.ActiveEntries++
		}
	}
	return stats
}

func (c *TTLCache[V]) cleanupExpiredEntries() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.performCleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *TTLCache[V]) performCleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	expired := 0
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
			expired++
		}
	}

	if expired > 0 {
		slog.Debug("Cache cleanup completed",
			"cache", c.name,
			"expired_entries", expired,
			"remaining_entries", len(c.items))
	}
}
