package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const defaultCleanupInterval = 30 * time.Second

// LocalCache is a process-local TTL cache. It is the L1 tier in front of
// Redis and is safe for concurrent use.
type LocalCache[V any] struct {
	entries    sync.Map // map[string]*cacheEntry[V]
	size       int64
	maxEntries int64
	ttl        time.Duration
	logger     *zap.Logger
	stopCh     chan struct{}
	stopped    int32

	hits   int64
	misses int64
}

// cacheEntry wraps a cached value with expiration time
type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *cacheEntry[V]) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// NewLocalCache creates a LocalCache and starts its cleanup goroutine.
// maxEntries <= 0 means unbounded. Call Close to stop the goroutine.
func NewLocalCache[V any](ttl time.Duration, maxEntries int, logger *zap.Logger) *LocalCache[V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &LocalCache[V]{
		ttl:        ttl,
		maxEntries: int64(maxEntries),
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
	go c.cleanupExpired()
	return c
}

// Get returns the cached value and whether it was present and fresh.
func (c *LocalCache[V]) Get(key string) (V, bool) {
	var zero V
	value, ok := c.entries.Load(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return zero, false
	}
	entry := value.(*cacheEntry[V])
	if entry.isExpired(time.Now()) {
		c.remove(key)
		atomic.AddInt64(&c.misses, 1)
		return zero, false
	}
	atomic.AddInt64(&c.hits, 1)
	return entry.value, true
}

// Set stores value under key. When the cache is full and nothing has
// expired the value is not cached.
func (c *LocalCache[V]) Set(key string, value V) {
	entry := &cacheEntry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
	if _, loaded := c.entries.Swap(key, entry); loaded {
		return
	}
	if n := atomic.AddInt64(&c.size, 1); c.maxEntries > 0 && n > c.maxEntries {
		c.doCleanup()
		if atomic.LoadInt64(&c.size) > c.maxEntries {
			c.remove(key)
			c.logger.Debug("L1 cache full, entry not cached", zap.String("key", key))
		}
	}
}

// Delete removes key.
func (c *LocalCache[V]) Delete(key string) {
	c.remove(key)
}

// Clear removes every entry.
func (c *LocalCache[V]) Clear() {
	c.entries.Range(func(key, _ any) bool {
		c.remove(key.(string))
		return true
	})
}

// Len returns the number of stored entries, expired ones included.
func (c *LocalCache[V]) Len() int {
	return int(atomic.LoadInt64(&c.size))
}

// Stats returns hit and miss counters.
func (c *LocalCache[V]) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close stops the cleanup goroutine.
func (c *LocalCache[V]) Close() {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
}

func (c *LocalCache[V]) remove(key string) {
	if _, loaded := c.entries.LoadAndDelete(key); loaded {
		atomic.AddInt64(&c.size, -1)
	}
}

// cleanupExpired periodically removes expired entries
func (c *LocalCache[V]) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						c.logger.Error("Panic in cache cleanup", zap.Any("panic", r))
					}
				}()
				c.doCleanup()
			}()
		}
	}
}

func (c *LocalCache[V]) doCleanup() {
	now := time.Now()
	removed := 0
	c.entries.Range(func(key, value any) bool {
		if value.(*cacheEntry[V]).isExpired(now) {
			c.remove(key.(string))
			removed++
		}
		return true
	})
	if removed > 0 {
		c.logger.Debug("Cleaned up expired L1 cache entries", zap.Int("removed", removed))
	}
}
