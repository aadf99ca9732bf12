package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/m1k1o/go-portal/internal/metrics"
)

// keys of cached player records, every lookup kind has its own prefix
const (
	KeyPlayerList = "players:list"
)

func KeyPlayer(pId string) string {
	return "players:pid:" + pId
}

func KeyPlayerID(id int64) string {
	return fmt.Sprintf("players:id:%d", id)
}

type entry struct {
	value   any
	expires time.Time
}

type CacheCtx struct {
	logger zerolog.Logger
	period time.Duration

	entries   map[string]entry
	versions  map[string]uint64
	entriesMu sync.RWMutex

	group singleflight.Group

	cleanup   bool
	cleanupMu sync.Mutex
	shutdown  chan struct{}
}

func New(cleanupPeriod time.Duration) *CacheCtx {
	if cleanupPeriod == 0 {
		cleanupPeriod = 30 * time.Second
	}

	return &CacheCtx{
		logger:   log.With().Str("module", "cache").Logger(),
		period:   cleanupPeriod,
		entries:  map[string]entry{},
		versions: map[string]uint64{},
	}
}

func (c *CacheCtx) Get(key string) (any, bool) {
	c.entriesMu.RLock()
	e, ok := c.entries[key]
	c.entriesMu.RUnlock()

	if !ok || time.Now().After(e.expires) {
		return nil, false
	}

	return e.value, true
}

func (c *CacheCtx) Set(key string, value any, ttl time.Duration) {
	c.entriesMu.Lock()
	c.entries[key] = entry{value: value, expires: time.Now().Add(ttl)}
	c.entriesMu.Unlock()

	c.cleanupStart()
}

// GetOrFetch returns cached value of key or calls loader to produce it.
// Concurrent misses of the same key share a single loader call. Failed loads
// are not cached, neither are loads invalidated while they were running.
func (c *CacheCtx) GetOrFetch(key string, ttl time.Duration, loader func() (any, error)) (any, error) {
	if value, ok := c.Get(key); ok {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		c.logger.Debug().Str("key", key).Msg("cache hit")
		return value, nil
	}

	metrics.CacheRequests.WithLabelValues("miss").Inc()
	c.logger.Debug().Str("key", key).Msg("cache miss")

	value, err, shared := c.group.Do(key, func() (any, error) {
		version := c.version(key)

		value, err := loader()
		if err != nil {
			metrics.CacheRequests.WithLabelValues("error").Inc()
			return nil, err
		}

		c.entriesMu.Lock()
		if c.versions[key] == version {
			c.entries[key] = entry{value: value, expires: time.Now().Add(ttl)}
		}
		c.entriesMu.Unlock()

		c.cleanupStart()
		return value, nil
	})

	if shared {
		c.logger.Debug().Str("key", key).Msg("shared pending fetch")
	}

	return value, err
}

func (c *CacheCtx) Delete(key string) {
	c.entriesMu.Lock()
	c.invalidate(key)
	c.entriesMu.Unlock()
}

// DeleteByPattern removes every key containing pattern.
func (c *CacheCtx) DeleteByPattern(pattern string) {
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()

	for key := range c.versions {
		if strings.Contains(key, pattern) {
			c.invalidate(key)
		}
	}

	for key := range c.entries {
		if strings.Contains(key, pattern) {
			c.invalidate(key)
		}
	}
}

func (c *CacheCtx) Clear() {
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()

	for key := range c.versions {
		c.invalidate(key)
	}

	c.entries = map[string]entry{}
}

func (c *CacheCtx) Len() int {
	c.entriesMu.RLock()
	defer c.entriesMu.RUnlock()

	return len(c.entries)
}

func (c *CacheCtx) Shutdown() {
	c.cleanupStop()
	c.Clear()
}

// must be called with entriesMu held
func (c *CacheCtx) invalidate(key string) {
	delete(c.entries, key)
	c.versions[key]++
	c.group.Forget(key)
}

func (c *CacheCtx) version(key string) uint64 {
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()

	version, ok := c.versions[key]
	if !ok {
		c.versions[key] = 0
	}

	return version
}

func (c *CacheCtx) removeExpired() {
	size := 0

	c.entriesMu.Lock()
	for key, e := range c.entries {
		if time.Now().After(e.expires) {
			delete(c.entries, key)
			c.logger.Debug().Str("key", key).Msg("cache cleanup remove expired")
		} else {
			size++
		}
	}
	c.entriesMu.Unlock()

	if size == 0 {
		c.cleanupStop()
	}
}

func (c *CacheCtx) cleanupStart() {
	c.cleanupMu.Lock()
	defer c.cleanupMu.Unlock()

	// if already running
	if c.cleanup {
		return
	}

	c.shutdown = make(chan struct{})
	c.cleanup = true

	go func(shutdown chan struct{}) {
		c.logger.Debug().Msg("cleanup started")

		ticker := time.NewTicker(c.period)
		defer ticker.Stop()

		for {
			select {
			case <-shutdown:
				return
			case <-ticker.C:
				c.removeExpired()
			}
		}
	}(c.shutdown)
}

func (c *CacheCtx) cleanupStop() {
	c.cleanupMu.Lock()
	defer c.cleanupMu.Unlock()

	// if not running
	if !c.cleanup {
		return
	}

	c.cleanup = false
	close(c.shutdown)

	c.logger.Debug().Msg("cleanup stopped")
}

// Fetch is a typed GetOrFetch.
func Fetch[T any](c *CacheCtx, key string, ttl time.Duration, loader func() (T, error)) (T, error) {
	value, err := c.GetOrFetch(key, ttl, func() (any, error) {
		return loader()
	})
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cached value of %q has unexpected type %T", key, value)
	}

	return typed, nil
}
