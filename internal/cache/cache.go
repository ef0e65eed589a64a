// Package cache is a two-tier cache: L1 in memory, L2 in Redis. L1 is lost
// on restart; L2 survives it and is shared between instances.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL             = 6 * time.Hour
	DefaultMaxEntries      = 512
	DefaultCleanupInterval = 10 * time.Minute
)

// Options configures a Cache. An empty RedisURL disables L2.
type Options struct {
	RedisURL        string
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Cache stores JSON-encoded values. A nil *Cache is valid and always misses.
type Cache struct {
	l1         sync.Map // key -> *entry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int

	hits   atomic.Int64
	misses atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds the cache and starts the L1 cleanup loop. Redis problems only
// disable L2.
func New(ctx context.Context, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}

	c := &Cache{ttl: opts.TTL, maxEntries: opts.MaxEntries, stop: make(chan struct{})}

	if opts.RedisURL != "" {
		ropts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			slog.Warn("invalid redis URL, L2 disabled", slog.String("component", "cache"), slog.Any("err", err))
		} else {
			rdb := redis.NewClient(ropts)
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				slog.Warn("redis unreachable, L2 disabled", slog.String("component", "cache"), slog.Any("err", err))
				rdb.Close()
			} else {
				c.rdb = rdb
				slog.Info("L2 redis connected", slog.String("component", "cache"), slog.String("addr", ropts.Addr))
			}
		}
	}

	slog.Info("cache initialized", slog.String("component", "cache"),
		slog.Duration("ttl", c.ttl), slog.Bool("redis", c.rdb != nil), slog.Int("max_entries", c.maxEntries))

	go c.cleanupLoop(opts.CleanupInterval)
	return c
}

// Key builds a deterministic cache key from parts.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("yts:%x", hash[:12])
}

// Get decodes the cached value for key into dst. It tries L1, then L2, and
// populates L1 on an L2 hit.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}

	if val, ok := c.l1.Load(key); ok {
		e := val.(*entry)
		if time.Now().Before(e.expiresAt) && json.Unmarshal(e.data, dst) == nil {
			slog.Debug("L1 hit", slog.String("component", "cache"), slog.String("key", key))
			c.hits.Add(1)
			return true
		}
		c.l1.Delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil && json.Unmarshal(data, dst) == nil {
			slog.Debug("L2 hit", slog.String("component", "cache"), slog.String("key", key))
			c.hits.Add(1)
			c.store(key, data)
			return true
		}
		if err != nil && err != redis.Nil {
			slog.Debug("L2 get failed", slog.String("component", "cache"), slog.Any("err", err))
		}
	}

	c.misses.Add(1)
	return false
}

// Set stores value in both tiers.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cannot encode cache value", slog.String("component", "cache"), slog.Any("err", err))
		return
	}

	c.store(key, data)

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Debug("L2 set failed", slog.String("component", "cache"), slog.Any("err", err))
		}
	}
}

// Delete removes key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	c.l1.Delete(key)
	if c.rdb != nil {
		c.rdb.Del(ctx, key)
	}
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// Redis reports whether L2 is active.
func (c *Cache) Redis() bool {
	return c != nil && c.rdb != nil
}

// Close stops the cleanup loop and closes the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	c.stopOnce.Do(func() { close(c.stop) })
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

func (c *Cache) store(key string, data []byte) {
	c.evictIfNeeded()
	c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(c.ttl)})
}

func (c *Cache) len() int {
	n := 0
	c.l1.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// evictIfNeeded drops expired entries, then the oldest ones, until L1 has
// room for one more.
func (c *Cache) evictIfNeeded() {
	count := c.len()
	if count < c.maxEntries {
		return
	}

	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if e := val.(*entry); now.After(e.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return true
	})

	for count >= c.maxEntries {
		var oldestKey any
		var oldestAt time.Time
		c.l1.Range(func(key, val any) bool {
			e := val.(*entry)
			// earlier expiry means older entry: expiry is insert time + ttl
			if oldestKey == nil || e.expiresAt.Before(oldestAt) {
				oldestKey, oldestAt = key, e.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			return
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.l1.Range(func(key, val any) bool {
				if now.After(val.(*entry).expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}
