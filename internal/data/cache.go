package data

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"
)

// CacheEntry is a cached bars payload.
type CacheEntry struct {
	Response  *BarsResponse
	ExpiresAt time.Time
}

// ResponseCache is an in-memory TTL cache for bars API responses.
// It is meant for local development, where the same history is requested
// repeatedly; it is never enabled when API_ENV=production.
type ResponseCache struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
	ttl   time.Duration
	now   func() time.Time
}

var (
	globalCache *ResponseCache
	cacheOnce   sync.Once
)

func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		store: make(map[string]*CacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// GetCache returns the process-wide cache when ENABLE_BARS_CACHE=true and
// API_ENV is not production; otherwise nil. BARS_CACHE_TTL overrides the
// one hour default.
func GetCache() *ResponseCache {
	if os.Getenv("ENABLE_BARS_CACHE") != "true" {
		return nil
	}
	if os.Getenv("API_ENV") == "production" {
		return nil
	}

	cacheOnce.Do(func() {
		ttl := time.Hour
		if s := os.Getenv("BARS_CACHE_TTL"); s != "" {
			if parsed, err := time.ParseDuration(s); err == nil {
				ttl = parsed
			}
		}
		globalCache = NewResponseCache(ttl)
		go globalCache.cleanup(5 * time.Minute)
	})
	return globalCache
}

// Get returns a live entry for key.
func (c *ResponseCache) Get(key string) (*BarsResponse, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[key]
	if !ok || c.now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Response, true
}

func (c *ResponseCache) Set(key string, resp *BarsResponse) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = &CacheEntry{Response: resp, ExpiresAt: c.now().Add(c.ttl)}
}

func (c *ResponseCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*CacheEntry)
}

// Prune drops expired entries and returns how many were removed.
func (c *ResponseCache) Prune() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	now := c.now()
	for k, e := range c.store {
		if now.After(e.ExpiresAt) {
			delete(c.store, k)
			n++
		}
	}
	return n
}

func (c *ResponseCache) cleanup(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for range t.C {
		c.Prune()
	}
}

// CacheKey derives a stable key from a bars query.
func CacheKey(q BarsQuery) string {
	raw := fmt.Sprintf("%s:%s:%s", q.Ticker, fmtDay(q.Start), fmtDay(q.End))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func fmtDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
