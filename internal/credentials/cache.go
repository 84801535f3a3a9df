package credentials

import (
	"sync"
	"time"
)

type cacheEntry struct {
	creds     Credentials
	expiresAt time.Time
}

// tokenCache holds acquired tokens per jurisdiction with expiry-based
// invalidation. Safe for concurrent use by message workers.
type tokenCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newTokenCache(ttl time.Duration) *tokenCache {
	return &tokenCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *tokenCache) get(key string) (Credentials, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return Credentials{}, false
	}
	return entry.creds, true
}

func (c *tokenCache) put(key string, creds Credentials) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{
		creds:     creds,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *tokenCache) remove(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
