package cache

import (
	"sync"
	"time"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Value      interface{}
	Expiration time.Time
}

// IsExpired checks if the cache entry has expired
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expiration)
}

// MemoryCache implements a simple in-memory TTL cache
type MemoryCache struct {
	items     map[string]*CacheEntry
	mutex     sync.RWMutex
	ttl       time.Duration
	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache creates a new memory cache that sweeps expired entries every
// sweepInterval until Close is called.
func NewMemoryCache(ttl, sweepInterval time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]*CacheEntry),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}

	go cache.cleanupExpired(sweepInterval)

	return cache
}

// Set stores a value in the cache
func (c *MemoryCache) Set(key string, value interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheEntry{
		Value:      value,
		Expiration: time.Now().Add(c.ttl),
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists || entry.IsExpired() {
		return nil, false
	}

	return entry.Value, true
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}

// Size returns the number of items in the cache, expired ones included
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.items)
}

// Close stops the sweeper goroutine
func (c *MemoryCache) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, entry := range c.items {
		if entry.IsExpired() {
			delete(c.items, key)
		}
	}
}

// Artwork is a decoded-on-demand cover image
type Artwork struct {
	Data     []byte
	MimeType string
}

// ArtworkCache keeps recently shown cover images keyed by media id
type ArtworkCache struct {
	*MemoryCache
}

// NewArtworkCache creates an artwork cache; notifications refresh every
// second while playing, so entries live long enough to cover a track.
func NewArtworkCache() *ArtworkCache {
	return &ArtworkCache{
		MemoryCache: NewMemoryCache(15*time.Minute, 5*time.Minute),
	}
}

// SetArtwork caches a cover image
func (ac *ArtworkCache) SetArtwork(mediaID string, art Artwork) {
	ac.Set(mediaID, art)
}

// GetArtwork retrieves a cached cover image
func (ac *ArtworkCache) GetArtwork(mediaID string) (Artwork, bool) {
	value, exists := ac.Get(mediaID)
	if !exists {
		return Artwork{}, false
	}

	art, ok := value.(Artwork)
	return art, ok
}
