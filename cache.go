package termpix

import "sync"

// DefaultCacheCapacity bounds the frame cache when no capacity is configured.
const DefaultCacheCapacity = 64

// CacheKey identifies one encoded payload: the same image at a different
// target area or protocol is a different entry.
type CacheKey struct {
	ID       string
	Cols     int
	Rows     int
	Protocol Protocol
}

type cacheEntry struct {
	frame      *EncodedFrame
	generation uint64
	lastAccess uint64 // logical frame counter, not wall clock
}

// FrameCache memoizes encoded frames. It is the single structure shared
// between the render loop and the encode workers, so every method holds the
// lock only for the map operation itself.
//
// Publishes are ordered by generation, not call order: a slow worker that
// finishes after a newer job cannot clobber the newer result.
type FrameCache struct {
	mu       sync.Mutex
	capacity int
	frame    uint64 // logical frame counter, bumped per lookup
	entries  map[CacheKey]*cacheEntry
	// Highest generation published (or superseded) per content identity.
	gens map[string]uint64
}

// NewFrameCache creates a cache holding at most capacity entries.
func NewFrameCache(capacity int) *FrameCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &FrameCache{
		capacity: capacity,
		entries:  make(map[CacheKey]*cacheEntry),
		gens:     make(map[string]uint64),
	}
}

// Get returns the cached frame for the key, marking it as recently used.
func (c *FrameCache) Get(key CacheKey) (*EncodedFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frame++
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry.lastAccess = c.frame
	return entry.frame, true
}

// Latest returns the newest-generation frame cached for a content identity
// regardless of area or protocol. The render bridge uses it for the
// "reuse previous frame" path.
func (c *FrameCache) Latest(id string) (*EncodedFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *cacheEntry
	for key, entry := range c.entries {
		if key.ID != id {
			continue
		}
		if best == nil || entry.generation > best.generation {
			best = entry
		}
	}
	if best == nil {
		return nil, false
	}
	c.frame++
	best.lastAccess = c.frame
	return best.frame, true
}

// Match returns a cached frame for the identity and protocol whose
// represented pixel area is accepted by the ok callback. Used for the resize
// tolerance check.
func (c *FrameCache) Match(id string, p Protocol, ok func(*EncodedFrame) bool) (*EncodedFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if key.ID != id || key.Protocol != p {
			continue
		}
		if ok(entry.frame) {
			c.frame++
			entry.lastAccess = c.frame
			return entry.frame, true
		}
	}
	return nil, false
}

// Publish stores a completed frame. A publish older than the highest
// generation already seen for the same content identity is discarded, which
// tolerates out-of-order completion of background jobs. Returns whether the
// frame was stored.
func (c *FrameCache) Publish(key CacheKey, generation uint64, frame *EncodedFrame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation < c.gens[key.ID] {
		return false
	}
	c.gens[key.ID] = generation

	c.frame++
	c.entries[key] = &cacheEntry{
		frame:      frame,
		generation: generation,
		lastAccess: c.frame,
	}
	c.evictLocked()
	return true
}

// Invalidate drops every entry for a content identity. Callers use it when
// the underlying image bytes change under a stable identity.
func (c *FrameCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if key.ID == id {
			delete(c.entries, key)
		}
	}
	delete(c.gens, id)
}

// Len returns the number of cached entries.
func (c *FrameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked removes least-recently-used entries until the cache fits its
// capacity. Caller holds the lock.
func (c *FrameCache) evictLocked() {
	for len(c.entries) > c.capacity {
		var lruKey CacheKey
		var lruAccess uint64
		first := true
		for key, entry := range c.entries {
			if first || entry.lastAccess < lruAccess {
				lruKey = key
				lruAccess = entry.lastAccess
				first = false
			}
		}
		delete(c.entries, lruKey)
		c.dropGenLocked(lruKey.ID)
	}
}

// dropGenLocked forgets an identity's generation watermark once no entries
// remain for it, so the map does not grow with every identity ever cached.
// Caller holds the lock.
func (c *FrameCache) dropGenLocked(id string) {
	for key := range c.entries {
		if key.ID == id {
			return
		}
	}
	delete(c.gens, id)
}
