package speak

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vhfnav/readback/pkg/audio"
)

// Cache is a Synthesizer decorator that memoises rendered clips by voice
// and text. Readback phrases come from a small fixed vocabulary, so after a
// short warm-up almost every dispatch is served without touching the
// backend.
//
// Cached clips are shared between callers; treat the returned clip data as
// read-only.
type Cache struct {
	next  Synthesizer
	store *gocache.Cache

	hits   atomic.Int64
	misses atomic.Int64
}

var _ Synthesizer = (*Cache)(nil)

// NewCache wraps next with an in-memory clip cache. Entries expire after
// ttl; expired entries are purged every cleanupInterval. A non-positive ttl
// keeps entries forever.
func NewCache(next Synthesizer, ttl, cleanupInterval time.Duration) *Cache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Cache{
		next:  next,
		store: gocache.New(ttl, cleanupInterval),
	}
}

// Synthesize returns the cached clip for (voice, text) when present and
// delegates to the wrapped synthesizer otherwise. Errors are never cached.
func (c *Cache) Synthesize(ctx context.Context, text string, voice Voice) (audio.Clip, error) {
	key := cacheKey(voice.ID, text)
	if v, found := c.store.Get(key); found {
		c.hits.Add(1)
		return v.(audio.Clip), nil
	}
	c.misses.Add(1)

	clip, err := c.next.Synthesize(ctx, text, voice)
	if err != nil {
		return audio.Clip{}, err
	}
	c.store.Set(key, clip, gocache.DefaultExpiration)
	return clip, nil
}

// ListVoices delegates to the wrapped synthesizer.
func (c *Cache) ListVoices(ctx context.Context) ([]Voice, error) {
	return c.next.ListVoices(ctx)
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Stats returns hit, miss, and entry counts. Thread-safe.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.store.ItemCount(),
	}
}

// cacheKey joins voice ID and text with a separator neither can contain.
func cacheKey(voiceID, text string) string {
	return voiceID + "\x00" + text
}
