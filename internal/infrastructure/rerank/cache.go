package rerank

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// keyPrefixLen bounds how much of the joined document text feeds the
// cache key. Enough to tell result sets apart without hashing megabytes.
const keyPrefixLen = 512

// scoreCache is a bounded cache of per-document rerank scores keyed by
// (query, documents) identity. Eviction is least-recently-used by last
// access, triggered lazily no more often than cleanupEvery so the hot
// path stays a map lookup. All access goes through one mutex: the
// read-check-write-evict sequence must not interleave.
type scoreCache struct {
	mu           sync.Mutex
	entries      map[string]*cacheEntry
	capacity     int
	cleanupEvery time.Duration
	lastCleanup  time.Time
	now          func() time.Time
}

type cacheEntry struct {
	scores       []float64
	lastAccessed time.Time
}

func newScoreCache(capacity int, cleanupEvery time.Duration) *scoreCache {
	if capacity <= 0 {
		capacity = 2000
	}
	if cleanupEvery <= 0 {
		cleanupEvery = 5 * time.Minute
	}
	return &scoreCache{
		entries:      make(map[string]*cacheEntry),
		capacity:     capacity,
		cleanupEvery: cleanupEvery,
		now:          time.Now,
	}
}

func cacheKey(query string, documents []string) string {
	joined := strings.Join(documents, "\n")
	if len(joined) > keyPrefixLen {
		joined = joined[:keyPrefixLen]
	}
	sum := sha256.Sum256([]byte(query + "\x00" + joined))
	return hex.EncodeToString(sum[:])
}

func (c *scoreCache) Get(key string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry.lastAccessed = c.now()

	scores := make([]float64, len(entry.scores))
	copy(scores, entry.scores)
	return scores, true
}

func (c *scoreCache) Put(key string, scores []float64) {
	stored := make([]float64, len(scores))
	copy(stored, scores)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		scores:       stored,
		lastAccessed: c.now(),
	}
	c.maybeCleanupLocked()
}

func (c *scoreCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// maybeCleanupLocked drops the least-recently-used entries beyond
// capacity, at most once per cleanup interval. Caller holds the mutex.
func (c *scoreCache) maybeCleanupLocked() {
	now := c.now()
	if now.Sub(c.lastCleanup) < c.cleanupEvery {
		return
	}
	c.lastCleanup = now

	if len(c.entries) <= c.capacity {
		return
	}

	type keyed struct {
		key          string
		lastAccessed time.Time
	}
	all := make([]keyed, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, keyed{key: key, lastAccessed: entry.lastAccessed})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].lastAccessed.After(all[j].lastAccessed)
	})
	for _, victim := range all[c.capacity:] {
		delete(c.entries, victim.key)
	}
}
