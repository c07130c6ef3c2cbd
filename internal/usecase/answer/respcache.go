package answer

import (
	"container/list"
	"sync"
	"time"
)

// Default cache bounds.
const (
	DefaultCacheCapacity = 100
	DefaultCacheTTL      = time.Hour
)

// CachedAnswer is a finished answer with its source descriptors.
type CachedAnswer struct {
	Text    string
	Sources []string
}

// ResponseCache is a capacity-bounded LRU with per-entry TTL. Expiry is
// absolute from insertion time: a hot entry still dies when its TTL lapses.
// Scoped to one document session, never persisted.
type ResponseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	question string
	answer   CachedAnswer
	expires  time.Time
}

// NewResponseCache creates a cache. Non-positive capacity or ttl fall back to
// the defaults.
func NewResponseCache(capacity int, ttl time.Duration) *ResponseCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResponseCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get returns the cached answer for the question. An expired entry is removed
// and reported as a miss. A hit refreshes the entry's LRU position but not
// its expiry.
func (c *ResponseCache) Get(question string) (CachedAnswer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[question]
	if !ok {
		return CachedAnswer{}, false
	}
	entry := el.Value.(*cacheEntry)
	if !c.now().Before(entry.expires) {
		c.order.Remove(el)
		delete(c.entries, question)
		return CachedAnswer{}, false
	}
	c.order.MoveToFront(el)
	return entry.answer, true
}

// Put stores an answer, replacing any previous entry for the question and
// evicting the least recently used entry when over capacity.
func (c *ResponseCache) Put(question string, ans CachedAnswer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.entries[question]; ok {
		entry := el.Value.(*cacheEntry)
		entry.answer = ans
		entry.expires = expires
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{question: question, answer: ans, expires: expires})
	c.entries[question] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).question)
	}
}

// Len returns the number of live entries, counting expired ones not yet
// collected by Get.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
