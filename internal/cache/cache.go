// Package cache provides a small TTL-bounded, size-bounded in-memory result
// cache. Identical requests within the TTL window are served without another
// model invocation.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Key derives the canonical cache key for a dream/mode pair. Leading and
// trailing whitespace and letter case do not affect the key.
func Key(dream, mode string) string {
	content := strings.ToLower(strings.TrimSpace(dream)) + ":" + mode
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a TTL cache with a hard size bound. When full, the least recently
// used live entry is evicted. Safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	order   *list.List // front = most recently used
	items   map[string]*list.Element
	now     func() time.Time
}

func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		maxSize: maxSize,
		order:   list.New(),
		items:   make(map[string]*list.Element),
		now:     time.Now,
	}
}

// Get returns the live value for key. Expired entries are removed on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	ent := el.Value.(*entry[V])
	if c.now().After(ent.expiresAt) {
		c.remove(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return ent.value, true
}

// Set stores value under key, evicting the least recently used entry if the
// cache is at capacity.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	for c.maxSize > 0 && c.order.Len() >= c.maxSize {
		c.remove(c.order.Back())
	}
	el := c.order.PushFront(&entry[V]{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
	c.items[key] = el
}

// Len reports the number of stored entries, including not-yet-collected
// expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache[V]) remove(el *list.Element) {
	if el == nil {
		return
	}
	ent := el.Value.(*entry[V])
	delete(c.items, ent.key)
	c.order.Remove(el)
}
