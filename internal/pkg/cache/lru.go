// Package cache provides a bounded in-process LRU cache with per-entry TTL.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// LRU is a thread-safe least-recently-used cache whose entries also expire.
// Capacity eviction and TTL expiry are independent.
type LRU[V any] struct {
	capacity int
	clock    clockwork.Clock

	mu      sync.Mutex
	entries map[string]*entry[V]
	head    *entry[V] // most recently used
	tail    *entry[V] // least recently used
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	prev      *entry[V]
	next      *entry[V]
}

// New creates a cache holding at most capacity entries.
// A nil clock uses the real clock.
func New[V any](capacity int, clock clockwork.Clock) *LRU[V] {
	if capacity <= 0 {
		capacity = 500
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LRU[V]{
		capacity: capacity,
		clock:    clock,
		entries:  make(map[string]*entry[V]),
	}
}

// Get returns the live value for key and marks it most recently used.
// An expired entry is evicted and reported as a miss.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.clock.Now().After(e.expiresAt) {
		c.unlink(e)
		delete(c.entries, key)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Set stores value under key for ttl. An existing key is replaced and
// becomes most recently used.
func (c *LRU[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.unlink(e)
		delete(c.entries, key)
	}

	e := &entry[V]{key: key, value: value, expiresAt: c.clock.Now().Add(ttl)}
	c.entries[key] = e
	c.addToFront(e)

	for len(c.entries) > c.capacity {
		c.evictTail()
	}
}

// Delete removes key if present.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.unlink(e)
		delete(c.entries, key)
	}
}

// Len returns the number of stored entries, expired ones included until touched.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the configured maximum.
func (c *LRU[V]) Capacity() int { return c.capacity }

func (c *LRU[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *LRU[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRU[V]) unlink(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *LRU[V]) evictTail() {
	if c.tail == nil {
		return
	}
	t := c.tail
	c.unlink(t)
	delete(c.entries, t.key)
}

// Key builds a deterministic cache key. Strings are lowercased with
// whitespace collapsed, floats are fixed to 5 decimals and nil pointers
// become "-", so equivalent requests share a slot.
func Key(kind string, parts ...any) string {
	var b strings.Builder
	b.WriteString(kind)
	for _, p := range parts {
		b.WriteByte('|')
		switch v := p.(type) {
		case string:
			b.WriteString(strings.Join(strings.Fields(strings.ToLower(v)), " "))
		case float64:
			fmt.Fprintf(&b, "%.5f", v)
		case *float64:
			if v == nil {
				b.WriteByte('-')
			} else {
				fmt.Fprintf(&b, "%.5f", *v)
			}
		case nil:
			b.WriteByte('-')
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}
