// Package cache holds short-lived values in memory with size and age limits.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRU evicts the least recently used entry past maxSize and drops entries
// that have not been touched for ttl. Reads and writes both refresh an entry.
type LRU[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
	now     func() time.Time
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// NewLRU creates an LRU holding at most maxSize entries for ttl each
func NewLRU[T any](maxSize int, ttl time.Duration) *LRU[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRU[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the value for key and refreshes its expiry
func (c *LRU[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.lookup(key)
	if !ok {
		return zero, false
	}
	return e.value, true
}

// Take removes and returns the value for key. Of several concurrent callers only one gets it.
func (c *LRU[T]) Take(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[T])
	c.remove(elem)
	if c.now().After(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, evicting the oldest entry when full
func (c *LRU[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[T])
		e.value = value
		e.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&entry[T]{key: key, value: value, expiresAt: c.now().Add(c.ttl)})

	if c.order.Len() > c.maxSize {
		c.remove(c.order.Back())
	}
}

// Update applies fn to the stored value under the cache lock and stores the result.
// It returns false when key is absent or expired; an error from fn leaves the entry as it was.
func (c *LRU[T]) Update(key string, fn func(T) (T, error)) (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.lookup(key)
	if !ok {
		return zero, false, nil
	}

	next, err := fn(e.value)
	if err != nil {
		return e.value, true, err
	}
	e.value = next
	return next, true, nil
}

// Delete removes key if present
func (c *LRU[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// CleanExpired removes every expired entry and returns how many went
func (c *LRU[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[T]).expiresAt) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Len returns the number of entries, expired ones included until cleaned
func (c *LRU[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Janitor calls CleanExpired every interval until ctx is done
func (c *LRU[T]) Janitor(ctx context.Context, interval time.Duration, onClean func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.CleanExpired(); n > 0 && onClean != nil {
				onClean(n)
			}
		}
	}
}

// lookup finds a live entry, refreshing it; callers hold c.mu
func (c *LRU[T]) lookup(key string) (*entry[T], bool) {
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	e := elem.Value.(*entry[T])
	now := c.now()
	if now.After(e.expiresAt) {
		c.remove(elem)
		return nil, false
	}

	e.expiresAt = now.Add(c.ttl)
	c.order.MoveToFront(elem)
	return e, true
}

func (c *LRU[T]) remove(elem *list.Element) {
	delete(c.items, elem.Value.(*entry[T]).key)
	c.order.Remove(elem)
}
