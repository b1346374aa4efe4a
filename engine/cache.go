package engine

import (
	"container/list"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jonboulle/clockwork"
)

// ResultCache is an LRU cache of query results with a time-to-live.
// Cached results are shared between callers and must be treated as read-only.
type ResultCache struct {
	capacity int
	ttl      time.Duration
	clock    clockwork.Clock
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	lru      *list.List
}

type cacheEntry struct {
	key     string
	result  *Result
	stored  time.Time
	element *list.Element
}

// NewResultCache creates a cache holding at most capacity results for ttl.
// A nil clock uses the real clock.
func NewResultCache(capacity int, ttl time.Duration, clock clockwork.Clock) *ResultCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if capacity < 1 {
		capacity = 1
	}
	return &ResultCache{
		capacity: capacity,
		ttl:      ttl,
		clock:    clock,
		entries:  make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

// Get returns a live cached result.
func (c *ResultCache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.clock.Since(entry.stored) > c.ttl {
		c.removeLocked(key)
		return nil, false
	}
	c.lru.MoveToFront(entry.element)
	return entry.result, true
}

// Put stores a result, evicting the least recently used entry when full.
func (c *ResultCache) Put(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.result = result
		entry.stored = c.clock.Now()
		c.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{key: key, result: result, stored: c.clock.Now()}
	entry.element = c.lru.PushFront(entry)
	c.entries[key] = entry

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeLocked(oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of entries, expired ones included.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.lru = list.New()
}

func (c *ResultCache) removeLocked(key string) {
	if entry, ok := c.entries[key]; ok {
		c.lru.Remove(entry.element)
		delete(c.entries, key)
	}
}

// SpecKey hashes the canonical JSON form of a query.
func SpecKey(spec QuerySpec) (string, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), nil
}
