package extract

import (
	"fmt"
	"sync"
)

// DefaultPageCacheSize is the number of resolved pages a PageCache keeps.
const DefaultPageCacheSize = 256

// PageCache is a thread-safe LRU of resolved pages, keyed by document path,
// page index and render resolution. A cache lives for a single run so that
// discovery and extraction over the same document resolve each page once.
type PageCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*cacheNode
	head     *cacheNode // most recently used
	tail     *cacheNode // least recently used
	hits     int64
	misses   int64
}

type cacheNode struct {
	key        string
	page       Page
	prev, next *cacheNode
}

// CacheStats reports PageCache usage.
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
}

// NewPageCache returns a cache holding at most capacity pages.
func NewPageCache(capacity int) *PageCache {
	if capacity <= 0 {
		capacity = DefaultPageCacheSize
	}
	c := &PageCache{
		capacity: capacity,
		items:    make(map[string]*cacheNode),
		head:     &cacheNode{},
		tail:     &cacheNode{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

func pageKey(path string, index, dpi int) string {
	return fmt.Sprintf("%s#%d@%d", path, index, dpi)
}

// Get returns the cached page and marks it as recently used.
func (c *PageCache) Get(key string) (Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		c.misses++
		return Page{}, false
	}
	c.moveToFront(node)
	c.hits++
	return node.page, true
}

// Put stores page under key, evicting the least recently used entry when full.
func (c *PageCache) Put(key string, page Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		node.page = page
		c.moveToFront(node)
		return
	}

	node := &cacheNode{key: key, page: page}
	c.addToFront(node)
	c.items[key] = node
	if len(c.items) > c.capacity {
		lru := c.tail.prev
		c.unlink(lru)
		delete(c.items, lru.key)
	}
}

// Len returns the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns hit and miss counts.
func (c *PageCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.items), Capacity: c.capacity}
}

func (c *PageCache) moveToFront(node *cacheNode) {
	c.unlink(node)
	c.addToFront(node)
}

func (c *PageCache) addToFront(node *cacheNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *PageCache) unlink(node *cacheNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}
