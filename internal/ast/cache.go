package ast

import (
	"container/list"
	"sync"
	"sync/atomic"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// CachedTree is a reference-counted, content-hash-keyed parse tree. A tree
// is never evicted from the Cache while any caller still holds it; Release
// must be called exactly once per Acquire/Get pairing.
type CachedTree struct {
	Hash     string
	Language string
	Tree     *tree_sitter.Tree
	refCount int64
}

// Release decrements the tree's reference count, freeing the underlying
// tree_sitter.Tree once no caller holds it and it has left the cache.
func (c *CachedTree) Release() {
	if atomic.AddInt64(&c.refCount, -1) == 0 && c.Tree != nil {
		c.Tree.Close()
	}
}

func (c *CachedTree) acquire() {
	atomic.AddInt64(&c.refCount, 1)
}

// Cache is a bounded, FIFO, content-addressed store of parsed trees, keyed
// by (language, content hash). Eviction follows insertion order; a cache
// hit does not reorder entries. Entries are never evicted while held by a
// caller, per the data model's "never evict a tree while held" invariant.
// Per-key locking via one mutex per key, kept in a sync.Map (grounded on
// internal/cache.MetricsCache's sync.Map-based design), ensures two
// goroutines racing to parse identical content share one parse.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element // key -> list element holding *CachedTree
	order    *list.List               // front = oldest
	capacity int

	keyLocks sync.Map // key -> *sync.Mutex, for single-flight parsing

	hits, misses int64
}

// NewCache creates a cache bounded to capacity entries. A non-positive
// capacity means unbounded (used by tests and single-file CLI invocations).
func NewCache(capacity int) *Cache {
	return &Cache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

func cacheKey(language, hash string) string {
	return language + ":" + hash
}

// GetOrParse returns the cached tree for (language, hash), parsing content
// via parseFn only on a miss. The returned CachedTree has already been
// acquired on the caller's behalf; the caller must call Release when done.
func (c *Cache) GetOrParse(language, hash string, parseFn func() (*tree_sitter.Tree, error)) (*CachedTree, error) {
	lockIface, _ := c.keyLocks.LoadOrStore(cacheKey(language, hash), &sync.Mutex{})
	keyLock := lockIface.(*sync.Mutex)
	keyLock.Lock()
	defer keyLock.Unlock()

	if ct, ok := c.get(language, hash); ok {
		return ct, nil
	}

	tree, err := parseFn()
	if err != nil {
		return nil, err
	}

	// refCount starts at 2: one reference owned by the cache table itself,
	// one handed to the caller. The tree is only Closed once both have
	// been released, so a FIFO eviction never invalidates a tree a caller
	// still holds.
	ct := &CachedTree{Hash: hash, Language: language, Tree: tree, refCount: 2}
	c.put(language, hash, ct)
	return ct, nil
}

func (c *Cache) get(language, hash string) (*CachedTree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(language, hash)
	el, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	ct := el.Value.(*CachedTree)
	ct.acquire()
	return ct, true
}

func (c *Cache) put(language, hash string, ct *CachedTree) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(language, hash)
	if el, ok := c.entries[key]; ok {
		c.order.MoveToBack(el)
		el.Value = ct
		return
	}

	el := c.order.PushBack(ct)
	c.entries[key] = el

	if c.capacity > 0 {
		// Oldest first; an entry a caller still holds (refCount above the
		// cache's own reference) is skipped, so the cache can stay over
		// capacity until those trees are released.
		for el := c.order.Front(); el != nil && c.order.Len() > c.capacity; {
			next := el.Next()
			evicted := el.Value.(*CachedTree)
			if atomic.LoadInt64(&evicted.refCount) <= 1 {
				c.order.Remove(el)
				delete(c.entries, cacheKey(evicted.Language, evicted.Hash))
				evicted.Release() // drop the cache's own reference
			}
			el = next
		}
	}
}

// Stats reports cumulative hit/miss counts for observability.
func (c *Cache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Len returns the number of entries currently resident.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
