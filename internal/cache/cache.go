package cache

import (
	"sync"

	"cmdnice/internal/extractor"
)

// Cache holds the per-run results shared by the walker, the script
// transport and the bundler. Entries are written at most once per key and
// never evicted: the first result stored for a key is authoritative for the
// lifetime of the cache, and later writers get that first value back.
//
// Trees and metadata stored here are shared read-only by every lookup.
// Nothing may mutate them after they have been stored.
type Cache struct {
	enabled bool

	mu       sync.RWMutex
	trees    map[string]*TreeEntry
	deps     map[string][]string
	contents map[string]string
}

// TreeEntry is a parsed file together with its module declaration.
type TreeEntry struct {
	Tree *extractor.SyntaxTree
	Meta *extractor.ModuleMeta
}

// New returns a cache. A disabled cache accepts writes and drops them, so
// callers never have to branch on the flag.
func New(enabled bool) *Cache {
	return &Cache{
		enabled:  enabled,
		trees:    make(map[string]*TreeEntry),
		deps:     make(map[string][]string),
		contents: make(map[string]string),
	}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Tree looks up the parse result for an absolute path.
func (c *Cache) Tree(path string) (*TreeEntry, bool) {
	if !c.Enabled() {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.trees[path]
	return e, ok
}

// StoreTree records entry for path unless a value is already present, and
// returns the value that is now authoritative.
func (c *Cache) StoreTree(path string, entry *TreeEntry) *TreeEntry {
	if !c.Enabled() {
		return entry
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.trees[path]; ok {
		return existing
	}
	c.trees[path] = entry
	return entry
}

// Dependencies looks up the resolved closure for an absolute path.
func (c *Cache) Dependencies(path string) ([]string, bool) {
	if !c.Enabled() {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	deps, ok := c.deps[path]
	return deps, ok
}

func (c *Cache) StoreDependencies(path string, deps []string) []string {
	if !c.Enabled() {
		return deps
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.deps[path]; ok {
		return existing
	}
	c.deps[path] = deps
	return deps
}

// Content looks up module text by declared id. The content cache is always
// on: it is how the bundler shares modules across calls.
func (c *Cache) Content(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.contents[id]
	return content, ok
}

// StoreContent registers content under id. It reports false when id was
// already registered, in which case the existing content is kept.
func (c *Cache) StoreContent(id, content string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.contents[id]; ok {
		return false
	}
	c.contents[id] = content
	return true
}

type Stats struct {
	Trees        int
	Dependencies int
	Contents     int
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Trees: len(c.trees), Dependencies: len(c.deps), Contents: len(c.contents)}
}
