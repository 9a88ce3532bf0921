package storage

import (
	"container/list"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/zakazai/jsonsql/internal/types"
	"github.com/zeebo/blake3"
)

const (
	// evictThreshold is the memory usage at which least recently used
	// entries start being evicted.
	evictThreshold = 0.9
	// drainThreshold is the usage below which a write drains the queue.
	drainThreshold = 0.8
	// evictFraction of the item limit is evicted per pressure event.
	evictFraction = 0.3
)

// cacheEntry is one decoded table file. A dirty entry holds data newer than
// the file on disk.
type cacheEntry struct {
	key        string
	path       string
	table      *Table
	size       int64
	dirty      bool
	version    uint64
	lastAccess time.Time
	elem       *list.Element
}

// tableCache is an LRU of decoded table files keyed by the BLAKE3 hash of
// their path. Callers serialize access.
type tableCache struct {
	maxItems int
	maxBytes int64
	bytes    int64
	entries  map[string]*cacheEntry
	lru      *list.List // front is most recently used
	flush    func(*cacheEntry) error
	logger   *types.Logger
}

func newTableCache(maxItems int, maxBytes int64, flush func(*cacheEntry) error, logger *types.Logger) *tableCache {
	return &tableCache{
		maxItems: maxItems,
		maxBytes: maxBytes,
		entries:  make(map[string]*cacheEntry),
		lru:      list.New(),
		flush:    flush,
		logger:   logger,
	}
}

func cacheKey(path string) string {
	sum := blake3.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

func (c *tableCache) get(path string) (*cacheEntry, bool) {
	e, ok := c.entries[cacheKey(path)]
	if !ok {
		return nil, false
	}
	c.touch(e)
	return e, true
}

func (c *tableCache) touch(e *cacheEntry) {
	e.lastAccess = time.Now()
	c.lru.MoveToFront(e.elem)
}

// put stores table under path and returns the entry. A dirty put bumps the
// entry version so a later flush of an older snapshot cannot mark it clean.
func (c *tableCache) put(path string, table *Table, size int64, dirty bool) *cacheEntry {
	key := cacheKey(path)
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{key: key, path: path}
		e.elem = c.lru.PushFront(e)
		c.entries[key] = e
	} else {
		c.bytes -= e.size
	}
	e.table = table
	e.size = size
	e.dirty = e.dirty || dirty
	if dirty {
		e.version++
	}
	c.bytes += size
	c.touch(e)
	return e
}

// markClean clears the dirty flag if the entry still holds version
func (c *tableCache) markClean(path string, version uint64) {
	if e, ok := c.entries[cacheKey(path)]; ok && e.version == version {
		e.dirty = false
	}
}

func (c *tableCache) remove(path string) {
	if e, ok := c.entries[cacheKey(path)]; ok {
		c.drop(e)
	}
}

// removeUnder drops every entry whose file lives in dir, dirty or not
func (c *tableCache) removeUnder(dir string) {
	prefix := dir + string(filepath.Separator)
	for _, e := range c.entries {
		if strings.HasPrefix(e.path, prefix) {
			c.drop(e)
		}
	}
}

// pathsIn lists cached files directly inside dir
func (c *tableCache) pathsIn(dir string) []string {
	var paths []string
	for _, e := range c.entries {
		if filepath.Dir(e.path) == dir {
			paths = append(paths, e.path)
		}
	}
	return paths
}

func (c *tableCache) drop(e *cacheEntry) {
	c.lru.Remove(e.elem)
	delete(c.entries, e.key)
	c.bytes -= e.size
}

func (c *tableCache) usage() float64 {
	if c.maxBytes <= 0 {
		return 0
	}
	return float64(c.bytes) / float64(c.maxBytes)
}

func (c *tableCache) len() int {
	return len(c.entries)
}

func (c *tableCache) overLimit() bool {
	return len(c.entries) > c.maxItems || c.usage() >= evictThreshold
}

// evict removes least recently used entries while the cache is over its item
// limit or memory threshold. At least evictFraction of the item limit goes per
// pressure event. Dirty entries are flushed first; one that fails to flush
// stays cached. The most recently used entry is never evicted.
func (c *tableCache) evict() {
	if !c.overLimit() {
		return
	}
	quota := int(float64(c.maxItems) * evictFraction)
	if quota < 1 {
		quota = 1
	}

	evicted := 0
	for elem := c.lru.Back(); elem != nil && elem != c.lru.Front(); {
		if evicted >= quota && !c.overLimit() {
			break
		}
		e := elem.Value.(*cacheEntry)
		elem = elem.Prev()
		if e.dirty {
			if err := c.flush(e); err != nil {
				c.logger.Error("cache: keeping %s, flush before eviction failed: %v", e.path, err)
				continue
			}
			e.dirty = false
		}
		c.drop(e)
		evicted++
	}
	if evicted > 0 {
		c.logger.Debug("cache: evicted %d entries, %d left, %d bytes", evicted, len(c.entries), c.bytes)
	}
}

// flushDirty writes every dirty entry without evicting anything
func (c *tableCache) flushDirty() error {
	var errs []error
	for elem := c.lru.Back(); elem != nil; elem = elem.Prev() {
		e := elem.Value.(*cacheEntry)
		if !e.dirty {
			continue
		}
		if err := c.flush(e); err != nil {
			errs = append(errs, err)
			continue
		}
		e.dirty = false
	}
	return errors.Join(errs...)
}

// clear flushes and drops every entry. Entries that fail to flush stay.
func (c *tableCache) clear() error {
	err := c.flushDirty()
	for elem := c.lru.Back(); elem != nil; {
		e := elem.Value.(*cacheEntry)
		elem = elem.Prev()
		if !e.dirty {
			c.drop(e)
		}
	}
	return err
}
