// Package cache keeps prepared statements for generated SQL.
//
// Generated SQL text is a pure function of entity metadata and query shape,
// so the same text recurs constantly; the repository prepares it once and
// reuses the *sql.Stmt until it falls out of the LRU.
package cache

import (
	"container/list"
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
)

// DefaultStmtCacheCapacity is the capacity used when none (or <= 0) is given.
const DefaultStmtCacheCapacity = 256

// Preparer is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// StmtCache stores prepared statements keyed by SQL text with LRU eviction.
// Evicted statements are closed. Safe for concurrent use.
type StmtCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lru      *list.List

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheEntry struct {
	sql  string
	stmt *sql.Stmt
}

// NewStmtCache creates a cache holding at most capacity statements.
func NewStmtCache(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultStmtCacheCapacity
	}
	return &StmtCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get returns the statement prepared for query, marking it most recently used.
func (sc *StmtCache) Get(query string) (*sql.Stmt, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	elem, ok := sc.items[query]
	if !ok {
		sc.misses.Add(1)
		return nil, false
	}
	sc.lru.MoveToFront(elem)
	sc.hits.Add(1)
	return elem.Value.(*cacheEntry).stmt, true
}

// Set stores stmt for query, closing any statement it replaces and evicting
// the least recently used entry when full.
func (sc *StmtCache) Set(query string, stmt *sql.Stmt) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.set(query, stmt)
}

func (sc *StmtCache) set(query string, stmt *sql.Stmt) {
	if elem, ok := sc.items[query]; ok {
		sc.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		if entry.stmt != stmt {
			_ = entry.stmt.Close()
			entry.stmt = stmt
		}
		return
	}
	if sc.lru.Len() >= sc.capacity {
		sc.evictOldest()
	}
	sc.items[query] = sc.lru.PushFront(&cacheEntry{sql: query, stmt: stmt})
}

// Prepare returns the cached statement for query or prepares it with p.
// Two callers racing on the same query may both prepare; the second
// statement wins and the first is closed.
func (sc *StmtCache) Prepare(ctx context.Context, p Preparer, query string) (*sql.Stmt, error) {
	if stmt, ok := sc.Get(query); ok {
		return stmt, nil
	}
	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if elem, ok := sc.items[query]; ok {
		// Someone else stored it meanwhile: keep theirs.
		_ = stmt.Close()
		sc.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).stmt, nil
	}
	sc.set(query, stmt)
	return stmt, nil
}

// Invalidate closes and removes the statement for query, e.g. after the
// driver reported it unusable.
func (sc *StmtCache) Invalidate(query string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	elem, ok := sc.items[query]
	if !ok {
		return
	}
	sc.lru.Remove(elem)
	delete(sc.items, query)
	_ = elem.Value.(*cacheEntry).stmt.Close()
}

// evictOldest must be called with mu held.
func (sc *StmtCache) evictOldest() {
	elem := sc.lru.Back()
	if elem == nil {
		return
	}
	sc.lru.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(sc.items, entry.sql)
	_ = entry.stmt.Close()
	sc.evictions.Add(1)
}

// Clear closes and removes every statement.
func (sc *StmtCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for elem := sc.lru.Front(); elem != nil; elem = elem.Next() {
		_ = elem.Value.(*cacheEntry).stmt.Close()
	}
	sc.items = make(map[string]*list.Element, sc.capacity)
	sc.lru.Init()
}

// Stats holds cache metrics.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64 // hits / (hits + misses)
}

// Stats returns a snapshot of the cache metrics.
func (sc *StmtCache) Stats() Stats {
	sc.mu.Lock()
	size := sc.lru.Len()
	sc.mu.Unlock()

	hits, misses := sc.hits.Load(), sc.misses.Load()
	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Size:      size,
		Capacity:  sc.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: sc.evictions.Load(),
		HitRate:   rate,
	}
}
