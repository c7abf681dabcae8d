package store

import (
	"time"

	"bptlab/btree"
	"bptlab/cache"
	"bptlab/wal"
)

// Metadata describes a named tree without its contents.
type Metadata struct {
	Name       string    `json:"name"`
	Order      int       `json:"order"`
	PageSize   int       `json:"pageSize"`
	CacheSize  int       `json:"cacheSize"`
	WalEnabled bool      `json:"walEnabled"`
	KeyCount   int       `json:"keyCount"`
	Height     int       `json:"height"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Entry is the live in-memory state of one named tree: the structure itself
// plus its simulated WAL and buffer cache. The WAL and cache are shared
// across operations so LSNs and hit counters accumulate; the tree is swapped
// wholesale when an operation commits.
type Entry struct {
	Metadata Metadata
	Tree     *btree.Tree
	WAL      *wal.Log
	Cache    *cache.PageCache
}

// Instruments exposes the entry's simulated durability state to the engine.
func (e *Entry) Instruments() btree.Instruments {
	return btree.Instruments{WAL: e.WAL, Cache: e.Cache}
}

// persistedTree is the JSON blob stored per tree. The cache persists only
// its counters; the resident set is rebuilt cold on load.
type persistedTree struct {
	Metadata   Metadata    `json:"metadata"`
	Tree       *btree.Tree `json:"tree"`
	WAL        *wal.Log    `json:"wal"`
	CacheStats cache.Stats `json:"cacheStats"`
}

func (e *Entry) toPersisted() *persistedTree {
	meta := e.Metadata
	meta.KeyCount = e.Tree.KeyCount()
	meta.Height = e.Tree.Height
	meta.UpdatedAt = time.Now().UTC()
	return &persistedTree{
		Metadata:   meta,
		Tree:       e.Tree,
		WAL:        e.WAL,
		CacheStats: e.Cache.Stats(),
	}
}

func fromPersisted(p *persistedTree) *Entry {
	return &Entry{
		Metadata: p.Metadata,
		Tree:     p.Tree,
		WAL:      p.WAL,
		Cache:    cache.Restore(p.Metadata.CacheSize, p.CacheStats),
	}
}
