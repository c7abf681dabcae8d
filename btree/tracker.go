package btree

import (
	"fmt"
	"time"

	"bptlab/cache"
	"bptlab/wal"
)

// Instruments bundles the simulated durability and buffer-cache state an
// engine reports against. Both are observational: a tree behaves identically
// with or without them, only the trace changes.
type Instruments struct {
	WAL   *wal.Log
	Cache *cache.PageCache
}

// PageRead is one entry of the per-operation read log.
type PageRead struct {
	PageID uint64    `json:"pageId"`
	Kind   NodeType  `json:"kind"`
	At     time.Time `json:"at"`
}

// Engine executes one operation against a tree, recording a step trace,
// a page read log and the dirty-page set as it goes. Engines are single-use:
// create one per operation.
type Engine struct {
	tree *Tree
	inst Instruments
	rec  recorder

	reads      []PageRead
	dirty      map[uint64]bool
	dirtyOrder []uint64
}

// NewEngine wraps tree for a single operation. Missing instruments are
// replaced with fresh ones so callers can run without persistence.
func NewEngine(tree *Tree, inst Instruments) *Engine {
	if inst.WAL == nil {
		inst.WAL = wal.NewLog()
	}
	if inst.Cache == nil {
		inst.Cache = cache.New(cache.DefaultMaxSize)
	}
	return &Engine{
		tree:  tree,
		inst:  inst,
		dirty: make(map[uint64]bool),
	}
}

// Steps returns the trace collected so far.
func (e *Engine) Steps() []Step {
	return e.rec.Steps()
}

// Reads returns the pages touched by the operation in access order.
func (e *Engine) Reads() []PageRead {
	return e.reads
}

// loadNode resolves a page id through the buffer cache, emitting the cache
// and load steps for the access. Every page the engine inspects goes through
// here so the read log stays complete.
func (e *Engine) loadNode(pageID uint64) (*Node, error) {
	n, ok := e.tree.Nodes[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: page %d", ErrPageNotFound, pageID)
	}

	hit, evicted, didEvict := e.inst.Cache.Touch(pageID)
	if hit {
		e.rec.add(Step{Type: StepCacheHit, PageID: pageID, PageKind: n.Type})
	} else {
		e.rec.add(Step{Type: StepCacheMiss, PageID: pageID, PageKind: n.Type})
		if didEvict {
			e.rec.add(Step{Type: StepEvictPage, PageID: evicted})
		}
		e.rec.add(Step{Type: StepPageLoad, PageID: pageID, PageKind: n.Type})
	}

	e.reads = append(e.reads, PageRead{PageID: pageID, Kind: n.Type, At: time.Now()})
	return n, nil
}

// markDirty remembers that a page was mutated. Flush order follows first
// mutation order so traces stay deterministic.
func (e *Engine) markDirty(pageID uint64) {
	if !e.dirty[pageID] {
		e.dirty[pageID] = true
		e.dirtyOrder = append(e.dirtyOrder, pageID)
	}
}

// forgetDirty drops a freed page from the flush set, used when a merge
// removes a page that was dirtied earlier in the same operation.
func (e *Engine) forgetDirty(pageID uint64) {
	if !e.dirty[pageID] {
		return
	}
	delete(e.dirty, pageID)
	for i, id := range e.dirtyOrder {
		if id == pageID {
			e.dirtyOrder = append(e.dirtyOrder[:i], e.dirtyOrder[i+1:]...)
			break
		}
	}
}

// logMutation appends the operation's intent to the WAL. It runs after the
// structural change succeeded but before the buffer flush, so the trace
// shows log-before-flush ordering.
func (e *Engine) logMutation(typ wal.EntryType, pageID uint64) {
	entry := e.inst.WAL.Append(typ, pageID)
	e.rec.add(Step{Type: StepWALAppend, LSN: entry.LSN, PageID: pageID})
}

// flush emits a PAGE_FLUSH per dirty page followed by one BUFFER_FLUSH
// closing the operation. Pages flush in first-mutation order.
func (e *Engine) flush() {
	for _, pageID := range e.dirtyOrder {
		kind := NodeType("")
		if n, ok := e.tree.Nodes[pageID]; ok {
			kind = n.Type
		}
		e.rec.add(Step{Type: StepPageFlush, PageID: pageID, PageKind: kind})
	}
	e.rec.add(Step{Type: StepBufferFlush})
}
