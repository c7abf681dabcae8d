package btree

import "bptlab/record"

// StepType identifies one kind of visualization step. Every engine operation
// appends steps in the order the corresponding work happened, so replaying a
// trace reproduces the traversal and every structural change.
type StepType string

const (
	StepTraverseNode    StepType = "TRAVERSE_NODE"
	StepInsertKey       StepType = "INSERT_KEY"
	StepUpdateKey       StepType = "UPDATE_KEY"
	StepDeleteKey       StepType = "DELETE_KEY"
	StepSplitNode       StepType = "SPLIT_NODE"
	StepMergeNode       StepType = "MERGE_NODE"
	StepBorrowFromLeft  StepType = "BORROW_FROM_LEFT"
	StepBorrowFromRight StepType = "BORROW_FROM_RIGHT"
	StepBorrowKey       StepType = "BORROW_KEY"
	StepWALAppend       StepType = "WAL_APPEND"
	StepBufferFlush     StepType = "BUFFER_FLUSH"
	StepSearchFound     StepType = "SEARCH_FOUND"
	StepSearchNotFound  StepType = "SEARCH_NOT_FOUND"
	StepPageLoad        StepType = "PAGE_LOAD"
	StepPageFlush       StepType = "PAGE_FLUSH"
	StepCacheHit        StepType = "CACHE_HIT"
	StepCacheMiss       StepType = "CACHE_MISS"
	StepEvictPage       StepType = "EVICT_PAGE"
	StepAddTempKey      StepType = "ADD_TEMP_KEY"
	StepCheckOverflow   StepType = "CHECK_OVERFLOW"
	StepPromoteKey      StepType = "PROMOTE_KEY"
)

// Step is one entry of an operation trace. Only the fields relevant to the
// step's type are populated; everything else stays at its zero value and is
// omitted from JSON.
type Step struct {
	Type StepType `json:"type"`

	// NodeID is the page the step acts on; TargetNodeID is the counterpart
	// page for pairwise steps (split sibling, merge source, borrow sibling).
	NodeID       uint64 `json:"nodeId,omitempty"`
	TargetNodeID uint64 `json:"targetNodeId,omitempty"`

	Key          *record.CompositeKey  `json:"key,omitempty"`
	SeparatorKey *record.CompositeKey  `json:"separatorKey,omitempty"`
	Keys         []record.CompositeKey `json:"keys,omitempty"`
	Children     []uint64              `json:"children,omitempty"`

	Value    *record.Record `json:"value,omitempty"`
	OldValue *record.Record `json:"oldValue,omitempty"`
	NewValue *record.Record `json:"newValue,omitempty"`

	// Index is the slot a key was found at or placed into.
	Index *int `json:"index,omitempty"`

	// Snapshots of the pages touched by a split or merge, taken after the
	// structural change.
	OldNode *Node `json:"oldNode,omitempty"`
	NewNode *Node `json:"newNode,omitempty"`

	// Overflow-check payload.
	KeyCount   int  `json:"keyCount,omitempty"`
	MaxKeys    int  `json:"maxKeys,omitempty"`
	IsOverflow bool `json:"isOverflow,omitempty"`

	// Instrumentation payload.
	LSN      uint64   `json:"lsn,omitempty"`
	PageID   uint64   `json:"pageId,omitempty"`
	PageKind NodeType `json:"pageKind,omitempty"`
}

// recorder accumulates the step trace for one operation.
type recorder struct {
	steps []Step
}

func (r *recorder) add(s Step) {
	r.steps = append(r.steps, s)
}

// Steps returns the collected trace. The trace is never nil so encoders emit
// an empty array instead of null.
func (r *recorder) Steps() []Step {
	if r.steps == nil {
		return []Step{}
	}
	return r.steps
}

func intPtr(i int) *int { return &i }

func keyPtr(k record.CompositeKey) *record.CompositeKey {
	c := k.Clone()
	return &c
}

func recordPtr(v record.Record) *record.Record {
	c := v.Clone()
	return &c
}
