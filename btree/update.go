package btree

import (
	"bptlab/record"
	"bptlab/wal"
)

// Update replaces the record stored under key and returns the previous one.
// The key set and tree shape never change; a miss leaves the tree untouched.
// The mutation target is located twice: once through the traced search and
// once through an independent descent, so the write never trusts trace state.
func (e *Engine) Update(key record.CompositeKey, newValue record.Record) (record.Record, error) {
	if _, err := e.Search(key); err != nil {
		return record.Record{}, err
	}

	leaf, idx, err := e.locate(key)
	if err != nil {
		return record.Record{}, err
	}

	old := leaf.Values[idx].Clone()
	leaf.Values[idx] = newValue.Clone()

	e.rec.add(Step{
		Type:     StepUpdateKey,
		NodeID:   leaf.PageID,
		Key:      keyPtr(key),
		OldValue: &old,
		NewValue: recordPtr(newValue),
		Index:    intPtr(idx),
	})
	e.markDirty(leaf.PageID)
	e.logMutation(wal.EntryUpdate, leaf.PageID)
	e.flush()
	return old.Clone(), nil
}
