package btree

import (
	"fmt"

	"bptlab/record"
	"bptlab/wal"
)

// Insert places key/value into the tree, failing with ErrDuplicateKey when
// the key already exists. Splits propagate bottom-up and may grow a new
// root; the mutation is logged to the WAL and the dirty pages flushed before
// returning.
func (e *Engine) Insert(key record.CompositeKey, value record.Record) error {
	t := e.tree

	if t.RootPage == 0 {
		leaf := t.newLeaf()
		leaf.Keys = []record.CompositeKey{key.Clone()}
		leaf.Values = []record.Record{value.Clone()}
		t.RootPage = leaf.PageID

		e.rec.add(Step{
			Type:   StepInsertKey,
			NodeID: leaf.PageID,
			Key:    keyPtr(key),
			Value:  recordPtr(value),
			Index:  intPtr(0),
		})
		e.rec.add(Step{
			Type:     StepCheckOverflow,
			NodeID:   leaf.PageID,
			KeyCount: 1,
			MaxKeys:  t.MaxKeys(),
		})
		e.markDirty(leaf.PageID)
		e.logMutation(wal.EntryInsert, leaf.PageID)
		e.flush()
		return nil
	}

	leaf, path, err := e.findLeaf(key)
	if err != nil {
		return err
	}
	if binarySearch(leaf.Keys, key) != -1 {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}

	pos := insertPosition(leaf.Keys, key)
	leaf.Keys = insertKeyAt(leaf.Keys, pos, key.Clone())
	leaf.Values = insertRecordAt(leaf.Values, pos, value.Clone())

	e.rec.add(Step{
		Type:   StepInsertKey,
		NodeID: leaf.PageID,
		Key:    keyPtr(key),
		Value:  recordPtr(value),
		Index:  intPtr(pos),
	})
	e.markDirty(leaf.PageID)

	overflow := len(leaf.Keys) > t.MaxKeys()
	e.rec.add(Step{
		Type:       StepCheckOverflow,
		NodeID:     leaf.PageID,
		KeyCount:   len(leaf.Keys),
		MaxKeys:    t.MaxKeys(),
		IsOverflow: overflow,
	})

	if overflow {
		if err := e.splitLeaf(leaf, path); err != nil {
			return err
		}
	}

	e.logMutation(wal.EntryInsert, leaf.PageID)
	e.flush()
	return nil
}

// splitLeaf moves the upper half of an overflowing leaf into a fresh right
// sibling. The left page keeps ceil(order/2) keys and the right sibling's
// first key is promoted as the separator. The leaf chain is respliced around
// the new page.
func (e *Engine) splitLeaf(leaf *Node, path []uint64) error {
	t := e.tree
	mid := (t.Order + 1) / 2

	right := t.newLeaf()
	right.Keys = append([]record.CompositeKey(nil), leaf.Keys[mid:]...)
	right.Values = append([]record.Record(nil), leaf.Values[mid:]...)
	leaf.Keys = leaf.Keys[:mid:mid]
	leaf.Values = leaf.Values[:mid:mid]

	right.NextPage = leaf.NextPage
	right.PrevPage = leaf.PageID
	leaf.NextPage = right.PageID
	if right.NextPage != 0 {
		next, err := e.loadNode(right.NextPage)
		if err != nil {
			return err
		}
		next.PrevPage = right.PageID
		e.markDirty(next.PageID)
	}

	sep := right.Keys[0].Clone()
	e.rec.add(Step{
		Type:         StepSplitNode,
		NodeID:       leaf.PageID,
		TargetNodeID: right.PageID,
		SeparatorKey: &sep,
		OldNode:      leaf.Clone(),
		NewNode:      right.Clone(),
	})
	e.markDirty(leaf.PageID)
	e.markDirty(right.PageID)

	return e.insertIntoParent(leaf.PageID, sep, right.PageID, path)
}

// insertIntoParent pushes a separator upward after a split, splitting
// internal nodes as needed. When the propagation outruns the root a new root
// is created and the tree grows by one level.
func (e *Engine) insertIntoParent(leftID uint64, sep record.CompositeKey, rightID uint64, path []uint64) error {
	t := e.tree

	for {
		if len(path) == 0 {
			newRoot := t.newInternal()
			newRoot.Keys = []record.CompositeKey{sep.Clone()}
			newRoot.Children = []uint64{leftID, rightID}
			t.RootPage = newRoot.PageID
			t.Height++

			e.rec.add(Step{
				Type:     StepPromoteKey,
				NodeID:   newRoot.PageID,
				Key:      keyPtr(sep),
				Children: cloneIDs(newRoot.Children),
			})
			e.markDirty(newRoot.PageID)
			return nil
		}

		parentID := path[len(path)-1]
		path = path[:len(path)-1]
		parent, err := e.loadNode(parentID)
		if err != nil {
			return err
		}

		e.rec.add(Step{
			Type:         StepPromoteKey,
			NodeID:       leftID,
			TargetNodeID: parentID,
			Key:          keyPtr(sep),
		})

		pos := insertPosition(parent.Keys, sep)
		parent.Keys = insertKeyAt(parent.Keys, pos, sep.Clone())
		parent.Children = insertIDAt(parent.Children, pos+1, rightID)

		e.rec.add(Step{
			Type:   StepAddTempKey,
			NodeID: parentID,
			Key:    keyPtr(sep),
			Index:  intPtr(pos),
		})
		e.markDirty(parentID)

		overflow := len(parent.Keys) > t.MaxKeys()
		e.rec.add(Step{
			Type:       StepCheckOverflow,
			NodeID:     parentID,
			KeyCount:   len(parent.Keys),
			MaxKeys:    t.MaxKeys(),
			IsOverflow: overflow,
		})
		if !overflow {
			return nil
		}

		// Split the internal node around its median key. Unlike a leaf
		// split the median moves up instead of being copied right.
		midIdx := t.Order / 2
		newSep := parent.Keys[midIdx].Clone()

		sibling := t.newInternal()
		sibling.Keys = append([]record.CompositeKey(nil), parent.Keys[midIdx+1:]...)
		sibling.Children = append([]uint64(nil), parent.Children[midIdx+1:]...)
		parent.Keys = parent.Keys[:midIdx:midIdx]
		parent.Children = parent.Children[: midIdx+1 : midIdx+1]

		e.rec.add(Step{
			Type:         StepSplitNode,
			NodeID:       parentID,
			TargetNodeID: sibling.PageID,
			SeparatorKey: &newSep,
			OldNode:      parent.Clone(),
			NewNode:      sibling.Clone(),
		})
		e.markDirty(sibling.PageID)

		leftID = parentID
		rightID = sibling.PageID
		sep = newSep
	}
}

func insertKeyAt(keys []record.CompositeKey, pos int, key record.CompositeKey) []record.CompositeKey {
	keys = append(keys, record.CompositeKey{})
	copy(keys[pos+1:], keys[pos:])
	keys[pos] = key
	return keys
}

func insertRecordAt(values []record.Record, pos int, value record.Record) []record.Record {
	values = append(values, record.Record{})
	copy(values[pos+1:], values[pos:])
	values[pos] = value
	return values
}

func insertIDAt(ids []uint64, pos int, id uint64) []uint64 {
	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = id
	return ids
}
