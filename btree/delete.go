package btree

import (
	"fmt"

	"bptlab/record"
	"bptlab/wal"
)

// Delete removes key from the tree and returns the record it held. Underflow
// is repaired by borrowing from a sibling, preferring the right one, and by
// merging when neither sibling can donate. Merges may propagate up and
// collapse the root, shrinking the tree by one level.
func (e *Engine) Delete(key record.CompositeKey) (record.Record, error) {
	t := e.tree

	if t.RootPage == 0 {
		e.rec.add(Step{Type: StepSearchNotFound, Key: keyPtr(key)})
		return record.Record{}, fmt.Errorf("%w: tree is empty", ErrKeyNotFound)
	}

	leaf, path, err := e.findLeaf(key)
	if err != nil {
		return record.Record{}, err
	}
	idx := binarySearch(leaf.Keys, key)
	if idx == -1 {
		e.rec.add(Step{Type: StepSearchNotFound, NodeID: leaf.PageID, Key: keyPtr(key)})
		return record.Record{}, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	removed := leaf.Values[idx].Clone()
	leaf.Keys = removeKeyAt(leaf.Keys, idx)
	leaf.Values = removeRecordAt(leaf.Values, idx)

	e.rec.add(Step{
		Type:   StepDeleteKey,
		NodeID: leaf.PageID,
		Key:    keyPtr(key),
		Value:  &removed,
		Index:  intPtr(idx),
	})
	e.markDirty(leaf.PageID)

	logPage := leaf.PageID
	if len(path) == 0 {
		// Root leaf: nothing to rebalance, but an emptied root unroots
		// the tree entirely.
		if len(leaf.Keys) == 0 {
			e.freePage(leaf.PageID)
			t.RootPage = 0
			t.Height = 0
		}
	} else if len(leaf.Keys) < t.MinKeys() {
		if err := e.rebalanceLeaf(leaf, path); err != nil {
			return record.Record{}, err
		}
	}

	e.logMutation(wal.EntryDelete, logPage)
	e.flush()
	return removed.Clone(), nil
}

// rebalanceLeaf repairs an underflowing leaf. Borrowing rotates one entry
// through the parent separator; merging folds the right page into the left
// one and removes the separator, which may underflow the parent in turn.
func (e *Engine) rebalanceLeaf(leaf *Node, path []uint64) error {
	t := e.tree
	parentID := path[len(path)-1]
	parent, err := e.loadNode(parentID)
	if err != nil {
		return err
	}
	ci, err := childIndex(parent, leaf.PageID)
	if err != nil {
		return err
	}

	var right, left *Node
	if ci+1 < len(parent.Children) {
		if right, err = e.loadNode(parent.Children[ci+1]); err != nil {
			return err
		}
	}
	if ci > 0 {
		if left, err = e.loadNode(parent.Children[ci-1]); err != nil {
			return err
		}
	}

	if right != nil && len(right.Keys) > t.MinKeys() {
		moved := right.Keys[0].Clone()
		movedVal := right.Values[0].Clone()
		right.Keys = removeKeyAt(right.Keys, 0)
		right.Values = removeRecordAt(right.Values, 0)
		leaf.Keys = append(leaf.Keys, moved)
		leaf.Values = append(leaf.Values, movedVal)

		newSep := right.Keys[0].Clone()
		parent.Keys[ci] = newSep

		e.rec.add(Step{Type: StepBorrowKey, NodeID: right.PageID, TargetNodeID: leaf.PageID, Key: keyPtr(moved)})
		e.rec.add(Step{Type: StepBorrowFromRight, NodeID: leaf.PageID, TargetNodeID: right.PageID, SeparatorKey: keyPtr(newSep)})
		e.rec.add(Step{Type: StepPromoteKey, NodeID: right.PageID, TargetNodeID: parentID, Key: keyPtr(newSep), Index: intPtr(ci)})
		e.markDirty(leaf.PageID)
		e.markDirty(right.PageID)
		e.markDirty(parentID)
		return nil
	}

	if left != nil && len(left.Keys) > t.MinKeys() {
		last := len(left.Keys) - 1
		moved := left.Keys[last].Clone()
		movedVal := left.Values[last].Clone()
		left.Keys = left.Keys[:last]
		left.Values = left.Values[:last]
		leaf.Keys = insertKeyAt(leaf.Keys, 0, moved)
		leaf.Values = insertRecordAt(leaf.Values, 0, movedVal)

		parent.Keys[ci-1] = moved.Clone()

		e.rec.add(Step{Type: StepBorrowKey, NodeID: left.PageID, TargetNodeID: leaf.PageID, Key: keyPtr(moved)})
		e.rec.add(Step{Type: StepBorrowFromLeft, NodeID: leaf.PageID, TargetNodeID: left.PageID, SeparatorKey: keyPtr(moved)})
		e.rec.add(Step{Type: StepPromoteKey, NodeID: left.PageID, TargetNodeID: parentID, Key: keyPtr(moved), Index: intPtr(ci - 1)})
		e.markDirty(leaf.PageID)
		e.markDirty(left.PageID)
		e.markDirty(parentID)
		return nil
	}

	if right != nil {
		if err := e.mergeLeaves(leaf, right, parent, ci); err != nil {
			return err
		}
	} else if left != nil {
		if err := e.mergeLeaves(left, leaf, parent, ci-1); err != nil {
			return err
		}
	} else {
		return fmt.Errorf("%w: leaf %d has no siblings under node %d", ErrPageNotFound, leaf.PageID, parentID)
	}

	return e.rebalanceInternal(parent, path[:len(path)-1])
}

// mergeLeaves folds src into dst (dst is the left neighbor), resplices the
// leaf chain around the freed page and drops the separator at sepIdx from
// the parent.
func (e *Engine) mergeLeaves(dst, src, parent *Node, sepIdx int) error {
	srcSnapshot := src.Clone()

	dst.Keys = append(dst.Keys, src.Keys...)
	dst.Values = append(dst.Values, src.Values...)
	dst.NextPage = src.NextPage
	if src.NextPage != 0 {
		next, err := e.loadNode(src.NextPage)
		if err != nil {
			return err
		}
		next.PrevPage = dst.PageID
		e.markDirty(next.PageID)
	}

	sep := parent.Keys[sepIdx].Clone()
	parent.Keys = removeKeyAt(parent.Keys, sepIdx)
	parent.Children = removeIDAt(parent.Children, sepIdx+1)

	e.rec.add(Step{
		Type:         StepMergeNode,
		NodeID:       dst.PageID,
		TargetNodeID: src.PageID,
		SeparatorKey: &sep,
		OldNode:      srcSnapshot,
		NewNode:      dst.Clone(),
	})
	e.freePage(src.PageID)
	e.markDirty(dst.PageID)
	e.markDirty(parent.PageID)
	return nil
}

// rebalanceInternal repairs an internal node after a child merge removed one
// of its separators. At the root the tree collapses one level once the root
// runs out of keys; elsewhere borrowing rotates a separator through the
// parent and merging recurses upward.
func (e *Engine) rebalanceInternal(node *Node, path []uint64) error {
	t := e.tree

	if len(path) == 0 {
		if node.PageID == t.RootPage && len(node.Keys) == 0 && len(node.Children) == 1 {
			t.RootPage = node.Children[0]
			t.Height--
			e.freePage(node.PageID)
		}
		return nil
	}
	if len(node.Keys) >= t.MinKeys() {
		return nil
	}

	parentID := path[len(path)-1]
	parent, err := e.loadNode(parentID)
	if err != nil {
		return err
	}
	ci, err := childIndex(parent, node.PageID)
	if err != nil {
		return err
	}

	var right, left *Node
	if ci+1 < len(parent.Children) {
		if right, err = e.loadNode(parent.Children[ci+1]); err != nil {
			return err
		}
	}
	if ci > 0 {
		if left, err = e.loadNode(parent.Children[ci-1]); err != nil {
			return err
		}
	}

	if right != nil && len(right.Keys) > t.MinKeys() {
		sepDown := parent.Keys[ci].Clone()
		node.Keys = append(node.Keys, sepDown)
		node.Children = append(node.Children, right.Children[0])

		movedUp := right.Keys[0].Clone()
		right.Keys = removeKeyAt(right.Keys, 0)
		right.Children = removeIDAt(right.Children, 0)
		parent.Keys[ci] = movedUp

		e.rec.add(Step{Type: StepBorrowKey, NodeID: right.PageID, TargetNodeID: node.PageID, Key: keyPtr(sepDown)})
		e.rec.add(Step{Type: StepBorrowFromRight, NodeID: node.PageID, TargetNodeID: right.PageID, SeparatorKey: keyPtr(movedUp)})
		e.rec.add(Step{Type: StepPromoteKey, NodeID: right.PageID, TargetNodeID: parentID, Key: keyPtr(movedUp), Index: intPtr(ci)})
		e.markDirty(node.PageID)
		e.markDirty(right.PageID)
		e.markDirty(parentID)
		return nil
	}

	if left != nil && len(left.Keys) > t.MinKeys() {
		sepDown := parent.Keys[ci-1].Clone()
		node.Keys = insertKeyAt(node.Keys, 0, sepDown)
		node.Children = insertIDAt(node.Children, 0, left.Children[len(left.Children)-1])

		last := len(left.Keys) - 1
		movedUp := left.Keys[last].Clone()
		left.Keys = left.Keys[:last]
		left.Children = left.Children[:len(left.Children)-1]
		parent.Keys[ci-1] = movedUp

		e.rec.add(Step{Type: StepBorrowKey, NodeID: left.PageID, TargetNodeID: node.PageID, Key: keyPtr(sepDown)})
		e.rec.add(Step{Type: StepBorrowFromLeft, NodeID: node.PageID, TargetNodeID: left.PageID, SeparatorKey: keyPtr(movedUp)})
		e.rec.add(Step{Type: StepPromoteKey, NodeID: left.PageID, TargetNodeID: parentID, Key: keyPtr(movedUp), Index: intPtr(ci - 1)})
		e.markDirty(node.PageID)
		e.markDirty(left.PageID)
		e.markDirty(parentID)
		return nil
	}

	// Merge pulls the separator down between the two pages, so internal
	// merges never lose a routing key.
	if right != nil {
		srcSnapshot := right.Clone()
		sep := parent.Keys[ci].Clone()
		node.Keys = append(node.Keys, sep)
		node.Keys = append(node.Keys, right.Keys...)
		node.Children = append(node.Children, right.Children...)
		parent.Keys = removeKeyAt(parent.Keys, ci)
		parent.Children = removeIDAt(parent.Children, ci+1)

		e.rec.add(Step{
			Type:         StepMergeNode,
			NodeID:       node.PageID,
			TargetNodeID: right.PageID,
			SeparatorKey: &sep,
			OldNode:      srcSnapshot,
			NewNode:      node.Clone(),
		})
		e.freePage(right.PageID)
		e.markDirty(node.PageID)
	} else if left != nil {
		srcSnapshot := node.Clone()
		sep := parent.Keys[ci-1].Clone()
		left.Keys = append(left.Keys, sep)
		left.Keys = append(left.Keys, node.Keys...)
		left.Children = append(left.Children, node.Children...)
		parent.Keys = removeKeyAt(parent.Keys, ci-1)
		parent.Children = removeIDAt(parent.Children, ci)

		e.rec.add(Step{
			Type:         StepMergeNode,
			NodeID:       left.PageID,
			TargetNodeID: node.PageID,
			SeparatorKey: &sep,
			OldNode:      srcSnapshot,
			NewNode:      left.Clone(),
		})
		e.freePage(node.PageID)
		e.markDirty(left.PageID)
	} else {
		return fmt.Errorf("%w: node %d has no siblings under node %d", ErrPageNotFound, node.PageID, parentID)
	}
	e.markDirty(parentID)

	return e.rebalanceInternal(parent, path[:len(path)-1])
}

// freePage removes a page from the node map, the buffer cache and the
// pending flush set.
func (e *Engine) freePage(pageID uint64) {
	delete(e.tree.Nodes, pageID)
	e.inst.Cache.Drop(pageID)
	e.forgetDirty(pageID)
}

func childIndex(parent *Node, pageID uint64) (int, error) {
	for i, id := range parent.Children {
		if id == pageID {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: page %d not a child of node %d", ErrPageNotFound, pageID, parent.PageID)
}

func removeKeyAt(keys []record.CompositeKey, pos int) []record.CompositeKey {
	return append(keys[:pos], keys[pos+1:]...)
}

func removeRecordAt(values []record.Record, pos int) []record.Record {
	return append(values[:pos], values[pos+1:]...)
}

func removeIDAt(ids []uint64, pos int) []uint64 {
	return append(ids[:pos], ids[pos+1:]...)
}
