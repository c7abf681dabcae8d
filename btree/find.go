package btree

import (
	"fmt"

	"bptlab/record"
)

// findLeaf descends from the root to the leaf that would hold key, emitting
// a TRAVERSE_NODE step per visited page. It returns the leaf and the page
// ids of the internal nodes on the path, root first.
func (e *Engine) findLeaf(key record.CompositeKey) (*Node, []uint64, error) {
	if e.tree.RootPage == 0 {
		return nil, nil, fmt.Errorf("%w: tree is empty", ErrKeyNotFound)
	}

	var path []uint64
	current := e.tree.RootPage
	for {
		n, err := e.loadNode(current)
		if err != nil {
			return nil, nil, err
		}
		e.rec.add(Step{
			Type:     StepTraverseNode,
			NodeID:   n.PageID,
			Keys:     cloneKeys(n.Keys),
			Children: cloneIDs(n.Children),
		})

		if n.Type == NodeLeaf {
			return n, path, nil
		}

		path = append(path, n.PageID)
		idx := lastLessOrEqual(n.Keys, key) + 1
		if idx >= len(n.Children) {
			return nil, nil, fmt.Errorf("%w: node %d has no child at slot %d", ErrPageNotFound, n.PageID, idx)
		}
		current = n.Children[idx]
	}
}

// locate re-derives the leaf and slot that hold key without emitting steps
// or touching the instruments. Update uses it so the mutation target never
// depends on a previously recorded trace.
func (e *Engine) locate(key record.CompositeKey) (*Node, int, error) {
	if e.tree.RootPage == 0 {
		return nil, 0, fmt.Errorf("%w: tree is empty", ErrKeyNotFound)
	}

	n, ok := e.tree.Nodes[e.tree.RootPage]
	if !ok {
		return nil, 0, fmt.Errorf("%w: root page %d", ErrPageNotFound, e.tree.RootPage)
	}
	for n.Type == NodeInternal {
		idx := lastLessOrEqual(n.Keys, key) + 1
		if idx >= len(n.Children) {
			return nil, 0, fmt.Errorf("%w: node %d has no child at slot %d", ErrPageNotFound, n.PageID, idx)
		}
		child, ok := e.tree.Nodes[n.Children[idx]]
		if !ok {
			return nil, 0, fmt.Errorf("%w: page %d", ErrPageNotFound, n.Children[idx])
		}
		n = child
	}

	idx := binarySearch(n.Keys, key)
	if idx == -1 {
		return nil, 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return n, idx, nil
}

// Search walks to the leaf that would hold key and reports whether it is
// present. A miss is a normal outcome with its own terminal step; only
// structural corruption yields a non-ErrKeyNotFound error.
func (e *Engine) Search(key record.CompositeKey) (record.Record, error) {
	if e.tree.RootPage == 0 {
		e.rec.add(Step{Type: StepSearchNotFound, Key: keyPtr(key)})
		return record.Record{}, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	leaf, _, err := e.findLeaf(key)
	if err != nil {
		return record.Record{}, err
	}

	idx := binarySearch(leaf.Keys, key)
	if idx == -1 {
		e.rec.add(Step{Type: StepSearchNotFound, NodeID: leaf.PageID, Key: keyPtr(key)})
		return record.Record{}, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	e.rec.add(Step{
		Type:   StepSearchFound,
		NodeID: leaf.PageID,
		Key:    keyPtr(key),
		Value:  recordPtr(leaf.Values[idx]),
		Index:  intPtr(idx),
	})
	return leaf.Values[idx].Clone(), nil
}

func cloneKeys(keys []record.CompositeKey) []record.CompositeKey {
	out := make([]record.CompositeKey, len(keys))
	for i, k := range keys {
		out[i] = k.Clone()
	}
	return out
}

func cloneIDs(ids []uint64) []uint64 {
	if ids == nil {
		return nil
	}
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}
