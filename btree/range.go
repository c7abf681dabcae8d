package btree

import (
	"fmt"

	"bptlab/record"
)

// RangeQuery returns every key in [start, end] with its record, in ascending
// order. The scan descends once to the leaf holding start and then follows
// the leaf chain, so interior pages are only read on the way down. An empty
// tree or an empty interval yields empty results, not an error.
func (e *Engine) RangeQuery(start, end record.CompositeKey) ([]record.CompositeKey, []record.Record, error) {
	if start.Compare(end) > 0 {
		return nil, nil, fmt.Errorf("invalid range: start %s is after end %s", start, end)
	}

	keys := []record.CompositeKey{}
	values := []record.Record{}
	if e.tree.RootPage == 0 {
		return keys, values, nil
	}

	leaf, _, err := e.findLeaf(start)
	if err != nil {
		return nil, nil, err
	}

	idx := firstGreaterOrEqual(leaf.Keys, start)
	for leaf != nil {
		for ; idx < len(leaf.Keys); idx++ {
			if leaf.Keys[idx].Compare(end) > 0 {
				return keys, values, nil
			}
			keys = append(keys, leaf.Keys[idx].Clone())
			values = append(values, leaf.Values[idx].Clone())
		}

		if leaf.NextPage == 0 {
			break
		}
		next, err := e.loadNode(leaf.NextPage)
		if err != nil {
			return nil, nil, err
		}
		e.rec.add(Step{
			Type:   StepTraverseNode,
			NodeID: next.PageID,
			Keys:   cloneKeys(next.Keys),
		})
		leaf = next
		idx = 0
	}
	return keys, values, nil
}
