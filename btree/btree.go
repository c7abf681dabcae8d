package btree

import (
	"errors"
	"fmt"

	"bptlab/record"
)

// DefaultOrder is the fanout used when no order is configured.
const DefaultOrder = 4

// Failure kinds surfaced by engine operations. KeyNotFound and DuplicateKey
// are expected, non-fatal misses; PageNotFound indicates corrupted state and
// is treated as an internal-consistency failure.
var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrPageNotFound = errors.New("page not found in node map")
)

// IsKeyNotFound reports whether err wraps ErrKeyNotFound.
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsDuplicateKey reports whether err wraps ErrDuplicateKey.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// NodeType discriminates internal pages from leaf pages.
type NodeType string

const (
	NodeInternal NodeType = "internal"
	NodeLeaf     NodeType = "leaf"
)

// Node is one page of the tree. Internal nodes carry k separator keys and
// k+1 child page ids; leaf nodes carry k keys, k parallel records, and
// sibling pointers forming a doubly linked list across all leaves in
// ascending key order. A sibling pointer of 0 means "none".
type Node struct {
	PageID   uint64                `json:"pageId"`
	Type     NodeType              `json:"type"`
	Keys     []record.CompositeKey `json:"keys"`
	Children []uint64              `json:"children,omitempty"`
	Values   []record.Record       `json:"values,omitempty"`
	NextPage uint64                `json:"nextPage,omitempty"`
	PrevPage uint64                `json:"prevPage,omitempty"`
}

// Clone returns an independent deep copy of the node.
func (n *Node) Clone() *Node {
	c := &Node{
		PageID:   n.PageID,
		Type:     n.Type,
		NextPage: n.NextPage,
		PrevPage: n.PrevPage,
	}
	c.Keys = make([]record.CompositeKey, len(n.Keys))
	for i, k := range n.Keys {
		c.Keys[i] = k.Clone()
	}
	if n.Children != nil {
		c.Children = make([]uint64, len(n.Children))
		copy(c.Children, n.Children)
	}
	if n.Values != nil {
		c.Values = make([]record.Record, len(n.Values))
		for i, v := range n.Values {
			c.Values[i] = v.Clone()
		}
	}
	return c
}

// Tree is a page-addressed B+Tree snapshot: nodes live in a flat map from
// page id to node, edges are stored ids. RootPage 0 means the tree is empty.
// Height counts edges from root to leaf, so a tree whose root is a leaf has
// Height 0; it grows only via root splits and shrinks only via root collapse.
type Tree struct {
	RootPage   uint64           `json:"rootPage"`
	Height     int              `json:"height"`
	Order      int              `json:"order"`
	NextPageID uint64           `json:"nextPageId"`
	Nodes      map[uint64]*Node `json:"nodes"`
}

// New creates an empty tree with the given order.
func New(order int) (*Tree, error) {
	if order < 3 {
		return nil, fmt.Errorf("tree order must be at least 3, got %d", order)
	}
	return &Tree{
		Order:      order,
		NextPageID: 1,
		Nodes:      make(map[uint64]*Node),
	}, nil
}

// MaxKeys is the largest key count a node may hold.
func (t *Tree) MaxKeys() int {
	return t.Order - 1
}

// MinKeys is the smallest key count a non-root node may hold after
// rebalancing: ceil(order/2) - 1.
func (t *Tree) MinKeys() int {
	return (t.Order+1)/2 - 1
}

// IsEmpty reports whether the tree holds no keys.
func (t *Tree) IsEmpty() bool {
	return t.RootPage == 0
}

// KeyCount returns the number of keys stored across all leaves.
func (t *Tree) KeyCount() int {
	total := 0
	for _, n := range t.Nodes {
		if n.Type == NodeLeaf {
			total += len(n.Keys)
		}
	}
	return total
}

// allocatePage hands out the next page id. Ids are never reused while a
// live node references them.
func (t *Tree) allocatePage() uint64 {
	id := t.NextPageID
	t.NextPageID++
	return id
}

func (t *Tree) newLeaf() *Node {
	n := &Node{PageID: t.allocatePage(), Type: NodeLeaf}
	t.Nodes[n.PageID] = n
	return n
}

func (t *Tree) newInternal() *Node {
	n := &Node{PageID: t.allocatePage(), Type: NodeInternal}
	t.Nodes[n.PageID] = n
	return n
}

// Clone returns an independent deep copy of the whole snapshot.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		RootPage:   t.RootPage,
		Height:     t.Height,
		Order:      t.Order,
		NextPageID: t.NextPageID,
		Nodes:      make(map[uint64]*Node, len(t.Nodes)),
	}
	for id, n := range t.Nodes {
		c.Nodes[id] = n.Clone()
	}
	return c
}

// FirstLeaf returns the leftmost leaf, or nil for an empty tree.
func (t *Tree) FirstLeaf() *Node {
	if t.RootPage == 0 {
		return nil
	}
	n := t.Nodes[t.RootPage]
	for n != nil && n.Type == NodeInternal {
		if len(n.Children) == 0 {
			return nil
		}
		n = t.Nodes[n.Children[0]]
	}
	return n
}

// Validate checks the structural invariants between operations: internal
// fanout, key-count bounds, bidirectional leaf links, uniform leaf depth and
// resolvable child pointers. Used by tests and exposed for diagnostics.
func (t *Tree) Validate() error {
	if t.RootPage == 0 {
		if len(t.Nodes) != 0 {
			return fmt.Errorf("empty tree retains %d orphan nodes", len(t.Nodes))
		}
		return nil
	}

	root, ok := t.Nodes[t.RootPage]
	if !ok {
		return fmt.Errorf("%w: root page %d", ErrPageNotFound, t.RootPage)
	}

	var leafDepth = -1
	var walk func(n *Node, depth int) error
	walk = func(n *Node, depth int) error {
		if len(n.Keys) > t.MaxKeys() {
			return fmt.Errorf("node %d holds %d keys, max is %d", n.PageID, len(n.Keys), t.MaxKeys())
		}
		if n.PageID != t.RootPage && len(n.Keys) < t.MinKeys() {
			return fmt.Errorf("non-root node %d holds %d keys, min is %d", n.PageID, len(n.Keys), t.MinKeys())
		}

		if n.Type == NodeLeaf {
			if leafDepth == -1 {
				leafDepth = depth
			} else if depth != leafDepth {
				return fmt.Errorf("leaf %d at depth %d, expected uniform depth %d", n.PageID, depth, leafDepth)
			}
			if len(n.Values) != len(n.Keys) {
				return fmt.Errorf("leaf %d has %d values for %d keys", n.PageID, len(n.Values), len(n.Keys))
			}
			if n.NextPage != 0 {
				next, ok := t.Nodes[n.NextPage]
				if !ok {
					return fmt.Errorf("%w: leaf %d nextPage %d", ErrPageNotFound, n.PageID, n.NextPage)
				}
				if next.PrevPage != n.PageID {
					return fmt.Errorf("leaf chain broken: %d.next=%d but %d.prev=%d", n.PageID, n.NextPage, next.PageID, next.PrevPage)
				}
			}
			return nil
		}

		if len(n.Children) != len(n.Keys)+1 {
			return fmt.Errorf("internal node %d has %d children for %d keys", n.PageID, len(n.Children), len(n.Keys))
		}
		for _, childID := range n.Children {
			child, ok := t.Nodes[childID]
			if !ok {
				return fmt.Errorf("%w: child %d of node %d", ErrPageNotFound, childID, n.PageID)
			}
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, 0); err != nil {
		return err
	}
	if leafDepth != t.Height {
		return fmt.Errorf("height is %d but leaves sit at depth %d", t.Height, leafDepth)
	}
	return nil
}
