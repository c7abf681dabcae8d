package btree

import (
	"fmt"
	"math/rand"
	"testing"

	"bptlab/record"
)

func intKey(v int64) record.CompositeKey {
	return record.NewKey(record.NewInt(v))
}

func strRec(s string) record.Record {
	return record.NewRecord(record.NewString(s))
}

func newTestTree(t *testing.T, order int) *Tree {
	t.Helper()
	tree, err := New(order)
	if err != nil {
		t.Fatalf("New(%d) failed: %v", order, err)
	}
	return tree
}

func mustInsert(t *testing.T, tree *Tree, inst Instruments, v int64) {
	t.Helper()
	if err := NewEngine(tree, inst).Insert(intKey(v), strRec(fmt.Sprintf("val_%d", v))); err != nil {
		t.Fatalf("insert %d failed: %v", v, err)
	}
}

func mustDelete(t *testing.T, tree *Tree, inst Instruments, v int64) {
	t.Helper()
	if _, err := NewEngine(tree, inst).Delete(intKey(v)); err != nil {
		t.Fatalf("delete %d failed: %v", v, err)
	}
}

func TestNewRejectsTinyOrder(t *testing.T) {
	if _, err := New(2); err == nil {
		t.Fatalf("order 2 should be rejected")
	}
}

func TestInsertAndSearch(t *testing.T) {
	tree := newTestTree(t, DefaultOrder)
	var inst Instruments

	for _, v := range []int64{5, 1, 9, 3, 7} {
		mustInsert(t, tree, inst, v)
	}

	got, err := NewEngine(tree, inst).Search(intKey(3))
	if err != nil {
		t.Fatalf("search 3 failed: %v", err)
	}
	if !got.Equal(strRec("val_3")) {
		t.Errorf("search 3 = %s, want val_3", got)
	}

	if _, err := NewEngine(tree, inst).Search(intKey(4)); !IsKeyNotFound(err) {
		t.Errorf("search 4 should report key not found, got %v", err)
	}
}

func TestDuplicateInsertFails(t *testing.T) {
	tree := newTestTree(t, DefaultOrder)
	var inst Instruments
	mustInsert(t, tree, inst, 1)

	before := tree.Clone()
	err := NewEngine(tree, inst).Insert(intKey(1), strRec("other"))
	if !IsDuplicateKey(err) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}

	got, err := NewEngine(tree, inst).Search(intKey(1))
	if err != nil {
		t.Fatalf("search after failed insert: %v", err)
	}
	if !got.Equal(strRec("val_1")) {
		t.Errorf("value changed by rejected insert: %s", got)
	}
	if tree.KeyCount() != before.KeyCount() {
		t.Errorf("key count changed by rejected insert")
	}
}

func TestLeafSplitKeepsUpperHalfRight(t *testing.T) {
	tree := newTestTree(t, 4)
	var inst Instruments

	for _, v := range []int64{10, 20, 30, 40} {
		mustInsert(t, tree, inst, v)
	}

	if tree.Height != 1 {
		t.Fatalf("height = %d, want 1 after root split", tree.Height)
	}
	root := tree.Nodes[tree.RootPage]
	if root.Type != NodeInternal || len(root.Keys) != 1 {
		t.Fatalf("root = %+v, want internal node with one separator", root)
	}
	if !root.Keys[0].Equal(intKey(30)) {
		t.Errorf("separator = %s, want (30)", root.Keys[0])
	}

	left := tree.Nodes[root.Children[0]]
	right := tree.Nodes[root.Children[1]]
	if len(left.Keys) != 2 || len(right.Keys) != 2 {
		t.Errorf("split left/right hold %d/%d keys, want 2/2", len(left.Keys), len(right.Keys))
	}
	if !right.Keys[0].Equal(intKey(30)) {
		t.Errorf("right leaf starts at %s, want (30)", right.Keys[0])
	}
	if left.NextPage != right.PageID || right.PrevPage != left.PageID {
		t.Errorf("leaf chain not spliced: left.next=%d right.prev=%d", left.NextPage, right.PrevPage)
	}

	if err := tree.Validate(); err != nil {
		t.Errorf("invalid tree after split: %v", err)
	}
}

func TestGrowthKeepsInvariants(t *testing.T) {
	tree := newTestTree(t, 4)
	var inst Instruments

	for v := int64(0); v < 100; v++ {
		mustInsert(t, tree, inst, v)
		if err := tree.Validate(); err != nil {
			t.Fatalf("invalid tree after inserting %d: %v", v, err)
		}
	}

	if tree.Height < 2 {
		t.Errorf("height = %d, want at least 2 for 100 keys at order 4", tree.Height)
	}
	if tree.KeyCount() != 100 {
		t.Errorf("key count = %d, want 100", tree.KeyCount())
	}
	for v := int64(0); v < 100; v++ {
		if _, err := NewEngine(tree, inst).Search(intKey(v)); err != nil {
			t.Fatalf("key %d unreachable after growth: %v", v, err)
		}
	}
}

func TestDeleteBorrowsFromRightSibling(t *testing.T) {
	tree := newTestTree(t, 4)
	var inst Instruments
	for _, v := range []int64{10, 20, 30, 40} {
		mustInsert(t, tree, inst, v)
	}

	mustDelete(t, tree, inst, 20)
	eng := NewEngine(tree, inst)
	if _, err := eng.Delete(intKey(10)); err != nil {
		t.Fatalf("delete 10 failed: %v", err)
	}

	if !hasStep(eng.Steps(), StepBorrowFromRight) {
		t.Errorf("expected a borrow from the right sibling")
	}
	root := tree.Nodes[tree.RootPage]
	if !root.Keys[0].Equal(intKey(40)) {
		t.Errorf("separator after borrow = %s, want (40)", root.Keys[0])
	}
	if err := tree.Validate(); err != nil {
		t.Errorf("invalid tree after borrow: %v", err)
	}
}

func TestDeleteBorrowsFromLeftSibling(t *testing.T) {
	tree := newTestTree(t, 4)
	var inst Instruments
	for _, v := range []int64{10, 20, 30, 40} {
		mustInsert(t, tree, inst, v)
	}

	mustDelete(t, tree, inst, 40)
	eng := NewEngine(tree, inst)
	if _, err := eng.Delete(intKey(30)); err != nil {
		t.Fatalf("delete 30 failed: %v", err)
	}

	if !hasStep(eng.Steps(), StepBorrowFromLeft) {
		t.Errorf("expected a borrow from the left sibling")
	}
	root := tree.Nodes[tree.RootPage]
	if !root.Keys[0].Equal(intKey(20)) {
		t.Errorf("separator after borrow = %s, want (20)", root.Keys[0])
	}
	if err := tree.Validate(); err != nil {
		t.Errorf("invalid tree after borrow: %v", err)
	}
}

func TestDeleteMergeCollapsesRoot(t *testing.T) {
	tree := newTestTree(t, 4)
	var inst Instruments
	for _, v := range []int64{10, 20, 30, 40} {
		mustInsert(t, tree, inst, v)
	}

	mustDelete(t, tree, inst, 40)
	mustDelete(t, tree, inst, 30)
	eng := NewEngine(tree, inst)
	if _, err := eng.Delete(intKey(20)); err != nil {
		t.Fatalf("delete 20 failed: %v", err)
	}

	if !hasStep(eng.Steps(), StepMergeNode) {
		t.Errorf("expected a merge step")
	}
	if tree.Height != 0 {
		t.Errorf("height = %d, want 0 after root collapse", tree.Height)
	}
	root := tree.Nodes[tree.RootPage]
	if root.Type != NodeLeaf || len(root.Keys) != 1 || !root.Keys[0].Equal(intKey(10)) {
		t.Errorf("root after collapse = %+v, want leaf holding (10)", root)
	}
	if err := tree.Validate(); err != nil {
		t.Errorf("invalid tree after collapse: %v", err)
	}
}

func TestDeleteLastKeyEmptiesTree(t *testing.T) {
	tree := newTestTree(t, DefaultOrder)
	var inst Instruments
	mustInsert(t, tree, inst, 7)

	got, err := NewEngine(tree, inst).Delete(intKey(7))
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !got.Equal(strRec("val_7")) {
		t.Errorf("deleted value = %s, want val_7", got)
	}
	if !tree.IsEmpty() || tree.Height != 0 || len(tree.Nodes) != 0 {
		t.Errorf("tree not fully emptied: root=%d height=%d nodes=%d", tree.RootPage, tree.Height, len(tree.Nodes))
	}

	if _, err := NewEngine(tree, inst).Delete(intKey(7)); !IsKeyNotFound(err) {
		t.Errorf("delete from empty tree should report key not found, got %v", err)
	}
}

func TestDeleteMissingKey(t *testing.T) {
	tree := newTestTree(t, DefaultOrder)
	var inst Instruments
	mustInsert(t, tree, inst, 1)

	if _, err := NewEngine(tree, inst).Delete(intKey(2)); !IsKeyNotFound(err) {
		t.Errorf("expected key not found, got %v", err)
	}
	if tree.KeyCount() != 1 {
		t.Errorf("rejected delete changed the tree")
	}
}

func TestUpdateReplacesValueOnly(t *testing.T) {
	tree := newTestTree(t, 4)
	var inst Instruments
	for v := int64(0); v < 20; v++ {
		mustInsert(t, tree, inst, v)
	}
	shape := tree.Clone()

	old, err := NewEngine(tree, inst).Update(intKey(11), strRec("replaced"))
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !old.Equal(strRec("val_11")) {
		t.Errorf("old value = %s, want val_11", old)
	}

	got, err := NewEngine(tree, inst).Search(intKey(11))
	if err != nil {
		t.Fatalf("search after update: %v", err)
	}
	if !got.Equal(strRec("replaced")) {
		t.Errorf("value after update = %s", got)
	}

	if tree.Height != shape.Height || tree.RootPage != shape.RootPage || len(tree.Nodes) != len(shape.Nodes) {
		t.Errorf("update changed the tree shape")
	}
}

func TestUpdateMissingKeyLeavesTreeUntouched(t *testing.T) {
	tree := newTestTree(t, DefaultOrder)
	var inst Instruments
	mustInsert(t, tree, inst, 1)

	eng := NewEngine(tree, inst)
	if _, err := eng.Update(intKey(99), strRec("x")); !IsKeyNotFound(err) {
		t.Fatalf("expected key not found, got %v", err)
	}
	if last := eng.Steps()[len(eng.Steps())-1]; last.Type != StepSearchNotFound {
		t.Errorf("last step = %s, want SEARCH_NOT_FOUND", last.Type)
	}

	got, err := NewEngine(tree, inst).Search(intKey(1))
	if err != nil || !got.Equal(strRec("val_1")) {
		t.Errorf("tree changed by rejected update: %s, %v", got, err)
	}
}

func TestLeafChainStaysOrdered(t *testing.T) {
	tree := newTestTree(t, 4)
	var inst Instruments

	values := rand.New(rand.NewSource(42)).Perm(200)
	for _, v := range values {
		mustInsert(t, tree, inst, int64(v))
	}

	var seen []int64
	for leaf := tree.FirstLeaf(); leaf != nil; {
		for _, k := range leaf.Keys {
			seen = append(seen, k.Columns[0].Value.(int64))
		}
		if leaf.NextPage == 0 {
			break
		}
		leaf = tree.Nodes[leaf.NextPage]
	}

	if len(seen) != 200 {
		t.Fatalf("leaf chain yields %d keys, want 200", len(seen))
	}
	for i, v := range seen {
		if v != int64(i) {
			t.Fatalf("leaf chain out of order at %d: got %d", i, v)
		}
	}
}

func TestRandomizedLifecycle(t *testing.T) {
	tree := newTestTree(t, 4)
	var inst Instruments
	rng := rand.New(rand.NewSource(7))

	order := rng.Perm(300)
	for _, v := range order {
		mustInsert(t, tree, inst, int64(v))
	}
	if err := tree.Validate(); err != nil {
		t.Fatalf("invalid tree after inserts: %v", err)
	}

	removal := rng.Perm(300)
	for i, v := range removal {
		mustDelete(t, tree, inst, int64(v))
		if i%25 == 0 {
			if err := tree.Validate(); err != nil {
				t.Fatalf("invalid tree after %d deletes: %v", i+1, err)
			}
		}
	}
	if !tree.IsEmpty() || len(tree.Nodes) != 0 {
		t.Errorf("tree not empty after deleting everything: %d nodes left", len(tree.Nodes))
	}
}

func hasStep(steps []Step, typ StepType) bool {
	for _, s := range steps {
		if s.Type == typ {
			return true
		}
	}
	return false
}
