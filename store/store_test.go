package store

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"bptlab/btree"
	"bptlab/config"
	"bptlab/record"
)

func testConfig(t *testing.T, maxTrees int) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{
			Path:     filepath.Join(t.TempDir(), "test.db"),
			MaxTrees: maxTrees,
		},
		Tree: config.TreeConfig{
			Order:      4,
			PageSize:   4096,
			CacheSize:  100,
			WalEnabled: true,
		},
	}
}

func newTestManager(t *testing.T, cfg *config.Config) *Manager {
	t.Helper()
	m, err := NewManager(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func intKey(v int64) record.CompositeKey {
	return record.NewKey(record.NewInt(v))
}

func strRec(s string) record.Record {
	return record.NewRecord(record.NewString(s))
}

func TestCreateListDelete(t *testing.T) {
	m := newTestManager(t, testConfig(t, 5))

	if _, err := m.CreateTree("orders"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := m.CreateTree("orders"); err == nil {
		t.Fatalf("duplicate name should be rejected")
	}
	meta, err := m.CreateTree("")
	if err != nil {
		t.Fatalf("create with generated name failed: %v", err)
	}
	if meta.Name == "" {
		t.Fatalf("generated name is empty")
	}

	metas, err := m.ListTrees()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("list = %d trees, want 2", len(metas))
	}

	if err := m.DeleteTree("orders"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := m.DeleteTree("orders"); err == nil {
		t.Fatalf("deleting a missing tree should fail")
	}
}

func TestCapacityLimit(t *testing.T) {
	m := newTestManager(t, testConfig(t, 2))

	if _, err := m.CreateTree("a"); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if _, err := m.CreateTree("b"); err != nil {
		t.Fatalf("create b: %v", err)
	}
	if _, err := m.CreateTree("c"); err == nil {
		t.Fatalf("third tree should exceed the limit")
	}

	// Deleting frees a slot.
	if err := m.DeleteTree("a"); err != nil {
		t.Fatalf("delete a: %v", err)
	}
	if _, err := m.CreateTree("c"); err != nil {
		t.Fatalf("create c after delete: %v", err)
	}
}

func TestCurrentTreeSelection(t *testing.T) {
	m := newTestManager(t, testConfig(t, 5))

	if _, err := m.CurrentTree(); err != ErrNoCurrentTree {
		t.Fatalf("expected ErrNoCurrentTree, got %v", err)
	}

	if _, err := m.CreateTree("first"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if name, err := m.CurrentTree(); err != nil || name != "first" {
		t.Fatalf("first tree should become current, got %q, %v", name, err)
	}

	if err := m.SetCurrentTree("missing"); err == nil {
		t.Fatalf("selecting a missing tree should fail")
	}

	if _, err := m.CreateTree("second"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.SetCurrentTree("second"); err != nil {
		t.Fatalf("set current: %v", err)
	}

	if err := m.DeleteTree("second"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.CurrentTree(); err != ErrNoCurrentTree {
		t.Fatalf("deleting the current tree should clear the selection, got %v", err)
	}
}

func TestOperationsPersistAcrossReopen(t *testing.T) {
	cfg := testConfig(t, 5)
	m := newTestManager(t, cfg)

	if _, err := m.CreateTree("t"); err != nil {
		t.Fatalf("create: %v", err)
	}
	for v := int64(0); v < 25; v++ {
		if res := m.Insert("t", intKey(v), strRec("v")); !res.Success {
			t.Fatalf("insert %d failed: %s", v, res.Error)
		}
	}
	if res := m.Update("t", intKey(7), strRec("updated")); !res.Success {
		t.Fatalf("update failed: %s", res.Error)
	}
	if res := m.Delete("t", intKey(3)); !res.Success {
		t.Fatalf("delete failed: %s", res.Error)
	}

	// Reopen from the same file and verify everything survived, including
	// int64 keys and WAL position.
	m2 := newTestManager(t, cfg)
	res := m2.Search("t", intKey(7))
	if !res.Success {
		t.Fatalf("search after reopen failed: %s", res.Error)
	}
	if res.Value == nil || !res.Value.Equal(strRec("updated")) {
		t.Errorf("value after reopen = %v", res.Value)
	}
	if res := m2.Search("t", intKey(3)); res.Success {
		t.Errorf("deleted key still present after reopen")
	}

	entry, err := m2.GetTree("t")
	if err != nil {
		t.Fatalf("get tree: %v", err)
	}
	if entry.WAL.NextLSN != 28 {
		t.Errorf("NextLSN after reopen = %d, want 28 (25 inserts + update + delete)", entry.WAL.NextLSN)
	}
	if err := entry.Tree.Validate(); err != nil {
		t.Errorf("invalid tree after reopen: %v", err)
	}
}

func TestFailedMutationLeavesTreeUnchanged(t *testing.T) {
	m := newTestManager(t, testConfig(t, 5))

	if _, err := m.CreateTree("t"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if res := m.Insert("t", intKey(1), strRec("a")); !res.Success {
		t.Fatalf("insert: %s", res.Error)
	}

	if res := m.Update("t", intKey(99), strRec("x")); res.Success {
		t.Fatalf("update of a missing key should fail")
	}
	if res := m.Insert("t", intKey(1), strRec("b")); res.Success {
		t.Fatalf("duplicate insert should fail")
	}

	res := m.Search("t", intKey(1))
	if !res.Success || !res.Value.Equal(strRec("a")) {
		t.Errorf("tree changed by failed mutations: %v", res.Value)
	}
	meta, err := m.GetMetadata("t")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.KeyCount != 1 {
		t.Errorf("key count = %d, want 1", meta.KeyCount)
	}
}

func TestClearTreeKeepsInstrumentationHistory(t *testing.T) {
	m := newTestManager(t, testConfig(t, 5))

	if _, err := m.CreateTree("t"); err != nil {
		t.Fatalf("create: %v", err)
	}
	for v := int64(0); v < 5; v++ {
		if res := m.Insert("t", intKey(v), strRec("v")); !res.Success {
			t.Fatalf("insert: %s", res.Error)
		}
	}

	if err := m.ClearTree("t"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	entry, err := m.GetTree("t")
	if err != nil {
		t.Fatalf("get tree: %v", err)
	}
	if !entry.Tree.IsEmpty() {
		t.Errorf("tree not empty after clear")
	}
	if entry.WAL.NextLSN != 6 {
		t.Errorf("clear should keep WAL history, NextLSN = %d, want 6", entry.WAL.NextLSN)
	}
}

func TestBulkLoadThroughManager(t *testing.T) {
	m := newTestManager(t, testConfig(t, 5))

	if _, err := m.CreateTree("t"); err != nil {
		t.Fatalf("create: %v", err)
	}
	res := m.BulkLoad("t", 40, 7)
	if !res.Success {
		t.Fatalf("bulk load failed: %s", res.Error)
	}
	if len(res.Keys) != 40 {
		t.Errorf("bulk load reported %d keys, want 40", len(res.Keys))
	}

	meta, err := m.GetMetadata("t")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.KeyCount != 40 {
		t.Errorf("key count = %d, want 40", meta.KeyCount)
	}

	if res := m.BulkLoad("t", btree.MaxBulkCount+1, 7); res.Success {
		t.Errorf("oversized bulk count should fail")
	}
}
