package store

import (
	"go.uber.org/zap"

	"bptlab/btree"
	"bptlab/record"
)

// Operation runners. Mutating operations run against a deep clone of the
// stored tree and commit the clone only on success, so a failed insert,
// update or delete can never leave a half-applied structure behind. The WAL
// and cache stay live either way because they are observational.

// Search looks a key up in the named tree.
func (m *Manager) Search(name string, key record.CompositeKey) *btree.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.getEntry(name)
	if err != nil {
		return btree.Fail(btree.OpSearch, nil, err)
	}

	eng := btree.NewEngine(entry.Tree, entry.Instruments())
	value, err := eng.Search(key)
	if err != nil {
		return btree.Fail(btree.OpSearch, eng.Steps(), err).WithKey(key)
	}
	return btree.OK(btree.OpSearch, eng.Steps()).WithKey(key).WithValue(value)
}

// Insert adds a key/value pair to the named tree and persists the result.
func (m *Manager) Insert(name string, key record.CompositeKey, value record.Record) *btree.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.getEntry(name)
	if err != nil {
		return btree.Fail(btree.OpInsert, nil, err)
	}

	working := entry.Tree.Clone()
	eng := btree.NewEngine(working, entry.Instruments())
	if err := eng.Insert(key, value); err != nil {
		return btree.Fail(btree.OpInsert, eng.Steps(), err).WithKey(key)
	}

	entry.Tree = working
	if err := m.saveEntry(entry); err != nil {
		return btree.Fail(btree.OpInsert, eng.Steps(), err).WithKey(key)
	}
	m.log.Debug("inserted key",
		zap.String("tree", name),
		zap.String("key", key.String()))
	return btree.OK(btree.OpInsert, eng.Steps()).WithKey(key).WithValue(value)
}

// Update replaces the record stored under a key.
func (m *Manager) Update(name string, key record.CompositeKey, value record.Record) *btree.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.getEntry(name)
	if err != nil {
		return btree.Fail(btree.OpUpdate, nil, err)
	}

	working := entry.Tree.Clone()
	eng := btree.NewEngine(working, entry.Instruments())
	if _, err := eng.Update(key, value); err != nil {
		return btree.Fail(btree.OpUpdate, eng.Steps(), err).WithKey(key)
	}

	entry.Tree = working
	if err := m.saveEntry(entry); err != nil {
		return btree.Fail(btree.OpUpdate, eng.Steps(), err).WithKey(key)
	}
	return btree.OK(btree.OpUpdate, eng.Steps()).WithKey(key).WithValue(value)
}

// Delete removes a key from the named tree.
func (m *Manager) Delete(name string, key record.CompositeKey) *btree.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.getEntry(name)
	if err != nil {
		return btree.Fail(btree.OpDelete, nil, err)
	}

	working := entry.Tree.Clone()
	eng := btree.NewEngine(working, entry.Instruments())
	removed, err := eng.Delete(key)
	if err != nil {
		return btree.Fail(btree.OpDelete, eng.Steps(), err).WithKey(key)
	}

	entry.Tree = working
	if err := m.saveEntry(entry); err != nil {
		return btree.Fail(btree.OpDelete, eng.Steps(), err).WithKey(key)
	}
	return btree.OK(btree.OpDelete, eng.Steps()).WithKey(key).WithValue(removed)
}

// RangeQuery scans [start, end] in the named tree.
func (m *Manager) RangeQuery(name string, start, end record.CompositeKey) *btree.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.getEntry(name)
	if err != nil {
		return btree.Fail(btree.OpRangeQuery, nil, err)
	}

	eng := btree.NewEngine(entry.Tree, entry.Instruments())
	keys, values, err := eng.RangeQuery(start, end)
	if err != nil {
		return btree.Fail(btree.OpRangeQuery, eng.Steps(), err)
	}
	return btree.OK(btree.OpRangeQuery, eng.Steps()).WithPairs(keys, values)
}

// BulkLoad inserts count random pairs into the named tree. Each insert runs
// to completion before the next starts and the whole batch persists once at
// the end.
func (m *Manager) BulkLoad(name string, count int, seed int64) *btree.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.getEntry(name)
	if err != nil {
		return btree.Fail(btree.OpBulkLoad, nil, err)
	}

	working := entry.Tree.Clone()
	res, err := btree.BulkLoad(working, entry.Instruments(), count, seed)
	if err != nil {
		return btree.Fail(btree.OpBulkLoad, nil, err)
	}

	entry.Tree = working
	if err := m.saveEntry(entry); err != nil {
		return btree.Fail(btree.OpBulkLoad, res.Steps, err)
	}
	m.log.Info("bulk loaded tree",
		zap.String("tree", name),
		zap.Int("count", len(res.Keys)))
	return btree.OK(btree.OpBulkLoad, res.Steps).WithPairs(res.Keys, res.Values)
}
