package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"bptlab/btree"
	"bptlab/cache"
	"bptlab/config"
	"bptlab/wal"
)

var (
	ErrTreeNotFound     = errors.New("tree not found")
	ErrTreeExists       = errors.New("tree already exists")
	ErrCapacityExceeded = errors.New("tree capacity exceeded")
	ErrNoCurrentTree    = errors.New("no current tree selected")
)

const currentTreeKey = "current_tree"

// Manager owns every named tree. Trees are loaded lazily from SQLite and
// kept live in memory so WAL LSNs and cache counters accumulate across
// operations; each committed operation rewrites the tree's persisted blob.
type Manager struct {
	mu      sync.Mutex
	db      *sql.DB
	log     *zap.Logger
	cfg     *config.Config
	entries map[string]*Entry
}

// NewManager opens (or creates) the SQLite file backing the tree store.
func NewManager(cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trees (
		name TEXT PRIMARY KEY,
		data BLOB
	);
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %v", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
		logger.Warn("failed to set pragmas", zap.Error(err))
	}

	return &Manager{
		db:      db,
		log:     logger,
		cfg:     cfg,
		entries: make(map[string]*Entry),
	}, nil
}

// Close releases the underlying database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}

// CreateTree registers a new empty tree. An empty name gets a generated one.
// Creation fails once the configured tree limit is reached.
func (m *Manager) CreateTree(name string) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		name = "tree-" + strings.Split(uuid.New().String(), "-")[0]
	}

	count, err := m.countTrees()
	if err != nil {
		return nil, err
	}
	if count >= m.cfg.Storage.MaxTrees {
		return nil, fmt.Errorf("%w: limit is %d trees", ErrCapacityExceeded, m.cfg.Storage.MaxTrees)
	}
	if exists, err := m.treeExists(name); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %s", ErrTreeExists, name)
	}

	tree, err := btree.New(m.cfg.Tree.Order)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	entry := &Entry{
		Metadata: Metadata{
			Name:       name,
			Order:      m.cfg.Tree.Order,
			PageSize:   m.cfg.Tree.PageSize,
			CacheSize:  m.cfg.Tree.CacheSize,
			WalEnabled: m.cfg.Tree.WalEnabled,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		Tree:  tree,
		WAL:   wal.NewLog(),
		Cache: cache.New(m.cfg.Tree.CacheSize),
	}

	if err := m.saveEntry(entry); err != nil {
		return nil, err
	}
	m.entries[name] = entry

	// The first tree becomes current automatically.
	if count == 0 {
		if err := m.setMeta(currentTreeKey, name); err != nil {
			return nil, err
		}
	}

	m.log.Info("created tree",
		zap.String("name", name),
		zap.Int("order", entry.Metadata.Order))
	meta := entry.Metadata
	return &meta, nil
}

// GetTree returns the live entry for a named tree, loading it from disk on
// first access.
func (m *Manager) GetTree(name string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getEntry(name)
}

// DeleteTree removes a tree and everything persisted for it.
func (m *Manager) DeleteTree(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if exists, err := m.treeExists(name); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%w: %s", ErrTreeNotFound, name)
	}

	if _, err := m.db.Exec("DELETE FROM trees WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete tree: %v", err)
	}
	delete(m.entries, name)

	if current, _ := m.getMeta(currentTreeKey); current == name {
		if err := m.setMeta(currentTreeKey, ""); err != nil {
			return err
		}
	}

	m.log.Info("deleted tree", zap.String("name", name))
	return nil
}

// ClearTree empties a tree's keys while keeping its WAL and cache counters,
// so instrumentation history survives a reset.
func (m *Manager) ClearTree(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.getEntry(name)
	if err != nil {
		return err
	}

	fresh, err := btree.New(entry.Metadata.Order)
	if err != nil {
		return err
	}
	entry.Tree = fresh
	entry.Cache.Clear()

	if err := m.saveEntry(entry); err != nil {
		return err
	}
	m.log.Info("cleared tree", zap.String("name", name))
	return nil
}

// ListTrees returns metadata for every stored tree, sorted by name.
func (m *Manager) ListTrees() ([]Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.db.Query("SELECT data FROM trees")
	if err != nil {
		return nil, fmt.Errorf("failed to list trees: %v", err)
	}
	defer rows.Close()

	var metas []Metadata
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var p persistedTree
		if err := json.Unmarshal(blob, &p); err != nil {
			return nil, fmt.Errorf("failed to decode tree blob: %v", err)
		}
		metas = append(metas, p.Metadata)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

// GetMetadata returns a tree's metadata refreshed from its live state.
func (m *Manager) GetMetadata(name string) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.getEntry(name)
	if err != nil {
		return nil, err
	}
	meta := entry.Metadata
	meta.KeyCount = entry.Tree.KeyCount()
	meta.Height = entry.Tree.Height
	return &meta, nil
}

// CurrentTree returns the name of the selected tree.
func (m *Manager) CurrentTree() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, err := m.getMeta(currentTreeKey)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrNoCurrentTree
	}
	return name, nil
}

// SetCurrentTree selects the tree subsequent CLI operations act on.
func (m *Manager) SetCurrentTree(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if exists, err := m.treeExists(name); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%w: %s", ErrTreeNotFound, name)
	}
	return m.setMeta(currentTreeKey, name)
}

// --- internal helpers, caller holds m.mu ---

func (m *Manager) getEntry(name string) (*Entry, error) {
	if entry, ok := m.entries[name]; ok {
		return entry, nil
	}

	var blob []byte
	err := m.db.QueryRow("SELECT data FROM trees WHERE name = ?", name).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrTreeNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tree: %v", err)
	}

	var p persistedTree
	if err := json.Unmarshal(blob, &p); err != nil {
		return nil, fmt.Errorf("failed to decode tree blob: %v", err)
	}
	entry := fromPersisted(&p)
	m.entries[name] = entry
	return entry, nil
}

func (m *Manager) saveEntry(entry *Entry) error {
	blob, err := json.Marshal(entry.toPersisted())
	if err != nil {
		return fmt.Errorf("failed to encode tree: %v", err)
	}
	if _, err := m.db.Exec(
		"INSERT OR REPLACE INTO trees (name, data) VALUES (?, ?)",
		entry.Metadata.Name, blob,
	); err != nil {
		return fmt.Errorf("failed to save tree: %v", err)
	}
	return nil
}

func (m *Manager) treeExists(name string) (bool, error) {
	var one int
	err := m.db.QueryRow("SELECT 1 FROM trees WHERE name = ?", name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) countTrees() (int, error) {
	var n int
	if err := m.db.QueryRow("SELECT COUNT(*) FROM trees").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (m *Manager) getMeta(key string) (string, error) {
	var value string
	err := m.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (m *Manager) setMeta(key, value string) error {
	_, err := m.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	return err
}
