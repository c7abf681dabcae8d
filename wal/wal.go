package wal

import "fmt"

// EntryType classifies the mutation recorded by a WAL entry.
type EntryType string

const (
	EntryInsert EntryType = "insert"
	EntryUpdate EntryType = "update"
	EntryDelete EntryType = "delete"
)

// Entry is a single simulated write-ahead-log record. Entries describe
// mutation intent for display; there is no real page image behind them.
type Entry struct {
	LSN    uint64    `json:"lsn"`
	Type   EntryType `json:"type"`
	PageID uint64    `json:"pageId"`
}

// Log is a simulated append-only write-ahead log. LSNs increase
// monotonically for the life of the log, including across save/load cycles.
type Log struct {
	NextLSN uint64  `json:"nextLSN"`
	Entries []Entry `json:"entries"`
}

// NewLog creates an empty log whose first append receives LSN 1.
func NewLog() *Log {
	return &Log{NextLSN: 1}
}

// Append records a mutation intent against a page and returns its LSN.
func (l *Log) Append(typ EntryType, pageID uint64) Entry {
	e := Entry{LSN: l.NextLSN, Type: typ, PageID: pageID}
	l.NextLSN++
	l.Entries = append(l.Entries, e)
	return e
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	return len(l.Entries)
}

// Tail returns up to n most recent entries for display.
func (l *Log) Tail(n int) []Entry {
	if n <= 0 || n >= len(l.Entries) {
		out := make([]Entry, len(l.Entries))
		copy(out, l.Entries)
		return out
	}
	out := make([]Entry, n)
	copy(out, l.Entries[len(l.Entries)-n:])
	return out
}

// Clone returns an independent copy of the log.
func (l *Log) Clone() *Log {
	entries := make([]Entry, len(l.Entries))
	copy(entries, l.Entries)
	return &Log{NextLSN: l.NextLSN, Entries: entries}
}

// String summarizes the log state.
func (l *Log) String() string {
	return fmt.Sprintf("wal{nextLSN=%d entries=%d}", l.NextLSN, len(l.Entries))
}
