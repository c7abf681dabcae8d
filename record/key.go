package record

import (
	"bytes"
	"fmt"
)

// CompositeKey is an ordered, non-empty sequence of typed columns forming
// an index key.
type CompositeKey struct {
	Columns []Column `json:"columns"`
}

// NewKey creates a composite key from the given columns.
func NewKey(columns ...Column) CompositeKey {
	return CompositeKey{Columns: columns}
}

// Compare orders two composite keys. Keys with fewer columns sort before
// keys with more columns, regardless of any shared prefix: a one-column key
// and a two-column key are never equal even when the first column matches.
// Keys of equal arity compare column by column; the first unequal column
// decides. An empty key sorts before any non-empty key.
func (k CompositeKey) Compare(other CompositeKey) int {
	switch {
	case len(k.Columns) < len(other.Columns):
		return -1
	case len(k.Columns) > len(other.Columns):
		return 1
	}

	for i := range k.Columns {
		if cmp := compareColumns(k.Columns[i], other.Columns[i]); cmp != 0 {
			return cmp
		}
	}
	return 0
}

// Equal reports whether both keys compare as equal.
func (k CompositeKey) Equal(other CompositeKey) bool {
	return k.Compare(other) == 0
}

// Clone returns an independent copy of the key.
func (k CompositeKey) Clone() CompositeKey {
	cols := make([]Column, len(k.Columns))
	copy(cols, k.Columns)
	return CompositeKey{Columns: cols}
}

// String renders the key as "(v1, v2, ...)".
func (k CompositeKey) String() string {
	var buf bytes.Buffer
	buf.WriteString("(")
	for i, col := range k.Columns {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%v", col.Value)
	}
	buf.WriteString(")")
	return buf.String()
}
