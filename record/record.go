package record

import (
	"bytes"
	"fmt"
)

// Record is an ordered sequence of typed columns representing a stored row.
// Records are carried only by leaf nodes.
type Record struct {
	Columns []Column `json:"columns"`
}

// NewRecord creates a record from the given columns.
func NewRecord(columns ...Column) Record {
	return Record{Columns: columns}
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	cols := make([]Column, len(r.Columns))
	copy(cols, r.Columns)
	return Record{Columns: cols}
}

// Equal reports whether two records carry the same columns.
func (r Record) Equal(other Record) bool {
	if len(r.Columns) != len(other.Columns) {
		return false
	}
	for i := range r.Columns {
		if compareColumns(r.Columns[i], other.Columns[i]) != 0 {
			return false
		}
	}
	return true
}

// String renders the record as "{v1, v2, ...}".
func (r Record) String() string {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%v", col.Value)
	}
	buf.WriteString("}")
	return buf.String()
}
