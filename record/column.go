package record

import (
	"encoding/json"
	"fmt"
)

// ColumnType identifies the scalar type carried by a Column.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeString
	TypeFloat
	TypeBool
)

// String returns the display name of the column type.
func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeString:
		return "STRING"
	case TypeFloat:
		return "FLOAT"
	case TypeBool:
		return "BOOL"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// ParseColumnType maps a display name back to a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	switch s {
	case "INT":
		return TypeInt, nil
	case "STRING":
		return TypeString, nil
	case "FLOAT":
		return TypeFloat, nil
	case "BOOL":
		return TypeBool, nil
	}
	return 0, fmt.Errorf("unknown column type: %q", s)
}

// Column is a single typed scalar value. Value holds int64, string,
// float64 or bool depending on Type.
type Column struct {
	Type  ColumnType
	Value interface{}
}

// NewInt creates an integer column.
func NewInt(val int64) Column {
	return Column{Type: TypeInt, Value: val}
}

// NewString creates a string column.
func NewString(val string) Column {
	return Column{Type: TypeString, Value: val}
}

// NewFloat creates a float column.
func NewFloat(val float64) Column {
	return Column{Type: TypeFloat, Value: val}
}

// NewBool creates a boolean column.
func NewBool(val bool) Column {
	return Column{Type: TypeBool, Value: val}
}

// compareColumns orders two columns. Columns of different types order by
// their type tag so that mixed-type keys still have a total order.
func compareColumns(a, b Column) int {
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}

	switch a.Type {
	case TypeInt:
		av, bv := a.Value.(int64), b.Value.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case TypeString:
		av, bv := a.Value.(string), b.Value.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case TypeFloat:
		av, bv := a.Value.(float64), b.Value.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case TypeBool:
		av, bv := a.Value.(bool), b.Value.(bool)
		switch {
		case !av && bv:
			return -1
		case av && !bv:
			return 1
		}
		return 0
	}
	return 0
}

type columnJSON struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// MarshalJSON encodes the column with its type name so that the value
// can be decoded back into the right Go type.
func (c Column) MarshalJSON() ([]byte, error) {
	return json.Marshal(columnJSON{Type: c.Type.String(), Value: c.Value})
}

// UnmarshalJSON decodes a column, restoring int64 values that plain JSON
// decoding would otherwise widen to float64.
func (c *Column) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	typ, err := ParseColumnType(raw.Type)
	if err != nil {
		return err
	}
	c.Type = typ

	switch typ {
	case TypeInt:
		var v int64
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return fmt.Errorf("failed to decode INT column: %v", err)
		}
		c.Value = v
	case TypeString:
		var v string
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return fmt.Errorf("failed to decode STRING column: %v", err)
		}
		c.Value = v
	case TypeFloat:
		var v float64
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return fmt.Errorf("failed to decode FLOAT column: %v", err)
		}
		c.Value = v
	case TypeBool:
		var v bool
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return fmt.Errorf("failed to decode BOOL column: %v", err)
		}
		c.Value = v
	}
	return nil
}
