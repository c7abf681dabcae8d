package dbcli

import (
	"fmt"
	"strconv"
	"strings"

	"bptlab/record"
)

// parseColumn turns one CLI token into a typed column. Tokens may carry an
// explicit type prefix ("int:42", "string:abc", "float:1.5", "bool:true");
// bare tokens are inferred as int, then float, then bool, then string.
func parseColumn(token string) (record.Column, error) {
	if typ, val, ok := strings.Cut(token, ":"); ok {
		switch strings.ToLower(typ) {
		case "int":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return record.Column{}, fmt.Errorf("invalid int %q: %v", val, err)
			}
			return record.NewInt(n), nil
		case "string", "str":
			return record.NewString(val), nil
		case "float":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return record.Column{}, fmt.Errorf("invalid float %q: %v", val, err)
			}
			return record.NewFloat(f), nil
		case "bool":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return record.Column{}, fmt.Errorf("invalid bool %q: %v", val, err)
			}
			return record.NewBool(b), nil
		}
	}

	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return record.NewInt(n), nil
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return record.NewFloat(f), nil
	}
	if b, err := strconv.ParseBool(token); err == nil {
		return record.NewBool(b), nil
	}
	return record.NewString(token), nil
}

func parseColumns(s string) ([]record.Column, error) {
	tokens := strings.Split(s, ",")
	cols := make([]record.Column, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, fmt.Errorf("empty column in %q", s)
		}
		col, err := parseColumn(tok)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// parseKey parses a comma-separated composite key, e.g. "42" or "42,string:us".
func parseKey(s string) (record.CompositeKey, error) {
	cols, err := parseColumns(s)
	if err != nil {
		return record.CompositeKey{}, err
	}
	return record.NewKey(cols...), nil
}

// parseRecord parses a comma-separated row of column values.
func parseRecord(s string) (record.Record, error) {
	cols, err := parseColumns(s)
	if err != nil {
		return record.Record{}, err
	}
	return record.NewRecord(cols...), nil
}
