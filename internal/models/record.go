package models

import (
	"fmt"
	"strconv"
)

// Record is a single result row keyed by column name.
type Record map[string]any

// String returns the text value of col. NULL and missing columns read as "".
func (r Record) String(col string) (string, error) {
	switch v := r[col].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("column %s: unexpected type %T", col, v)
	}
}

// Int64 returns the integer value of col. The boolean is false when the
// column is NULL or missing.
func (r Record) Int64(col string) (int64, bool, error) {
	switch v := r[col].(type) {
	case nil:
		return 0, false, nil
	case int64:
		return v, true, nil
	case int:
		return int64(v), true, nil
	case float64:
		return int64(v), true, nil
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("column %s: %w", col, err)
		}
		return n, true, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("column %s: %w", col, err)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("column %s: unexpected type %T", col, v)
	}
}
