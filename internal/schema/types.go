package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ColumnType string

const (
	ColumnTypeInt      ColumnType = "Int"
	ColumnTypeFloat    ColumnType = "Float"
	ColumnTypeString   ColumnType = "String"
	ColumnTypeCategory ColumnType = "Category"
	ColumnTypeDate     ColumnType = "Date"
)

var VALID_COLUMN_TYPES = []ColumnType{
	ColumnTypeInt, ColumnTypeFloat, ColumnTypeString,
	ColumnTypeCategory, ColumnTypeDate,
}

func ParseColumnType(s string) (ColumnType, error) {
	for _, t := range VALID_COLUMN_TYPES {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid column type %q", s)
}

// Dates are stored as whole days since the unix epoch.
const date_layout = "2006-01-02"

func parseDate(raw string) (int64, error) {
	t, err := time.Parse(date_layout, raw)
	if err != nil {
		return 0, err
	}
	return t.Unix() / (24 * 60 * 60), nil
}

func formatDate(days int64) string {
	return time.Unix(days*24*60*60, 0).UTC().Format(date_layout)
}

// Parse converts a raw text field into the canonical in-memory value
// for the column type: int64 for Int and Date, float64 for Float,
// string for String and Category.
func (c *Column) Parse(raw string) (any, error) {
	switch c.Type {
	case ColumnTypeInt:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid Int %q", c.Name, raw)
		}
		return v, nil
	case ColumnTypeFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid Float %q", c.Name, raw)
		}
		return v, nil
	case ColumnTypeDate:
		v, err := parseDate(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid Date %q", c.Name, raw)
		}
		return v, nil
	case ColumnTypeString, ColumnTypeCategory:
		return raw, nil
	}
	return nil, fmt.Errorf("column %s: unsupported type %s", c.Name, c.Type)
}

// Format renders a canonical value back to its text form.
func (c *Column) Format(value any) string {
	switch c.Type {
	case ColumnTypeInt:
		return strconv.FormatInt(value.(int64), 10)
	case ColumnTypeFloat:
		return strconv.FormatFloat(value.(float64), 'g', -1, 64)
	case ColumnTypeDate:
		return formatDate(value.(int64))
	default:
		return value.(string)
	}
}

// Normalize coerces an externally supplied value (e.g. a decoded json
// literal, where every number is a float64) to the canonical value for
// the column type. Returns false when the value cannot represent the type.
func (c *Column) Normalize(value any) (any, bool) {
	switch c.Type {
	case ColumnTypeInt:
		switch v := value.(type) {
		case int:
			return int64(v), true
		case int64:
			return v, true
		case float64:
			if v == float64(int64(v)) {
				return int64(v), true
			}
		}
	case ColumnTypeFloat:
		switch v := value.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	case ColumnTypeDate:
		switch v := value.(type) {
		case int64:
			return v, true
		case int:
			return int64(v), true
		case string:
			if days, err := parseDate(v); err == nil {
				return days, true
			}
		}
	case ColumnTypeString, ColumnTypeCategory:
		if v, ok := value.(string); ok {
			return v, true
		}
	}
	return nil, false
}

// Compare orders two canonical values of this column's type.
func (c *Column) Compare(a, b any) int {
	switch c.Type {
	case ColumnTypeInt, ColumnTypeDate:
		x, y := a.(int64), b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case ColumnTypeFloat:
		x, y := a.(float64), b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	default:
		return strings.Compare(a.(string), b.(string))
	}
}
