package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Type inference prefers the narrowest type every sampled value fits:
// Int, then Float, then Date, then String. Category is never inferred;
// it must be declared explicitly.
func inferColumnType(samples []string) ColumnType {
	is_int, is_float, is_date := true, true, true
	seen := false

	for _, raw := range samples {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		seen = true

		if is_int {
			if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
				is_int = false
			}
		}
		if is_float {
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				is_float = false
			}
		}
		if is_date {
			if _, err := parseDate(raw); err != nil {
				is_date = false
			}
		}
	}

	switch {
	case !seen:
		return ColumnTypeString
	case is_int:
		return ColumnTypeInt
	case is_float:
		return ColumnTypeFloat
	case is_date:
		return ColumnTypeDate
	}
	return ColumnTypeString
}

// Infer builds a Schema from a header and a sample of records.
func Infer(header []string, sample [][]string) (*Schema, error) {
	columns := make([]*Column, 0, len(header))
	for i, name := range header {
		values := make([]string, 0, len(sample))
		for _, record := range sample {
			if i < len(record) {
				values = append(values, record[i])
			}
		}
		columns = append(columns, NewColumn(name, inferColumnType(values)))
	}
	return New(columns)
}

// Declared builds a Schema from a header and explicit type names,
// one per column.
func Declared(header []string, type_names []string) (*Schema, error) {
	if len(type_names) != len(header) {
		return nil, fmt.Errorf("declared %d types for %d columns", len(type_names), len(header))
	}
	columns := make([]*Column, 0, len(header))
	for i, name := range header {
		t, err := ParseColumnType(type_names[i])
		if err != nil {
			return nil, err
		}
		columns = append(columns, NewColumn(name, t))
	}
	return New(columns)
}

// SyntheticHeader names columns V1..Vn for header-less input.
func SyntheticHeader(n int) []string {
	header := make([]string, n)
	for i := range header {
		header[i] = fmt.Sprintf("V%d", i+1)
	}
	return header
}
