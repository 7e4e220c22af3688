package chunk

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chunkdb/chunkdb/internal/schema"
)

// Row records hold one value per schema column, in declaration order:
// Int and Date as 8 byte big-endian two's complement, Float as 8 byte
// IEEE 754 bits, String as a uint32 length prefix plus bytes, Category
// as the uint32 level ordinal of the column's dictionary.

func EncodeRow(s *schema.Schema, values []any) ([]byte, error) {
	if len(values) != s.Len() {
		return nil, fmt.Errorf("row has %d values, schema has %d columns", len(values), s.Len())
	}

	buf := make([]byte, 0, 8*len(values))
	scratch := make([]byte, 8)

	for i, value := range values {
		col := s.ColumnAt(i)
		switch col.Type {
		case schema.ColumnTypeInt, schema.ColumnTypeDate:
			v, ok := value.(int64)
			if !ok {
				return nil, fmt.Errorf("column %s: expected int64, got %T", col.Name, value)
			}
			binary.BigEndian.PutUint64(scratch, uint64(v))
			buf = append(buf, scratch[:8]...)
		case schema.ColumnTypeFloat:
			v, ok := value.(float64)
			if !ok {
				return nil, fmt.Errorf("column %s: expected float64, got %T", col.Name, value)
			}
			binary.BigEndian.PutUint64(scratch, math.Float64bits(v))
			buf = append(buf, scratch[:8]...)
		case schema.ColumnTypeString:
			v, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("column %s: expected string, got %T", col.Name, value)
			}
			binary.BigEndian.PutUint32(scratch, uint32(len(v)))
			buf = append(buf, scratch[:4]...)
			buf = append(buf, v...)
		case schema.ColumnTypeCategory:
			v, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("column %s: expected string, got %T", col.Name, value)
			}
			binary.BigEndian.PutUint32(scratch, uint32(col.AddLevel(v)))
			buf = append(buf, scratch[:4]...)
		default:
			return nil, fmt.Errorf("column %s: unsupported type %s", col.Name, col.Type)
		}
	}
	return buf, nil
}

// DecodeRow decodes the columns marked in want, skipping the rest.
// The result holds one value per wanted column, in schema order.
func DecodeRow(s *schema.Schema, buf []byte, want []bool) ([]any, error) {
	values := make([]any, 0, len(want))
	pos := 0

	need := func(n int) error {
		if pos+n > len(buf) {
			return ERR_TRUNCATED_CHUNK
		}
		return nil
	}

	for i := 0; i < s.Len(); i++ {
		col := s.ColumnAt(i)
		keep := i < len(want) && want[i]

		switch col.Type {
		case schema.ColumnTypeInt, schema.ColumnTypeDate:
			if err := need(8); err != nil {
				return nil, err
			}
			if keep {
				values = append(values, int64(binary.BigEndian.Uint64(buf[pos:])))
			}
			pos += 8
		case schema.ColumnTypeFloat:
			if err := need(8); err != nil {
				return nil, err
			}
			if keep {
				values = append(values, math.Float64frombits(binary.BigEndian.Uint64(buf[pos:])))
			}
			pos += 8
		case schema.ColumnTypeString:
			if err := need(4); err != nil {
				return nil, err
			}
			n := int(binary.BigEndian.Uint32(buf[pos:]))
			pos += 4
			if err := need(n); err != nil {
				return nil, err
			}
			if keep {
				values = append(values, string(buf[pos:pos+n]))
			}
			pos += n
		case schema.ColumnTypeCategory:
			if err := need(4); err != nil {
				return nil, err
			}
			if keep {
				ordinal := int(binary.BigEndian.Uint32(buf[pos:]))
				level, ok := col.Level(ordinal)
				if !ok {
					return nil, fmt.Errorf("column %s: level ordinal %d out of range", col.Name, ordinal)
				}
				values = append(values, level)
			}
			pos += 4
		default:
			return nil, fmt.Errorf("column %s: unsupported type %s", col.Name, col.Type)
		}
	}
	return values, nil
}
