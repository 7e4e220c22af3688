package chunk

import (
	"encoding/binary"

	"github.com/chunkdb/chunkdb/internal/schema"
)

// Reader streams the rows of one chunk, decoding only the wanted
// columns. Restartable: Reset rewinds to the first row, and re-reading
// yields identical rows.
type Reader struct {
	c    *Chunk
	s    *schema.Schema
	want []bool

	pos int
	row []any
	err error
}

// NewReader builds a reader over the chunk's rows. want marks, per
// schema column, whether its values are decoded; nil keeps every column.
func (c *Chunk) NewReader(s *schema.Schema, want []bool) *Reader {
	if want == nil {
		want = make([]bool, s.Len())
		for i := range want {
			want[i] = true
		}
	}
	return &Reader{c: c, s: s, want: want}
}

func (r *Reader) ReadNext() bool {
	if r.err != nil || r.pos >= len(r.c.buf) {
		return false
	}

	if r.pos+row_header_size > len(r.c.buf) {
		r.err = ERR_TRUNCATED_CHUNK
		return false
	}
	size := int(binary.BigEndian.Uint32(r.c.buf[r.pos:]))
	r.pos += row_header_size

	if r.pos+size > len(r.c.buf) {
		r.err = ERR_TRUNCATED_CHUNK
		return false
	}

	row, err := DecodeRow(r.s, r.c.buf[r.pos:r.pos+size], r.want)
	if err != nil {
		r.err = err
		return false
	}
	r.pos += size
	r.row = row
	return true
}

// Row returns the values decoded by the last successful ReadNext.
func (r *Reader) Row() []any { return r.row }

func (r *Reader) Err() error { return r.err }

func (r *Reader) Reset() {
	r.pos = 0
	r.row = nil
	r.err = nil
}
