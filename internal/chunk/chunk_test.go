package chunk_test

import (
	"errors"
	"os"
	"path"
	"testing"

	"github.com/google/uuid"
	"gotest.tools/assert"

	. "github.com/chunkdb/chunkdb/internal/chunk"
	"github.com/chunkdb/chunkdb/internal/schema"
)

func newTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New([]*schema.Column{
		schema.NewColumn("id", schema.ColumnTypeInt),
		schema.NewColumn("name", schema.ColumnTypeString),
		schema.NewColumn("score", schema.ColumnTypeFloat),
		schema.NewColumn("color", schema.ColumnTypeCategory),
	})
	assert.NilError(t, err)
	return s
}

func newTestChunk(t *testing.T, s *schema.Schema, n int) *Chunk {
	t.Helper()
	c := NewChunk(uuid.Nil, uuid.Nil)
	colors := []string{"red", "green", "blue"}
	for i := 0; i < n; i++ {
		row, err := EncodeRow(s, []any{int64(i), "row", float64(i) / 2, colors[i%3]})
		assert.NilError(t, err)
		c.Append(row)
	}
	return c
}

func TestChunkFileRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestSchema(t)
	c := newTestChunk(t, s, 5)

	assert.NilError(t, c.WriteToFile(dir))

	loaded, err := Load(dir, c.Id.String())
	assert.NilError(t, err)
	assert.Equal(t, loaded.Rows(), 5)
	assert.Equal(t, loaded.Id, c.Id)

	r := loaded.NewReader(s, nil)
	count := 0
	for r.ReadNext() {
		row := r.Row()
		assert.Equal(t, row[0].(int64), int64(count))
		assert.Equal(t, row[1].(string), "row")
		count++
	}
	assert.NilError(t, r.Err())
	assert.Equal(t, count, 5)
}

func TestChunkRowCountHeader(t *testing.T) {
	dir := t.TempDir()
	s := newTestSchema(t)
	c := newTestChunk(t, s, 7)
	assert.NilError(t, c.WriteToFile(dir))

	n, err := RowCount(dir, c.Id.String())
	assert.NilError(t, err)
	assert.Equal(t, n, 7)
}

func TestRowCountRejectsTruncatedHeader(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New().String()
	assert.NilError(t, os.WriteFile(path.Join(dir, id), make([]byte, 10), 0644))

	_, err := RowCount(dir, id)
	assert.Assert(t, errors.Is(err, ERR_INVALID_CHUNK_HEADER), "got %v", err)
}

func TestLoadRejectsIdMismatch(t *testing.T) {
	dir := t.TempDir()
	s := newTestSchema(t)
	c := newTestChunk(t, s, 1)
	assert.NilError(t, c.WriteToFile(dir))

	// the same bytes under a foreign file name must be rejected
	foreign := uuid.New().String()
	data, err := os.ReadFile(path.Join(dir, c.Id.String()))
	assert.NilError(t, err)
	assert.NilError(t, os.WriteFile(path.Join(dir, foreign), data, 0644))

	_, err = Load(dir, foreign)
	assert.Assert(t, errors.Is(err, ERR_CHUNK_ID_MISMATCH), "got %v", err)
}

func TestReaderColumnSubset(t *testing.T) {
	s := newTestSchema(t)
	c := newTestChunk(t, s, 3)

	// only score (position 2)
	want := []bool{false, false, true, false}
	r := c.NewReader(s, want)

	rows := 0
	for r.ReadNext() {
		row := r.Row()
		assert.Equal(t, len(row), 1)
		assert.Equal(t, row[0].(float64), float64(rows)/2)
		rows++
	}
	assert.NilError(t, r.Err())
	assert.Equal(t, rows, 3)
}

func TestReaderRestartable(t *testing.T) {
	s := newTestSchema(t)
	c := newTestChunk(t, s, 4)

	r := c.NewReader(s, nil)
	var first [][]any
	for r.ReadNext() {
		first = append(first, r.Row())
	}
	assert.NilError(t, r.Err())

	r.Reset()
	var second [][]any
	for r.ReadNext() {
		second = append(second, r.Row())
	}
	assert.NilError(t, r.Err())

	assert.Equal(t, len(first), len(second))
	for i := range first {
		assert.DeepEqual(t, first[i], second[i])
	}
}
