package store

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/google/uuid"

	"github.com/chunkdb/chunkdb/internal/chunk"
	"github.com/chunkdb/chunkdb/internal/schema"
	"github.com/chunkdb/chunkdb/pkg"
)

// Writer streams rows into a new chunked dataset: at most chunk_rows
// rows per chunk, chunks linked prev/next like a page chain. Holds the
// directory lock from construction until Commit or Abort. On failure
// partially written chunks stay on disk for the caller to discard.
type Writer struct {
	dir        string
	s          *schema.Schema
	chunk_rows int

	current *chunk.Chunk
	entries []chunkEntry
	total   int
	done    bool
}

func NewWriter(dir string, s *schema.Schema, chunk_rows int) (*Writer, error) {
	if chunk_rows <= 0 {
		return nil, fmt.Errorf("chunk row count must be positive, got %d", chunk_rows)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating dataset directory: %w", err)
	}
	if err := acquireLock(dir); err != nil {
		return nil, err
	}

	return &Writer{
		dir:        dir,
		s:          s.Clone(),
		chunk_rows: chunk_rows,
		current:    chunk.NewChunk(uuid.Nil, uuid.Nil),
	}, nil
}

// Schema is the writer's working schema. Category level dictionaries
// grow on it during writing and are frozen at Commit.
func (w *Writer) Schema() *schema.Schema { return w.s }

func (w *Writer) Append(values []any) error {
	if w.done {
		return errors.New("writer is closed")
	}

	row, err := chunk.EncodeRow(w.s, values)
	if err != nil {
		return err
	}

	if w.current.Rows() == w.chunk_rows {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	w.current.Append(row)
	w.total++
	return nil
}

// rotate links a fresh chunk after the current one and flushes the
// current chunk to disk.
func (w *Writer) rotate() error {
	next := chunk.NewChunk(w.current.Id, uuid.Nil)
	w.current.Next = next.Id

	if err := w.current.WriteToFile(w.dir); err != nil {
		return fmt.Errorf("writing chunk %s: %w", w.current.Id, err)
	}
	w.entries = append(w.entries, chunkEntry{w.current.Id.String(), w.current.Rows()})
	w.current = next
	return nil
}

// Commit flushes the tail chunk, writes the metadata file and releases
// the directory lock. The returned Dataset is ready for reading.
func (w *Writer) Commit(name string) (*Dataset, error) {
	if w.done {
		return nil, errors.New("writer is closed")
	}
	w.done = true
	defer releaseLock(w.dir)

	if w.current.Rows() > 0 {
		if err := w.current.WriteToFile(w.dir); err != nil {
			return nil, fmt.Errorf("writing chunk %s: %w", w.current.Id, err)
		}
		w.entries = append(w.entries, chunkEntry{w.current.Id.String(), w.current.Rows()})
	}

	m := &metaFile{
		Name:      name,
		Columns:   schemaColumns(w.s),
		Chunks:    w.entries,
		TotalRows: w.total,
	}
	if err := writeMeta(w.dir, m); err != nil {
		return nil, fmt.Errorf("writing dataset metadata: %w", err)
	}

	pkg.DebugLog("committed dataset", name, "chunks", len(w.entries), "rows", w.total)
	return newDataset(w.dir, m, w.s, 0)
}

// Abort releases the lock without writing metadata. Chunks already
// flushed are left behind; the directory is not a valid dataset.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	releaseLock(w.dir)
}

func acquireLock(dir string) error {
	f, err := os.OpenFile(path.Join(dir, LOCK_FILE), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrConcurrentWrite, dir)
		}
		return fmt.Errorf("acquiring dataset lock: %w", err)
	}
	return f.Close()
}

func releaseLock(dir string) {
	if err := os.Remove(path.Join(dir, LOCK_FILE)); err != nil {
		pkg.ErrorLog("releasing dataset lock", err)
	}
}

func schemaColumns(s *schema.Schema) []*schema.Column {
	columns := make([]*schema.Column, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		columns = append(columns, s.ColumnAt(i))
	}
	return columns
}
