package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/chunkdb/chunkdb/internal/chunk"
	"github.com/chunkdb/chunkdb/internal/schema"
	"github.com/chunkdb/chunkdb/pkg"
)

// Options configures dataset creation. Passed explicitly; there is no
// process-wide configuration.
type Options struct {
	// Name of the dataset; defaults to the directory base name.
	Name string
	// ChunkRows is the maximum row count per chunk.
	ChunkRows int
	// Separator is the field separator of the input; ',' when zero.
	Separator rune
	// Header controls whether the first record holds column names.
	// Without it columns are named V1..Vn.
	Header bool
	// Types optionally declares the column types, one per column,
	// bypassing inference.
	Types []string
	// SampleRows bounds the records buffered for type inference.
	SampleRows int
	// CacheSize bounds the decoded chunk cache of the returned Dataset.
	CacheSize int
}

const (
	default_sample_rows = 128
	DEFAULT_CHUNK_ROWS  = 4096
)

// Create ingests a delimited stream into a new chunked dataset under
// dir. Exclusive per directory: a concurrent writer on the same dir
// fails with ErrConcurrentWrite. On error, chunks already flushed are
// left behind and must be discarded by the caller.
func Create(dir string, r io.Reader, opts Options) (*Dataset, error) {
	cr := csv.NewReader(r)
	if opts.Separator != 0 {
		cr.Comma = opts.Separator
	}

	line := 0 // source line where the last record started

	read := func() ([]string, error) {
		record, err := cr.Read()
		if err != nil {
			var parse_err *csv.ParseError
			if errors.As(err, &parse_err) {
				return nil, &ParseError{Line: parse_err.Line, Err: parse_err.Err}
			}
			return nil, err
		}
		// FieldPos, not a counter: quoted fields may span lines.
		line, _ = cr.FieldPos(0)
		return record, nil
	}

	// Read the header (or synthesize one) plus the inference sample
	// before any chunk is written: the schema must be settled first.
	var header []string
	sample := [][]string{}
	sample_lines := []int{}

	first, err := read()
	if err == io.EOF {
		return nil, &ParseError{Line: 1, Err: errors.New("empty input")}
	}
	if err != nil {
		return nil, err
	}

	if opts.Header {
		header = first
	} else {
		header = schema.SyntheticHeader(len(first))
		sample = append(sample, first)
		sample_lines = append(sample_lines, line)
	}

	sample_rows := opts.SampleRows
	if sample_rows <= 0 {
		sample_rows = default_sample_rows
	}
	for len(sample) < sample_rows {
		record, err := read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		sample = append(sample, record)
		sample_lines = append(sample_lines, line)
	}

	var s *schema.Schema
	if opts.Types != nil {
		s, err = schema.Declared(header, opts.Types)
	} else {
		s, err = schema.Infer(header, sample)
	}
	if err != nil {
		return nil, err
	}

	chunk_rows := opts.ChunkRows
	if chunk_rows <= 0 {
		chunk_rows = DEFAULT_CHUNK_ROWS
	}
	w, err := NewWriter(dir, s, chunk_rows)
	if err != nil {
		return nil, err
	}

	append_record := func(record []string, record_line int) error {
		values := make([]any, len(record))
		for i, raw := range record {
			v, err := w.Schema().ColumnAt(i).Parse(raw)
			if err != nil {
				return &ParseError{Line: record_line, Err: err}
			}
			values[i] = v
		}
		return w.Append(values)
	}

	for i, record := range sample {
		if err := append_record(record, sample_lines[i]); err != nil {
			w.Abort()
			return nil, err
		}
	}

	for {
		record, err := read()
		if err == io.EOF {
			break
		}
		if err != nil {
			w.Abort()
			return nil, err
		}
		if err := append_record(record, line); err != nil {
			w.Abort()
			return nil, err
		}
	}

	name := opts.Name
	if name == "" {
		name = path.Base(dir)
	}

	d, err := w.Commit(name)
	if err != nil {
		return nil, err
	}
	d.cache.Resize(cacheSize(opts.CacheSize))
	pkg.InfoLog("created dataset", name, "in", dir)
	return d, nil
}

// Open reloads a dataset from its metadata file alone: the schema and
// chunk table are read eagerly, row data is not. Each chunk's stored
// row count is checked against its file header; any mismatch or
// missing chunk fails with ErrCorruptMetadata.
func Open(dir string, cache_size int) (*Dataset, error) {
	m, err := readMeta(dir)
	if err != nil {
		return nil, err
	}

	s, err := schema.New(m.Columns)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptMetadata, err)
	}

	total := 0
	for _, entry := range m.Chunks {
		rows, err := chunk.RowCount(dir, entry.Id)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %s: %s", ErrCorruptMetadata, entry.Id, err)
		}
		if rows != entry.Rows {
			return nil, fmt.Errorf("%w: chunk %s holds %d rows, metadata says %d",
				ErrCorruptMetadata, entry.Id, rows, entry.Rows)
		}
		total += rows
	}
	if total != m.TotalRows {
		return nil, fmt.Errorf("%w: chunks hold %d rows, metadata says %d",
			ErrCorruptMetadata, total, m.TotalRows)
	}

	return newDataset(dir, m, s, cache_size)
}

func cacheSize(n int) int {
	if n <= 0 {
		return DEFAULT_CHUNK_CACHE
	}
	return n
}
