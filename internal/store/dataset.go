package store

import (
	"fmt"
	"os"
	"path"

	lru "github.com/hashicorp/golang-lru/v2"
	sorted "github.com/tobshub/go-sortedmap"

	"github.com/chunkdb/chunkdb/internal/chunk"
	"github.com/chunkdb/chunkdb/internal/schema"
)

const DEFAULT_CHUNK_CACHE = 8

type ChunkRef struct {
	Ordinal int
	Id      string
	Rows    int
}

func chunkRefComparisonFunc(a, b *ChunkRef) bool {
	return a.Ordinal < b.Ordinal
}

// Dataset is an opened chunked table: schema plus the chunk location
// table, both in memory; row data stays on disk until read. Safe for
// concurrent readers, each with its own reader cursor; the decoded
// chunk cache is the only shared structure.
type Dataset struct {
	dir  string
	name string
	s    *schema.Schema

	chunks     *sorted.SortedMap[int, *ChunkRef]
	num_chunks int
	total_rows int

	cache *lru.Cache[string, *chunk.Chunk]
}

func newDataset(dir string, m *metaFile, s *schema.Schema, cache_size int) (*Dataset, error) {
	if cache_size <= 0 {
		cache_size = DEFAULT_CHUNK_CACHE
	}
	cache, err := lru.New[string, *chunk.Chunk](cache_size)
	if err != nil {
		return nil, err
	}

	chunks := sorted.New[int, *ChunkRef](len(m.Chunks), chunkRefComparisonFunc)
	for i, entry := range m.Chunks {
		chunks.Insert(i, &ChunkRef{Ordinal: i, Id: entry.Id, Rows: entry.Rows})
	}

	return &Dataset{
		dir:        dir,
		name:       m.Name,
		s:          s,
		chunks:     chunks,
		num_chunks: len(m.Chunks),
		total_rows: m.TotalRows,
		cache:      cache,
	}, nil
}

func (d *Dataset) Dir() string            { return d.dir }
func (d *Dataset) Name() string           { return d.name }
func (d *Dataset) Schema() *schema.Schema { return d.s }
func (d *Dataset) NumChunks() int         { return d.num_chunks }
func (d *Dataset) TotalRows() int         { return d.total_rows }

// ChunkRefs returns the chunk table in ordinal order.
func (d *Dataset) ChunkRefs() []*ChunkRef {
	refs := make([]*ChunkRef, 0, d.num_chunks)
	iter, err := d.chunks.IterCh()
	if err != nil {
		// empty dataset
		return refs
	}

	for rec := range iter.Records() {
		refs = append(refs, rec.Val)
	}
	return refs
}

// ReadChunk opens a restartable streaming reader over one chunk,
// decoding only the requested columns (nil means every column).
func (d *Dataset) ReadChunk(ordinal int, columns []string) (*chunk.Reader, error) {
	ref, ok := d.chunks.Get(ordinal)
	if !ok {
		return nil, fmt.Errorf("chunk ordinal %d out of range", ordinal)
	}

	var want []bool
	if columns != nil {
		want = make([]bool, d.s.Len())
		for _, name := range columns {
			i := d.s.IndexOf(name)
			if i < 0 {
				return nil, &schema.UnknownColumnError{Column: name}
			}
			want[i] = true
		}
	}

	c, cached := d.cache.Get(ref.Id)
	if !cached {
		loaded, err := chunk.Load(d.dir, ref.Id)
		if err != nil {
			return nil, fmt.Errorf("reading chunk %s: %w", ref.Id, err)
		}
		d.cache.Add(ref.Id, loaded)
		c = loaded
	}

	return c.NewReader(d.s, want), nil
}

// Rename swaps in a new schema with the column renamed and persists it.
// Chunk data is untouched; the new schema maps onto the same chunks.
func (d *Dataset) Rename(old_name, new_name string) error {
	renamed, err := d.s.Rename(old_name, new_name)
	if err != nil {
		return err
	}

	m := &metaFile{
		Name:      d.name,
		Columns:   schemaColumns(renamed),
		Chunks:    make([]chunkEntry, 0, d.num_chunks),
		TotalRows: d.total_rows,
	}
	for _, ref := range d.ChunkRefs() {
		m.Chunks = append(m.Chunks, chunkEntry{ref.Id, ref.Rows})
	}

	if err := writeMeta(d.dir, m); err != nil {
		return fmt.Errorf("persisting renamed schema: %w", err)
	}
	d.s = renamed
	// cached chunks are decoded against column positions, which the
	// rename does not move
	return nil
}

type Description struct {
	Name    string              `json:"name"`
	Rows    int                 `json:"rows"`
	Chunks  int                 `json:"chunks"`
	Columns []DescriptionColumn `json:"columns"`
}

type DescriptionColumn struct {
	Name   string            `json:"name"`
	Type   schema.ColumnType `json:"type"`
	Levels int               `json:"levels,omitempty"`
}

// Describe is O(1) over in-memory state; it never touches chunk data.
func (d *Dataset) Describe() Description {
	desc := Description{Name: d.name, Rows: d.total_rows, Chunks: d.num_chunks}
	for i := 0; i < d.s.Len(); i++ {
		c := d.s.ColumnAt(i)
		desc.Columns = append(desc.Columns, DescriptionColumn{
			Name:   c.Name,
			Type:   c.Type,
			Levels: len(c.Levels),
		})
	}
	return desc
}

// DiskSize stats the metadata and chunk files.
func (d *Dataset) DiskSize() (int64, error) {
	var total int64
	info, err := os.Stat(path.Join(d.dir, META_FILE))
	if err != nil {
		return 0, err
	}
	total += info.Size()

	for _, ref := range d.ChunkRefs() {
		info, err := os.Stat(path.Join(d.dir, ref.Id))
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
