package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/chunkdb/chunkdb/internal/schema"
)

const (
	META_FILE = "meta.json"
	LOCK_FILE = ".chunkdb.lock"
)

type chunkEntry struct {
	Id   string `json:"id"`
	Rows int    `json:"rows"`
}

// metaFile is the only dataset state loaded eagerly: the schema, the
// ordered chunk table with per-chunk row counts, and the total.
type metaFile struct {
	Name      string           `json:"name"`
	Columns   []*schema.Column `json:"columns"`
	Chunks    []chunkEntry     `json:"chunks"`
	TotalRows int              `json:"total_rows"`
}

func writeMeta(dir string, m *metaFile) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path.Join(dir, META_FILE), data, 0644)
}

func readMeta(dir string) (*metaFile, error) {
	data, err := os.ReadFile(path.Join(dir, META_FILE))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptMetadata, err)
	}

	var m metaFile
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptMetadata, err)
	}
	return &m, nil
}
