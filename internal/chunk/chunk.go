package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/google/uuid"
)

// A chunk file starts with a 52 byte header: the chunk id, the previous
// and next chunk ids (16 bytes each, uuid.Nil at the ends of the chain)
// and the row count as a big-endian uint32. The rest is row records,
// each prefixed with its size as a big-endian uint32.
const (
	CHUNK_HEADER_SIZE = 52
	row_header_size   = 4
)

var (
	ERR_INVALID_CHUNK_HEADER = errors.New("invalid chunk header")
	ERR_CHUNK_ID_MISMATCH    = errors.New("chunk id mismatch")
	ERR_TRUNCATED_CHUNK      = errors.New("truncated chunk data")
)

type Chunk struct {
	Id uuid.UUID

	Prev uuid.UUID
	Next uuid.UUID

	buf  []byte
	rows int
}

func NewChunk(prev_id, next_id uuid.UUID) *Chunk {
	return &Chunk{Id: uuid.New(), Prev: prev_id, Next: next_id}
}

func Load(base string, id string) (*Chunk, error) {
	location := path.Join(base, id)
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, err
	}

	if len(data) < CHUNK_HEADER_SIZE {
		return nil, fmt.Errorf("%w: %s", ERR_INVALID_CHUNK_HEADER, id)
	}

	chunk_id, err := uuid.FromBytes(data[0:16])
	if err != nil {
		return nil, fmt.Errorf("%w: chunk id: %s", ERR_INVALID_CHUNK_HEADER, err)
	}
	prev_id, err := uuid.FromBytes(data[16:32])
	if err != nil {
		return nil, fmt.Errorf("%w: previous chunk id: %s", ERR_INVALID_CHUNK_HEADER, err)
	}
	next_id, err := uuid.FromBytes(data[32:48])
	if err != nil {
		return nil, fmt.Errorf("%w: next chunk id: %s", ERR_INVALID_CHUNK_HEADER, err)
	}
	rows := int(binary.BigEndian.Uint32(data[48:CHUNK_HEADER_SIZE]))

	if id != chunk_id.String() {
		return nil, fmt.Errorf("%w: file %s holds chunk %s", ERR_CHUNK_ID_MISMATCH, id, chunk_id)
	}

	return &Chunk{chunk_id, prev_id, next_id, data[CHUNK_HEADER_SIZE:], rows}, nil
}

// RowCount reads only the header of a chunk file and returns its stored
// row count. Used to verify dataset metadata without touching row data.
func RowCount(base string, id string) (int, error) {
	f, err := os.Open(path.Join(base, id))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	header := make([]byte, CHUNK_HEADER_SIZE)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, fmt.Errorf("%w: %s", ERR_INVALID_CHUNK_HEADER, id)
	}

	chunk_id, err := uuid.FromBytes(header[0:16])
	if err != nil || chunk_id.String() != id {
		return 0, fmt.Errorf("%w: %s", ERR_INVALID_CHUNK_HEADER, id)
	}
	return int(binary.BigEndian.Uint32(header[48:CHUNK_HEADER_SIZE])), nil
}

func (c *Chunk) WriteToFile(base string) error {
	buf := make([]byte, 0, CHUNK_HEADER_SIZE+len(c.buf))
	buf = append(buf, c.Id[:]...)
	buf = append(buf, c.Prev[:]...)
	buf = append(buf, c.Next[:]...)

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(c.rows))
	buf = append(buf, header...)
	buf = append(buf, c.buf...)

	return os.WriteFile(path.Join(base, c.Id.String()), buf, 0644)
}

// Append adds one encoded row record to the chunk.
func (c *Chunk) Append(row []byte) {
	header := make([]byte, row_header_size)
	binary.BigEndian.PutUint32(header, uint32(len(row)))
	c.buf = append(c.buf, header...)
	c.buf = append(c.buf, row...)
	c.rows++
}

func (c *Chunk) Rows() int { return c.rows }

// Size is the row data size in bytes, header excluded.
func (c *Chunk) Size() int { return len(c.buf) }
