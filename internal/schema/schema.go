package schema

import (
	"fmt"

	"github.com/chunkdb/chunkdb/pkg"
)

type UnknownColumnError struct{ Column string }

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}

type DuplicateNameError struct{ Column string }

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate column name %q", e.Column)
}

type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`

	// Category columns carry their level dictionary. Chunk data stores
	// the level ordinal, not the string.
	Levels []string `json:"levels,omitempty"`

	level_idx map[string]int
}

func NewColumn(name string, t ColumnType) *Column {
	return &Column{Name: name, Type: t}
}

// LevelIndex resolves a category value to its dictionary ordinal.
func (c *Column) LevelIndex(value string) (int, bool) {
	if c.level_idx == nil {
		c.level_idx = make(map[string]int, len(c.Levels))
		for i, l := range c.Levels {
			c.level_idx[l] = i
		}
	}
	i, ok := c.level_idx[value]
	return i, ok
}

// AddLevel interns a category value, returning its ordinal. Only the
// ingestion path grows the dictionary; it is frozen once the dataset
// metadata is written.
func (c *Column) AddLevel(value string) int {
	if i, ok := c.LevelIndex(value); ok {
		return i
	}
	i := len(c.Levels)
	c.Levels = append(c.Levels, value)
	c.level_idx[value] = i
	return i
}

func (c *Column) Level(i int) (string, bool) {
	if i < 0 || i >= len(c.Levels) {
		return "", false
	}
	return c.Levels[i], true
}

func (c *Column) clone() *Column {
	return &Column{Name: c.Name, Type: c.Type, Levels: c.Levels}
}

// Schema is the ordered set of typed columns of a dataset. Immutable once
// a dataset is opened: Rename and Project return new values.
type Schema struct {
	Columns *pkg.InsertSortMap[string, *Column]
}

func New(columns []*Column) (*Schema, error) {
	s := &Schema{Columns: pkg.NewInsertSortMap[string, *Column]()}
	for _, c := range columns {
		if s.Columns.Has(c.Name) {
			return nil, &DuplicateNameError{c.Name}
		}
		s.Columns.Push(c.Name, c)
	}
	return s, nil
}

func (s *Schema) Len() int { return s.Columns.Len() }

func (s *Schema) Has(name string) bool { return s.Columns.Has(name) }

func (s *Schema) Column(name string) (*Column, error) {
	if !s.Columns.Has(name) {
		return nil, &UnknownColumnError{name}
	}
	return s.Columns.Get(name), nil
}

// ColumnAt returns the column at declaration position i.
func (s *Schema) ColumnAt(i int) *Column {
	return s.Columns.Get(s.Columns.Sorted[i])
}

// IndexOf returns the declaration position of a column, or -1.
func (s *Schema) IndexOf(name string) int { return s.Columns.IndexOf(name) }

func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns.Sorted))
	copy(names, s.Columns.Sorted)
	return names
}

// Rename produces a new Schema with old_name replaced by new_name at the
// same position, mapped onto the same underlying data.
func (s *Schema) Rename(old_name, new_name string) (*Schema, error) {
	if !s.Columns.Has(old_name) {
		return nil, &UnknownColumnError{old_name}
	}
	if s.Columns.Has(new_name) {
		return nil, &DuplicateNameError{new_name}
	}

	columns := make([]*Column, 0, s.Len())
	for _, name := range s.Columns.Sorted {
		c := s.Columns.Get(name).clone()
		if name == old_name {
			c.Name = new_name
		}
		columns = append(columns, c)
	}
	return New(columns)
}

// Project produces a new Schema holding only the named columns, in the
// requested order.
func (s *Schema) Project(names []string) (*Schema, error) {
	columns := make([]*Column, 0, len(names))
	for _, name := range names {
		c, err := s.Column(name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, c.clone())
	}
	return New(columns)
}

func (s *Schema) Clone() *Schema {
	columns := make([]*Column, 0, s.Len())
	for _, name := range s.Columns.Sorted {
		columns = append(columns, s.Columns.Get(name).clone())
	}
	clone, _ := New(columns)
	return clone
}

func (s *Schema) Equal(other *Schema) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i, name := range s.Columns.Sorted {
		if other.Columns.Sorted[i] != name {
			return false
		}
		if s.Columns.Get(name).Type != other.Columns.Get(name).Type {
			return false
		}
	}
	return true
}
