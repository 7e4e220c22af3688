package query

import (
	"fmt"

	"github.com/chunkdb/chunkdb/internal/schema"
)

// TypeMismatchError reports a literal or join key whose type does not
// match the column it is compared against.
type TypeMismatchError struct {
	Column string
	Want   schema.ColumnType
	Got    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("column %q is %s, got %s", e.Column, e.Want, e.Got)
}
