package store

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptMetadata is returned when a dataset's metadata file is
	// missing, unreadable, or disagrees with the chunk files on disk.
	ErrCorruptMetadata = errors.New("corrupt dataset metadata")

	// ErrConcurrentWrite is returned when a second writer targets a
	// dataset directory that another writer holds the lock for.
	ErrConcurrentWrite = errors.New("dataset directory locked by another writer")
)

// ParseError reports a malformed input record with its source line.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on line %d: %s", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
