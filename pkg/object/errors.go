package object

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested object is not in the store.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidPath marks a file path that would leave the working tree.
	ErrInvalidPath = errors.New("invalid file path")
)

// StorageError reports an I/O failure or malformed persisted state at Path.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
