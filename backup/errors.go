package backup

import (
	"errors"
	"fmt"
)

var (
	ErrSameFile     = errors.New("source and destination are the same file")
	ErrNestedMirror = errors.New("source and destination directories overlap")
)

type SourceMissingError struct {
	Source      string
	Destination string
}

func (e *SourceMissingError) Error() string {
	return fmt.Sprintf("cannot backup %s to %s: source does not exist", e.Source, e.Destination)
}

// CopyError wraps a failure of one of the filesystem primitives. Op names the
// primitive that failed.
type CopyError struct {
	Op          string
	Source      string
	Destination string
	Err         error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s %s to %s failed: %v", e.Op, e.Source, e.Destination, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}
