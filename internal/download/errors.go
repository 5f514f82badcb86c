package download

import (
	"errors"
	"fmt"
)

// ErrUnsafePath is returned when a local path would escape the mirror root.
var ErrUnsafePath = errors.New("local path escapes mirror root")

// FilesystemError describes a failed directory or file write.
type FilesystemError struct {
	// Op is the failed operation, "mkdir" or "write".
	Op string
	// Path is the filesystem path involved.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
