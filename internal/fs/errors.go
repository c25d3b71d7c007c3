// File: internal/fs/errors.go
package fs

import "errors"

// The error codes surfaced to the filesystem adapter. Operations wrap these
// with context via fmt.Errorf("...: %w", ...); callers classify with
// errors.Is.
var (
	ErrNotFound = errors.New("no such file or directory")
	ErrExists   = errors.New("file exists")
	ErrNotDir   = errors.New("not a directory")
	ErrNotEmpty = errors.New("directory not empty")
	ErrNoSpace  = errors.New("no space left on device")
	ErrAccess   = errors.New("permission denied")
	ErrInval    = errors.New("invalid argument")
	ErrIO       = errors.New("input/output error")
)
