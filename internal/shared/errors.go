package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the resource changed since it was read.
	ErrConflict = errors.New("resource was modified concurrently")
)
