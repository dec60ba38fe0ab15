package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrReplaceFailed wraps any failure while swapping a period
	// snapshot; the previous snapshot stays intact.
	ErrReplaceFailed = errors.New("replace failed")
)
