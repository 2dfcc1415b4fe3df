package repository

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned by Save when the aggregate was modified
	// between read and write.
	ErrVersionConflict = errors.New("session version conflict")
)
