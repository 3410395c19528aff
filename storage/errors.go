package storage

import "errors"

var (
	// ErrNotFound indicates no record exists for the requested key.
	ErrNotFound = errors.New("record not found")
)
