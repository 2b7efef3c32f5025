package storage

import "errors"

var (
	// ErrDuplicate is returned when attempting to create a resource that already exists.
	ErrDuplicate = errors.New("resource already exists")

	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidDocument is returned when a document body is not valid JSON.
	ErrInvalidDocument = errors.New("document body is not valid JSON")
)
