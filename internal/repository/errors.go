package repository

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when the caller may not access a document.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnauthenticated is returned when no caller identity was supplied.
	ErrUnauthenticated = errors.New("unauthenticated")
)
