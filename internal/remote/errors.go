package remote

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"brainbounce/internal/repository"
)

var (
	// ErrSyncDisabled is returned after a permission denial until Retry is called.
	ErrSyncDisabled = errors.New("cloud sync disabled")
	// ErrNoClient is returned when no document store is configured.
	ErrNoClient = errors.New("cloud sync not configured")
	// ErrSignedOut is returned when no user is authenticated on this device.
	ErrSignedOut = errors.New("not signed in")
	// ErrStaleUser is returned for calls made on behalf of a user who is no
	// longer signed in on this device.
	ErrStaleUser = errors.New("user no longer signed in on this device")
)

// Code classifies remote failures.
type Code int

const (
	CodeUnknown Code = iota
	CodeUnavailable
	CodeDeadlineExceeded
	CodeUnauthenticated
	CodePermissionDenied
	CodeNotFound
)

func (c Code) String() string {
	switch c {
	case CodeUnavailable:
		return "unavailable"
	case CodeDeadlineExceeded:
		return "deadline-exceeded"
	case CodeUnauthenticated:
		return "unauthenticated"
	case CodePermissionDenied:
		return "permission-denied"
	case CodeNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// Transient reports whether an operation failing with c is worth retrying.
func (c Code) Transient() bool {
	switch c {
	case CodeUnavailable, CodeDeadlineExceeded, CodeUnauthenticated:
		return true
	default:
		return false
	}
}

// Error wraps a failed remote operation.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps an error from the document store to a Code.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}

	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Code
	}

	switch {
	case errors.Is(err, repository.ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, repository.ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, repository.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded
	case errors.Is(err, driver.ErrBadConn):
		return CodeUnavailable
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrProtocol:
			return CodeUnavailable
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return CodePermissionDenied
		}
	}
	return CodeUnknown
}
