package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for ids that do not exist in the collection.
var ErrNotFound = errors.New("record not found")

// ErrCursorExhausted is returned when a next-page load is attempted with a
// cursor that already reached the end of data. Recoverable: it simply means
// there are no more pages.
var ErrCursorExhausted = errors.New("cursor exhausted")

// WriteRejectedError reports a failed remote write: network failure,
// permission denial, or validation at the store. The core never retries it;
// the optimistic coordinator rolls local state back and surfaces the failure.
type WriteRejectedError struct {
	Op         string // "create", "update" or "delete"
	Collection string
	ID         string // empty for create
	Err        error
}

func (e *WriteRejectedError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s rejected: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s/%s rejected: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *WriteRejectedError) Unwrap() error { return e.Err }

// MalformedRecordError reports a document that could not be normalized into
// the collection's schema type. Raised at the store boundary so untyped
// values never reach the synchronization core.
type MalformedRecordError struct {
	Collection string
	ID         string
	Err        error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %s/%s: %v", e.Collection, e.ID, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }
