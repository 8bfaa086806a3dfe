package collection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/docwire/internal/results"
)

// InsertManyError reports failed chunks of an InsertMany. Partial lists the
// ids that were inserted regardless; those insertions are not undone.
type InsertManyError struct {
	Partial results.InsertManyResult
	Errs    []error
}

func (e *InsertManyError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("insert many: %d inserted, %d chunk(s) failed: %s",
		len(e.Partial.InsertedIDs), len(e.Errs), strings.Join(msgs, "; "))
}

// Unwrap exposes the chunk errors to errors.Is and errors.As.
func (e *InsertManyError) Unwrap() []error {
	return e.Errs
}

// UpdateManyError reports a failed page of an UpdateMany, with the counts
// of the pages that succeeded.
type UpdateManyError struct {
	Partial results.UpdateResult
	Err     error
}

func (e *UpdateManyError) Error() string {
	return fmt.Sprintf("update many: %d matched before failure: %v", e.Partial.Info.N, e.Err)
}

func (e *UpdateManyError) Unwrap() error {
	return e.Err
}

// DeleteManyError reports a failed round of a DeleteMany, with the count
// of documents already deleted.
type DeleteManyError struct {
	Partial results.DeleteResult
	Err     error
}

func (e *DeleteManyError) Error() string {
	return fmt.Sprintf("delete many: %d deleted before failure: %v", e.Partial.DeletedCount, e.Err)
}

func (e *DeleteManyError) Unwrap() error {
	return e.Err
}

// TooManyDocumentsError is returned by CountDocuments when the count
// exceeds the caller's upper bound or the server's counting limit.
type TooManyDocumentsError struct {
	Count             int64
	UpperBound        int64
	ServerMaxExceeded bool
}

func (e *TooManyDocumentsError) Error() string {
	if e.ServerMaxExceeded {
		return fmt.Sprintf("document count exceeds %d, the server maximum", e.Count)
	}
	return fmt.Sprintf("document count %d exceeds upper bound %d", e.Count, e.UpperBound)
}

// IsInsertManyError reports whether err is (or wraps) an InsertManyError.
func IsInsertManyError(err error) bool {
	var e *InsertManyError
	return errors.As(err, &e)
}

// IsTooManyDocuments reports whether err is (or wraps) a TooManyDocumentsError.
func IsTooManyDocuments(err error) bool {
	var e *TooManyDocumentsError
	return errors.As(err, &e)
}
