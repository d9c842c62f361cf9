package submission

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrFormNotFound = errors.New("form not found")

// UploadError is the failure of one attached file. It aborts the whole
// submission.
type UploadError struct {
	FieldID  string
	FileName string
	Cause    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q failed: %v", e.FileName, e.Cause)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// ValidationError names the field whose answer was rejected.
type ValidationError struct {
	FieldID string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PersistenceError wraps a fault of the response store.
type PersistenceError struct {
	Cause error
}

func (e *PersistenceError) Error() string {
	return "could not store response: " + e.Cause.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// Outcome labels the result of a submission for logs and metrics.
func Outcome(err error) string {
	var (
		upErr  *UploadError
		valErr *ValidationError
		pErr   *PersistenceError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrFormNotFound):
		return "not_found"
	case errors.As(err, &upErr):
		return "upload_failed"
	case errors.As(err, &valErr):
		return "invalid"
	case errors.As(err, &pErr):
		return "store_failed"
	}
	return "error"
}
