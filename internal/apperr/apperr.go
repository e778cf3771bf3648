// Package apperr defines the error taxonomy shared by the coordinator and the
// HTTP layer: a machine-readable code, a human-readable message, and the HTTP
// status to map it to.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes used across the service.
const (
	CodeValidation    = "ValidationError"
	CodeNotFound      = "NotFoundError"
	CodeUpload        = "UploadError"
	CodeMetadataBatch = "MetadataBatchError"
	CodeInternal      = "InternalError"
)

// Error is a typed application error. Wrapped causes stay reachable through
// errors.Is / errors.As via Unwrap.
type Error struct {
	// Code is the machine-readable error code (e.g. "ValidationError").
	Code string
	// Message is a human-readable description of the error.
	Message string
	// HTTPStatus is the HTTP status code to return for this error.
	HTTPStatus int
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Validation returns a ValidationError with a formatted message. Validation
// failures are rejected before any store is touched.
func Validation(format string, args ...any) *Error {
	return &Error{
		Code:       CodeValidation,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: 400,
	}
}

// NotFound returns a NotFoundError for the given resource description.
func NotFound(format string, args ...any) *Error {
	return &Error{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: 404,
	}
}

// Upload wraps a blob store put failure. Upload errors trigger compensation
// of any blobs already uploaded in the same invocation.
func Upload(err error) *Error {
	return &Error{
		Code:       CodeUpload,
		Message:    "uploading image to blob store failed",
		HTTPStatus: 502,
		Err:        err,
	}
}

// MetadataBatch wraps a rejected atomic metadata batch (e.g. a constraint
// violation). The batch is all-or-nothing, so no row-level compensation is
// needed; blob-level compensation still runs.
func MetadataBatch(err error) *Error {
	return &Error{
		Code:       CodeMetadataBatch,
		Message:    "metadata batch execution failed",
		HTTPStatus: 500,
		Err:        err,
	}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: 500,
		Err:        err,
	}
}

// CodeOf extracts the application error code from err, or CodeInternal if err
// is not an *Error.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// StatusOf extracts the HTTP status from err, or 500 if err is not an *Error.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.HTTPStatus
	}
	return 500
}
