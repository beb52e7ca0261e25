// Package apperr defines the error taxonomy shared by the core and the
// transport adapters. Every concrete error unwraps to one of the sentinel
// kinds so callers can branch with errors.Is.
package apperr

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound   = errors.New("not_found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation_error")
)

// Error is a classified failure with a human message and structured details.
type Error struct {
	kind    error
	Message string
	Details map[string]any
}

func newError(kind error, msg string, details map[string]any) *Error {
	return &Error{kind: kind, Message: msg, Details: details}
}

// NotFound reports a referenced entity that does not exist.
func NotFound(msg string, details map[string]any) *Error {
	return newError(ErrNotFound, msg, details)
}

// Forbidden reports an org-scope mismatch or a permission denial.
func Forbidden(msg string, details map[string]any) *Error {
	return newError(ErrForbidden, msg, details)
}

// Conflict reports a state change the current state does not allow.
func Conflict(msg string, details map[string]any) *Error {
	return newError(ErrConflict, msg, details)
}

// Validation reports malformed input.
func Validation(msg string, details map[string]any) *Error {
	return newError(ErrValidation, msg, details)
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.kind }

// Code returns the machine-stable error code.
func (e *Error) Code() string {
	if e.kind == nil {
		return "internal_server_error"
	}
	return e.kind.Error()
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus maps err to a response status code. Unclassified errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus converts err into a gRPC status error. Unclassified errors never
// leak their message.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	appErr, ok := As(err)
	if !ok {
		return status.Error(codes.Internal, "internal error")
	}
	var code codes.Code
	switch {
	case errors.Is(err, ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, ErrForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, ErrConflict):
		code = codes.FailedPrecondition
	case errors.Is(err, ErrValidation):
		code = codes.InvalidArgument
	default:
		code = codes.Internal
	}
	return status.Error(code, appErr.Error())
}
