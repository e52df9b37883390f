package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by handlers and middleware.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeNotFound     = "NOT_FOUND"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeUpstream     = "UPSTREAM_UNAVAILABLE"
	CodeInternal     = "INTERNAL_ERROR"
	CodeTooManyCalls = "TOO_MANY_REQUESTS"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewValidationError(message string, err error, details map[string]any) error {
	return &DomainError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewForbidden(message string, err error) error {
	return &DomainError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden, Err: err}
}

func NewTooManyRequests(message string) error {
	return &DomainError{Code: CodeTooManyCalls, Message: message, HTTPStatus: http.StatusTooManyRequests}
}

func NewConflict(message string, err error) error {
	return &DomainError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict, Err: err}
}

func NewUpstreamError(message string, err error) error {
	return &DomainError{Code: CodeUpstream, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "Error interno del servidor",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "Error interno del servidor",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
