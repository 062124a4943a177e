package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers and the status line.
const (
	CodeValidation     = "VALIDATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeSessionInvalid = "SESSION_INVALID"
	CodeRequestFailed  = "REQUEST_FAILED"
	CodeTransport      = "TRANSPORT_ERROR"
	CodeCancelled      = "CANCELLED"
	CodeInternal       = "INTERNAL_ERROR"
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

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
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

// NewSessionInvalid reports that work was refused because the local session is gone.
func NewSessionInvalid(reason string) error {
	return NewDomainError(CodeSessionInvalid, "session invalid", http.StatusUnauthorized, map[string]any{"reason": reason})
}

// NewRequestFailed wraps a non-2xx backend response. The raw body is kept in
// Details so callers can log what the backend said.
func NewRequestFailed(method, path string, status int, body []byte) error {
	details := map[string]any{"method": method, "path": path}
	if len(body) > 0 {
		details["response"] = string(body)
	}
	return &DomainError{
		Code:       CodeRequestFailed,
		Message:    fmt.Sprintf("%s %s returned %d", method, path, status),
		HTTPStatus: status,
		Details:    details,
	}
}

// NewTransportError wraps failures that never produced a response.
func NewTransportError(method, path string, err error) error {
	return &DomainError{
		Code:    CodeTransport,
		Message: fmt.Sprintf("%s %s failed", method, path),
		Details: map[string]any{"method": method, "path": path},
		Err:     err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal error",
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
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &DomainError{Code: CodeCancelled, Message: "operation cancelled", Err: err}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

// Detail returns the most useful description of err for diagnostics: the
// backend response body when there was one, otherwise the message.
func Detail(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if resp, ok := domainErr.Details["response"].(string); ok && resp != "" {
			return resp
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
