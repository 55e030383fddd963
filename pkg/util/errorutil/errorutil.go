package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the HTTP layer and services.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeInvalidStatus       = "INVALID_STATUS"
	CodeInvalidRequestID    = "INVALID_REQUEST_ID"
	CodeNoPendingRequest    = "NO_PENDING_REQUEST"
	CodeRecipientUnresolved = "RECIPIENT_UNRESOLVED"
	CodeTransportFailure    = "TRANSPORT_FAILURE"
	CodeInternal            = "INTERNAL_ERROR"
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

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInvalidStatus(status string) error {
	return NewDomainError(CodeInvalidStatus, "invalid status provided", http.StatusBadRequest, map[string]any{"status": status})
}

func NewInvalidRequestID(requestID string) error {
	return NewDomainError(CodeInvalidRequestID, "invalid requestId", http.StatusBadRequest, map[string]any{"request_id": requestID})
}

func NewNoPendingRequest() error {
	return NewDomainError(CodeNoPendingRequest, "no pending info request found", http.StatusBadRequest, nil)
}

func NewRecipientUnresolved(message string, details map[string]any) error {
	return NewDomainError(CodeRecipientUnresolved, message, http.StatusUnprocessableEntity, details)
}

// NewTransportFailure wraps a mail or push delivery error.
func NewTransportFailure(message string, err error) error {
	return &DomainError{
		Code:       CodeTransportFailure,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
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
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
