package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies pipeline failures. Each kind maps to one HTTP status.
type ErrorKind string

const (
	ErrUnauthenticated    ErrorKind = "unauthenticated"
	ErrInvalidCredential  ErrorKind = "invalid_credential"
	ErrTenantInactive     ErrorKind = "tenant_inactive"
	ErrOriginNotAllowed   ErrorKind = "origin_not_allowed"
	ErrMalformedBody      ErrorKind = "malformed_body"
	ErrTooManyAttachments ErrorKind = "too_many_attachments"
	ErrFileTooLarge       ErrorKind = "file_too_large"
	ErrInvalidFileType    ErrorKind = "invalid_file_type"
	ErrValidation         ErrorKind = "validation_error"
	ErrStorageUnavailable ErrorKind = "storage_unavailable"
	ErrInternal           ErrorKind = "internal"
)

func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ErrUnauthenticated, ErrInvalidCredential:
		return http.StatusUnauthorized
	case ErrTenantInactive, ErrOriginNotAllowed:
		return http.StatusForbidden
	case ErrMalformedBody, ErrTooManyAttachments, ErrFileTooLarge, ErrInvalidFileType, ErrValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified pipeline failure. Message is safe to show to the
// submitting client; Err is the underlying cause and is only logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a pipeline error, or ErrInternal for anything
// unclassified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrInternal
}
