package utils

import (
	"errors"
	"net/http"
	"time"
)

// Kind classifies an AppError for status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindValidation
	KindNotFound
	KindRateLimited
	KindConflict
)

// Standard error codes returned to clients
const (
	ErrUnauthorized = "UNAUTHORIZED"
	ErrForbidden    = "FORBIDDEN"
	ErrValidation   = "VALIDATION_ERROR"
	ErrNotFound     = "NOT_FOUND"
	ErrRateLimited  = "RATE_LIMITED"
	ErrConflict     = "CONFLICT"
	ErrInternal     = "INTERNAL"
)

type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any

	// RetryAt is set on rate-limited errors.
	RetryAt time.Time
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return &AppError{Kind: KindUnauthorized, Code: ErrUnauthorized, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Code: ErrForbidden, Message: message}
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Code: ErrValidation, Message: message}
}

func NewNotFoundError(what string) *AppError {
	return &AppError{Kind: KindNotFound, Code: ErrNotFound, Message: what + " not found"}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Code: ErrConflict, Message: message}
}

func NewRateLimitedError(retryAt time.Time) *AppError {
	return &AppError{
		Kind:    KindRateLimited,
		Code:    ErrRateLimited,
		Message: "rate limit exceeded, try again later",
		RetryAt: retryAt,
	}
}

// NewInternalError wraps a storage or unexpected failure. The message stays server-side.
func NewInternalError(message string, origin error) *AppError {
	return &AppError{Kind: KindInternal, Code: ErrInternal, Message: message, Origin: origin}
}

// AsAppError unwraps err into an *AppError if there is one in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}

// HTTPStatus maps an error kind to its response status.
func (appErr *AppError) HTTPStatus() int {
	switch appErr.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
