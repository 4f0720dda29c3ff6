package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidNickname   ErrorCode = "INVALID_NICKNAME"
	ErrCodeIllegalTransition ErrorCode = "ILLEGAL_STATE_TRANSITION"
	ErrCodeTargetUnavailable ErrorCode = "TARGET_UNAVAILABLE"
	ErrCodeStaleReference    ErrorCode = "STALE_REFERENCE"
	ErrCodeTransportLost     ErrorCode = "TRANSPORT_LOST"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeRateLimit         ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnavailable       ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Recoverable reports whether the connection that caused the error may keep
// going. Only a lost transport ends the connection.
func (e *AppError) Recoverable() bool {
	return e.Code != ErrCodeTransportLost
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Constructors for the chat error taxonomy. cause is usually a domain
// sentinel so callers can still match it with errors.Is.

func NewInvalidNicknameError(cause error, message string) *AppError {
	return WrapError(cause, ErrCodeInvalidNickname, message, http.StatusBadRequest)
}

func NewIllegalTransitionError(cause error, message string) *AppError {
	return WrapError(cause, ErrCodeIllegalTransition, message, http.StatusConflict)
}

func NewTargetUnavailableError(cause error, message string) *AppError {
	return WrapError(cause, ErrCodeTargetUnavailable, message, http.StatusNotFound)
}

func NewStaleReferenceError(cause error, message string) *AppError {
	return WrapError(cause, ErrCodeStaleReference, message, http.StatusGone)
}

func NewTransportLostError(cause error) *AppError {
	return WrapError(cause, ErrCodeTransportLost, "transport lost", http.StatusGone)
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeUnavailable, message, http.StatusServiceUnavailable)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// CodeOf returns the error code carried by err, or ErrCodeInternal for
// errors that are not AppErrors.
func CodeOf(err error) ErrorCode {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return ErrCodeInternal
}
