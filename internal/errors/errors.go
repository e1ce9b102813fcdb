// Package errors provides unified error handling with structured error codes.
// Codes are stable strings shared across the daemon API, the CLI, and logs.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode identifies an error class across process boundaries.
type ErrorCode string

const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeInternal        ErrorCode = "INTERNAL"
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeUnavailable     ErrorCode = "UNAVAILABLE"
	CodeTimeout         ErrorCode = "TIMEOUT"
	CodeCancelled       ErrorCode = "CANCELLED"

	CodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	CodeConfigMissing ErrorCode = "CONFIG_MISSING"

	CodeCaptureFailed ErrorCode = "CAPTURE_FAILED"

	CodeOverlayCreateFailed  ErrorCode = "OVERLAY_CREATE_FAILED"
	CodeOverlaySetFailed     ErrorCode = "OVERLAY_SET_FAILED"
	CodeOverlayDestroyFailed ErrorCode = "OVERLAY_DESTROY_FAILED"

	CodeMonitorNotFound ErrorCode = "MONITOR_NOT_FOUND"
	CodeHistoryFailed   ErrorCode = "HISTORY_FAILED"
	CodeClientFailed    ErrorCode = "CLIENT_FAILED"
)

// httpStatusMap maps error codes to HTTP status codes for the daemon API.
var httpStatusMap = map[ErrorCode]int{
	CodeUnknown:         http.StatusInternalServerError,
	CodeInternal:        http.StatusInternalServerError,
	CodeInvalidArgument: http.StatusBadRequest,
	CodeNotFound:        http.StatusNotFound,
	CodeUnavailable:     http.StatusServiceUnavailable,
	CodeTimeout:         http.StatusGatewayTimeout,
	CodeCancelled:       http.StatusRequestTimeout,

	CodeConfigInvalid: http.StatusBadRequest,
	CodeConfigMissing: http.StatusPreconditionFailed,

	CodeCaptureFailed: http.StatusInternalServerError,

	CodeOverlayCreateFailed:  http.StatusBadGateway,
	CodeOverlaySetFailed:     http.StatusBadGateway,
	CodeOverlayDestroyFailed: http.StatusBadGateway,

	CodeMonitorNotFound: http.StatusNotFound,
	CodeHistoryFailed:   http.StatusInternalServerError,
	CodeClientFailed:    http.StatusBadGateway,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     ErrorCode
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// HTTPStatus returns the corresponding HTTP status code.
func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatusMap[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates a new AppError with the given code and message.
func New(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromError extracts the AppError from err, wrapping unknown errors.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout, CodeCaptureFailed, CodeOverlayCreateFailed, CodeOverlaySetFailed:
		return true
	default:
		return false
	}
}
