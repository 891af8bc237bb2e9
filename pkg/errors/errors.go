package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// ErrorCode is the machine readable part of an error response.
type ErrorCode string

const (
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"

	// ErrCodeUnauthorized means no credential was presented at all;
	// ErrCodeAuthFailed means one was presented and rejected.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeAuthFailed   ErrorCode = "AUTH_FAILED"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid ErrorCode = "TOKEN_INVALID"
)

// Single-use tokens (verification, reset) are reported against the request
// that carried them, so their failures are 400 rather than 401.
var httpStatus = map[ErrorCode]int{
	ErrCodeValidationFailed: http.StatusBadRequest,
	ErrCodeTokenInvalid:     http.StatusBadRequest,
	ErrCodeTokenExpired:     http.StatusBadRequest,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeAuthFailed:       http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeConflict:         http.StatusConflict,
}

// Error is a failure that can be shown to an API caller.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails merges details into the error and returns it.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// MapErrorCodeToHTTPStatus returns 500 for unknown codes.
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap returns nil when err is nil.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// IsCode reports whether any *Error in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Validation builds a VALIDATION_FAILED error. details is keyed by request
// field and may be nil.
func Validation(message string, details map[string]interface{}) *Error {
	e := New(ErrCodeValidationFailed, message)
	if len(details) > 0 {
		e.WithDetails(details)
	}
	return e
}

func Conflict(resourceType, identifier string) *Error {
	return Newf(ErrCodeConflict, "%s already exists: %s", resourceType, identifier)
}

func NotFound(resourceType, identifier string) *Error {
	return Newf(ErrCodeNotFound, "%s not found: %s", resourceType, identifier)
}

func InvalidToken(message string) *Error {
	return New(ErrCodeTokenInvalid, message)
}

func Expired(message string) *Error {
	return New(ErrCodeTokenExpired, message)
}

// AuthFailed builds an AUTH_FAILED error. The message reaches the caller and
// must not say which credential was wrong.
func AuthFailed(message string) *Error {
	return New(ErrCodeAuthFailed, message)
}

func Forbidden(message string) *Error {
	return New(ErrCodeForbidden, message)
}

func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}

// Response is the JSON body of a failed request.
type Response struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Render writes err as a JSON error response. Internal and unstructured
// errors are logged with their cause and rendered with a generic message.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !errors.As(err, &e) || e.Code == ErrCodeInternal {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		e = New(ErrCodeInternal, "internal server error")
	}
	render.Status(r, e.HTTPStatusCode())
	render.JSON(w, r, Response{Code: e.Code, Message: e.Message, Details: e.Details})
}
