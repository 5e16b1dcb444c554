package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies the cause attached to a failed Result.
type ErrorType string

const (
	NetworkError     ErrorType = "network"
	TimeoutError     ErrorType = "timeout"
	HTTPError        ErrorType = "http"
	ValidationError  ErrorType = "validation"
	InterceptorError ErrorType = "interceptor"
)

// ClientError is implemented by every cause the client attaches to Error.Cause.
type ClientError interface {
	error
	Type() ErrorType
}

type networkError struct {
	message string
	err     error
}

// NewNetworkError reports a failure to obtain a response. err may be nil.
func NewNetworkError(message string, err error) ClientError {
	return &networkError{message: message, err: err}
}

func (e *networkError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.err)
	}
	return "network error: " + e.message
}

func (e *networkError) Type() ErrorType { return NetworkError }
func (e *networkError) Unwrap() error   { return e.err }

type timeoutError struct {
	message string
	timeout time.Duration
}

// NewTimeoutError reports an attempt that exceeded its deadline.
func NewTimeoutError(message string, timeout time.Duration) ClientError {
	return &timeoutError{message: message, timeout: timeout}
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.message, e.timeout)
}

func (e *timeoutError) Type() ErrorType { return TimeoutError }

// Timeout returns the deadline that was exceeded.
func (e *timeoutError) Timeout() time.Duration { return e.timeout }

type httpError struct {
	message    string
	statusCode int
	body       []byte
}

// NewHTTPError reports a well-formed response with a failure status.
func NewHTTPError(message string, statusCode int, body []byte) ClientError {
	return &httpError{message: message, statusCode: statusCode, body: body}
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.statusCode, e.message)
}

func (e *httpError) Type() ErrorType { return HTTPError }
func (e *httpError) StatusCode() int { return e.statusCode }
func (e *httpError) Body() []byte    { return e.body }

type validationError struct {
	message string
	field   string
}

// NewValidationError reports a payload that could not be encoded or decoded.
func NewValidationError(message, field string) ClientError {
	return &validationError{message: message, field: field}
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return "validation error: " + e.message
}

func (e *validationError) Type() ErrorType { return ValidationError }

type interceptorError struct {
	message string
	stage   string
	err     error
}

// NewInterceptorError reports a request or response interceptor failure.
// stage names where it happened, e.g. "request" or "response".
func NewInterceptorError(message, stage string, err error) ClientError {
	return &interceptorError{message: message, stage: stage, err: err}
}

func (e *interceptorError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("interceptor error [%s]: %s: %v", e.stage, e.message, e.err)
	}
	return fmt.Sprintf("interceptor error [%s]: %s", e.stage, e.message)
}

func (e *interceptorError) Type() ErrorType { return InterceptorError }
func (e *interceptorError) Unwrap() error   { return e.err }

// IsErrorType reports whether err is a ClientError of type t.
// Only the outermost ClientError in the chain is inspected.
func IsErrorType(err error, t ErrorType) bool {
	var ce ClientError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Type() == t
}

// IsHTTPStatusError reports whether err carries an HTTP error with statusCode.
func IsHTTPStatusError(err error, statusCode int) bool {
	var he *httpError
	if !errors.As(err, &he) {
		return false
	}
	return he.statusCode == statusCode
}

// IsSuccessStatus reports whether code is in the 2xx range.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}
