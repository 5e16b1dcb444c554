package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// Fixed details used in error results.
const (
	DetailUnauthorized   = "Unauthorized - please log in again"
	DetailForbidden      = "Access forbidden"
	DetailGeneric        = "An error occurred"
	DetailNetwork        = "Network error"
	DetailServerWakingUp = "Request failed - server may be waking up"
)

// Error is the failure variant of a Result. StatusCode is 0 when no HTTP
// response was obtained.
type Error struct {
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`

	// Cause is the typed reason, usually a ClientError. It is not serialized.
	Cause error `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Detail, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Result holds exactly one of Data or Error. A Result with neither set is a
// success without payload, the answer to a 204 response.
type Result[T any] struct {
	Data  *T     `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// OK reports whether r is a success.
func (r Result[T]) OK() bool {
	return r.Error == nil
}

// Err returns r.Error as an error, or nil on success.
func (r Result[T]) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// Value returns the payload, or the zero value when there is none.
func (r Result[T]) Value() T {
	var zero T
	if r.Data == nil {
		return zero
	}
	return *r.Data
}

func success[T any](v *T) Result[T] {
	return Result[T]{Data: v}
}

func failure[T any](detail string, status int, cause error) Result[T] {
	return Result[T]{Error: &Error{Detail: detail, StatusCode: status, Cause: cause}}
}

// Decode converts a raw JSON result into a typed one. A payload that does not
// fit T becomes a status 0 failure.
func Decode[T any](raw Result[json.RawMessage]) Result[T] {
	if raw.Error != nil {
		return Result[T]{Error: raw.Error}
	}
	if raw.Data == nil {
		return Result[T]{}
	}

	var v T
	if err := json.Unmarshal(*raw.Data, &v); err != nil {
		return failure[T]("Failed to decode response: "+err.Error(), 0,
			NewValidationError(err.Error(), "body"))
	}
	return success(&v)
}

// Execute runs req against endpoint with retryBudget extra attempts and decodes the payload into T.
func Execute[T any](ctx context.Context, c Client, endpoint string, req *Request, retryBudget int) Result[T] {
	return Decode[T](c.Do(ctx, endpoint, req, retryBudget))
}

// Get issues a GET and decodes the payload into T.
func Get[T any](ctx context.Context, c Client, endpoint string, opts ...CallOption) Result[T] {
	return Decode[T](c.Get(ctx, endpoint, opts...))
}

// Post JSON-encodes payload, issues a POST and decodes the answer into T.
func Post[T any](ctx context.Context, c Client, endpoint string, payload any, opts ...CallOption) Result[T] {
	return Decode[T](c.Post(ctx, endpoint, payload, opts...))
}

// Put JSON-encodes payload, issues a PUT and decodes the answer into T.
func Put[T any](ctx context.Context, c Client, endpoint string, payload any, opts ...CallOption) Result[T] {
	return Decode[T](c.Put(ctx, endpoint, payload, opts...))
}

// Patch JSON-encodes payload, issues a PATCH and decodes the answer into T.
func Patch[T any](ctx context.Context, c Client, endpoint string, payload any, opts ...CallOption) Result[T] {
	return Decode[T](c.Patch(ctx, endpoint, payload, opts...))
}

// Delete issues a DELETE and decodes the answer, if any, into T.
func Delete[T any](ctx context.Context, c Client, endpoint string, opts ...CallOption) Result[T] {
	return Decode[T](c.Delete(ctx, endpoint, opts...))
}
