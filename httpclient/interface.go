// Package httpclient implements a resilient JSON API client: it attaches the
// session's bearer credential, retries transport failures with backoff,
// evicts the credential on 401 and reduces every call to a single Result.
package httpclient

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"
)

const (
	// DefaultRetryBudget is the number of extra attempts after the first one.
	DefaultRetryBudget = 2
	// DefaultBaseURL is used when no base address is configured.
	DefaultBaseURL = "http://localhost:8000"
	// DefaultLoginPath is where the navigator is sent on 401.
	DefaultLoginPath = "/login"
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxPayloadLogBytes caps logged body previews.
	DefaultMaxPayloadLogBytes = 1024

	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
)

// Client executes API calls. None of its methods return a Go error: every
// outcome, including transport failure, is expressed in the Result.
type Client interface {
	// Do performs req against endpoint (relative to the base URL) with up to
	// retryBudget additional attempts after transport failures.
	Do(ctx context.Context, endpoint string, req *Request, retryBudget int) Result[json.RawMessage]

	Get(ctx context.Context, endpoint string, opts ...CallOption) Result[json.RawMessage]
	Post(ctx context.Context, endpoint string, payload any, opts ...CallOption) Result[json.RawMessage]
	Put(ctx context.Context, endpoint string, payload any, opts ...CallOption) Result[json.RawMessage]
	Patch(ctx context.Context, endpoint string, payload any, opts ...CallOption) Result[json.RawMessage]
	Delete(ctx context.Context, endpoint string, opts ...CallOption) Result[json.RawMessage]
}

// Request describes one logical call. It is reused unchanged for every attempt.
type Request struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

// Response is a single attempt's answer as seen by logging.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats describes an attempt.
type Stats struct {
	ElapsedTime time.Duration
	// CallCount is the number of attempts this client has issued so far.
	CallCount int64
}

// HTTPDoer is the transport primitive. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *nethttp.Request) (*nethttp.Response, error)
}

// RequestInterceptor runs before each attempt is sent. An error aborts the call.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor runs after each attempt's body has been read. resp.Body
// can be read again. An error aborts the call.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds client settings. Collaborators (credential store, navigator,
// transport) are supplied through the Builder.
type Config struct {
	BaseURL string
	// Timeout bounds each attempt including reading the body. Zero disables it.
	Timeout     time.Duration
	RetryBudget int
	Backoff     BackoffPolicy
	Sleeper     Sleeper
	LoginPath   string

	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	DefaultHeaders       map[string]string

	// LogPayloads enables debug-level logging of headers and body previews.
	LogPayloads bool
	// MaxPayloadLogBytes caps logged body previews; 0 means DefaultMaxPayloadLogBytes.
	MaxPayloadLogBytes int

	// RequestIDHeader names the header carrying the per-call request ID (default X-Request-ID).
	RequestIDHeader string
	// NewRequestID generates an ID when the context carries none (default uuid v4).
	NewRequestID func() string
	// EnableW3CTrace adds a traceparent header to every attempt.
	EnableW3CTrace bool
}

// CallOption adjusts a single convenience call.
type CallOption func(*callOptions)

type callOptions struct {
	headers     map[string]string
	retryBudget int
}

// WithHeader sets one caller header. Caller headers override defaults,
// including Content-Type, but never the Authorization header derived from the credential.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithHeaders merges headers into the call's header set.
func WithHeaders(headers map[string]string) CallOption {
	return func(o *callOptions) {
		for k, v := range headers {
			WithHeader(k, v)(o)
		}
	}
}

// WithRetryBudget overrides the client's retry budget for one call.
func WithRetryBudget(n int) CallOption {
	return func(o *callOptions) {
		o.retryBudget = n
	}
}
