package httpclient

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	nethttp "net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HeaderXRequestID carries the per-call request ID.
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header.
	HeaderTraceParent = "traceparent"
)

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	traceParentKey contextKey = "traceparent"
)

// WithRequestID stores the request ID to send on calls made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored with WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// WithTraceParent stores an explicit traceparent, e.g. one received from an upstream caller.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// TraceParentFromContext returns the traceparent stored with WithTraceParent.
func TraceParentFromContext(ctx context.Context) (string, bool) {
	tp, ok := ctx.Value(traceParentKey).(string)
	return tp, ok && tp != ""
}

// GenerateTraceParent creates a sampled W3C traceparent with random IDs:
// "00-<32 hex>-<16 hex>-01".
func GenerateTraceParent() string {
	var traceID [16]byte
	var spanID [8]byte
	_, _ = crand.Read(traceID[:])
	_, _ = crand.Read(spanID[:])
	// all-zero IDs are invalid
	traceID[15] |= 0x01
	spanID[7] |= 0x01
	return "00-" + hex.EncodeToString(traceID[:]) + "-" + hex.EncodeToString(spanID[:]) + "-01"
}

func newUUID() string {
	return uuid.New().String()
}

// requestID returns the ID for one logical call, stable across its attempts.
func (c *client) requestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	if c.config.NewRequestID != nil {
		if id := c.config.NewRequestID(); id != "" {
			return id
		}
	}
	return newUUID()
}

// applyTraceHeaders sets the request ID header unless the caller supplied one,
// and the traceparent when W3C propagation is enabled. An active span wins
// over a context value, which wins over a generated value.
func (c *client) applyTraceHeaders(ctx context.Context, req *nethttp.Request, requestID string) {
	header := c.requestIDHeader()
	if req.Header.Get(header) == "" {
		req.Header.Set(header, requestID)
	}

	if !c.config.EnableW3CTrace || req.Header.Get(HeaderTraceParent) != "" {
		return
	}
	if trace.SpanContextFromContext(ctx).IsValid() {
		propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))
		return
	}
	if tp, ok := TraceParentFromContext(ctx); ok {
		req.Header.Set(HeaderTraceParent, tp)
		return
	}
	req.Header.Set(HeaderTraceParent, GenerateTraceParent())
}

func (c *client) requestIDHeader() string {
	if c.config.RequestIDHeader != "" {
		return c.config.RequestIDHeader
	}
	return HeaderXRequestID
}

// NewRequestIDInterceptor returns an interceptor that fills header (default
// X-Request-ID) from the context or a fresh uuid when it is missing. Useful
// with transports that bypass the client's own header handling.
func NewRequestIDInterceptor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) != "" {
			return nil
		}
		id, ok := RequestIDFromContext(ctx)
		if !ok {
			id = newUUID()
		}
		req.Header.Set(header, id)
		return nil
	}
}
