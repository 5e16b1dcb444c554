package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-apiclient/credential"
	"github.com/gaborage/go-apiclient/internal/tracking"
	"github.com/gaborage/go-apiclient/logger"
	"github.com/gaborage/go-apiclient/navigation"
)

// Outcomes recorded on metrics and spans.
const (
	outcomeData         = "data"
	outcomeEmpty        = "empty"
	outcomeHTTPError    = "http_error"
	outcomeUnauthorized = "unauthorized"
	outcomeForbidden    = "forbidden"
	outcomeTransport    = "transport_error"
	outcomeCanceled     = "canceled"
	outcomeInterceptor  = "interceptor_error"
	outcomeInvalid      = "invalid_request"
)

type client struct {
	logger      logger.Logger
	config      *Config
	transport   HTTPDoer
	credentials credential.Store
	navigator   navigation.Navigator
	tracer      trace.Tracer
	callCount   atomic.Int64
}

var _ Client = (*client)(nil)

// call is the per-invocation state shared by all attempts.
type call struct {
	method    string
	url       string
	headers   map[string]string
	body      []byte
	requestID string
}

// attemptError is a failed attempt. Terminal failures are not retried and
// carry their own outcome.
type attemptError struct {
	err      error
	terminal bool
	outcome  string
}

func (c *client) Get(ctx context.Context, endpoint string, opts ...CallOption) Result[json.RawMessage] {
	return c.convenience(ctx, nethttp.MethodGet, endpoint, nil, false, opts)
}

func (c *client) Post(ctx context.Context, endpoint string, payload any, opts ...CallOption) Result[json.RawMessage] {
	return c.convenience(ctx, nethttp.MethodPost, endpoint, payload, true, opts)
}

func (c *client) Put(ctx context.Context, endpoint string, payload any, opts ...CallOption) Result[json.RawMessage] {
	return c.convenience(ctx, nethttp.MethodPut, endpoint, payload, true, opts)
}

func (c *client) Patch(ctx context.Context, endpoint string, payload any, opts ...CallOption) Result[json.RawMessage] {
	return c.convenience(ctx, nethttp.MethodPatch, endpoint, payload, true, opts)
}

func (c *client) Delete(ctx context.Context, endpoint string, opts ...CallOption) Result[json.RawMessage] {
	return c.convenience(ctx, nethttp.MethodDelete, endpoint, nil, false, opts)
}

func (c *client) convenience(ctx context.Context, method, endpoint string, payload any, hasBody bool, opts []CallOption) Result[json.RawMessage] {
	o := callOptions{retryBudget: c.config.RetryBudget}
	for _, opt := range opts {
		opt(&o)
	}

	req := &Request{Method: method, Headers: o.headers}
	if hasBody && payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			tracking.RecordResult(ctx, method, outcomeInvalid, 0, 0)
			return failure[json.RawMessage]("Failed to encode request body: "+err.Error(), 0,
				NewValidationError(err.Error(), "payload"))
		}
		req.Body = body
	}
	return c.Do(ctx, endpoint, req, o.retryBudget)
}

func (c *client) Do(ctx context.Context, endpoint string, req *Request, retryBudget int) Result[json.RawMessage] {
	if req == nil {
		req = &Request{}
	}
	if retryBudget < 0 {
		retryBudget = 0
	}

	cl := &call{
		method: strings.ToUpper(req.Method),
		url:    strings.TrimRight(c.config.BaseURL, "/") + endpoint,
		body:   req.Body,
	}
	if cl.method == "" {
		cl.method = nethttp.MethodGet
	}

	ctx, span := c.tracer.Start(ctx, "apiclient "+cl.method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", cl.method),
			attribute.String("url.full", cl.url),
			attribute.Int("apiclient.retry_budget", retryBudget),
		))
	defer span.End()

	start := time.Now()
	result, outcome := c.execute(ctx, cl, req.Headers, retryBudget)

	status := 0
	if result.Error != nil {
		status = result.Error.StatusCode
		span.SetStatus(codes.Error, result.Error.Detail)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("apiclient.outcome", outcome))
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	tracking.RecordResult(ctx, cl.method, outcome, status, time.Since(start))

	return result
}

// execute runs the attempt loop for one logical call.
func (c *client) execute(ctx context.Context, cl *call, callerHeaders map[string]string, retryBudget int) (Result[json.RawMessage], string) {
	token, hasToken := c.credentials.Get(ctx)
	cl.headers = c.buildHeaders(callerHeaders, token, hasToken)
	cl.requestID = c.requestID(ctx)

	for attempt := 0; attempt <= retryBudget; attempt++ {
		if err := ctx.Err(); err != nil {
			return canceled(err), outcomeCanceled
		}

		resp, aerr := c.attempt(ctx, cl)
		if aerr == nil {
			result, outcome, parseErr := c.classify(ctx, resp)
			if parseErr == nil {
				return result, outcome
			}
			aerr = &attemptError{err: parseErr}
		}

		if aerr.terminal {
			return failure[json.RawMessage](aerr.err.Error(), 0, aerr.err), aerr.outcome
		}
		if ctx.Err() != nil {
			return canceled(ctx.Err()), outcomeCanceled
		}
		if attempt == retryBudget {
			return transportFailure(aerr.err), outcomeTransport
		}

		delay := c.config.Backoff(attempt)
		c.logRetry(cl.method, cl.url, cl.requestID, attempt, delay, aerr.err)
		tracking.RecordRetry(ctx, cl.method, tracking.Classify(aerr.err))
		trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
			attribute.Int("apiclient.attempt", attempt+1),
			attribute.String("error.type", tracking.Classify(aerr.err)),
			attribute.Int64("apiclient.backoff_ms", delay.Milliseconds()),
		))

		if err := c.config.Sleeper.Sleep(ctx, delay); err != nil {
			return canceled(err), outcomeCanceled
		}
	}

	return failure[json.RawMessage](DetailNetwork, 0, NewNetworkError(DetailNetwork, nil)), outcomeTransport
}

// buildHeaders merges, last write wins: JSON content type, client defaults,
// caller headers, then the bearer credential.
func (c *client) buildHeaders(callerHeaders map[string]string, token string, hasToken bool) map[string]string {
	headers := make(map[string]string, 2+len(c.config.DefaultHeaders)+len(callerHeaders))
	set := func(k, v string) {
		// keys differing only in case collapse onto the canonical form
		headers[nethttp.CanonicalHeaderKey(k)] = v
	}

	set(headerContentType, contentTypeJSON)
	for k, v := range c.config.DefaultHeaders {
		set(k, v)
	}
	for k, v := range callerHeaders {
		set(k, v)
	}
	if hasToken {
		set(headerAuthorization, "Bearer "+token)
	}
	return headers
}

func (c *client) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout > 0 {
		return context.WithTimeout(ctx, c.config.Timeout)
	}
	return context.WithCancel(ctx)
}

// attempt sends the request once and reads the full body.
func (c *client) attempt(ctx context.Context, cl *call) (*Response, *attemptError) {
	attemptCtx, cancel := c.attemptContext(ctx)
	defer cancel()

	var body io.Reader = nethttp.NoBody
	if len(cl.body) > 0 {
		body = bytes.NewReader(cl.body)
	}
	httpReq, err := nethttp.NewRequestWithContext(attemptCtx, cl.method, cl.url, body)
	if err != nil {
		return nil, &attemptError{err: NewValidationError(err.Error(), "url"), terminal: true, outcome: outcomeInvalid}
	}
	for k, v := range cl.headers {
		httpReq.Header.Set(k, v)
	}
	c.applyTraceHeaders(ctx, httpReq, cl.requestID)

	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(attemptCtx, httpReq); err != nil {
			return nil, &attemptError{err: NewInterceptorError("request interceptor failed", "request", err), terminal: true, outcome: outcomeInterceptor}
		}
	}

	c.logRequest(httpReq, cl.body, cl.requestID)
	callCount := c.callCount.Add(1)
	tracking.RecordAttempt(ctx, cl.method)

	start := time.Now()
	httpResp, err := c.transport.Do(httpReq)
	if err != nil {
		return nil, &attemptError{err: c.transportError(attemptCtx, err)}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &attemptError{err: c.transportError(attemptCtx, err)}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       data,
		Headers:    httpResp.Header,
		Stats:      Stats{ElapsedTime: time.Since(start), CallCount: callCount},
	}

	for _, interceptor := range c.config.ResponseInterceptors {
		httpResp.Body = io.NopCloser(bytes.NewReader(data))
		if err := interceptor(attemptCtx, httpReq, httpResp); err != nil {
			return nil, &attemptError{err: NewInterceptorError("response interceptor failed", "response", err), terminal: true, outcome: outcomeInterceptor}
		}
	}

	c.logResponse(resp, cl.requestID)
	return resp, nil
}

// transportError wraps a failure to obtain a response, distinguishing an
// exceeded per-attempt deadline from other failures.
func (c *client) transportError(attemptCtx context.Context, err error) error {
	var netErr net.Error
	timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	if timedOut {
		return &timeoutCause{ClientError: NewTimeoutError("attempt exceeded deadline", c.config.Timeout), err: err}
	}
	return NewNetworkError("request failed", err)
}

// timeoutCause keeps the transport error reachable from a timeout.
type timeoutCause struct {
	ClientError
	err error
}

func (t *timeoutCause) Unwrap() error { return t.err }

// classify maps a response onto a Result. A non-nil error means the body was
// not valid JSON and the attempt counts as a transport failure.
func (c *client) classify(ctx context.Context, resp *Response) (Result[json.RawMessage], string, error) {
	switch resp.StatusCode {
	case nethttp.StatusUnauthorized:
		c.credentials.Clear(ctx)
		c.navigator.Redirect(ctx, c.config.LoginPath)
		c.logger.Info().
			Int("status", resp.StatusCode).
			Str("login_path", c.config.LoginPath).
			Msg("Credential rejected, cleared and redirected to login")
		return failure[json.RawMessage](DetailUnauthorized, resp.StatusCode,
			NewHTTPError(DetailUnauthorized, resp.StatusCode, resp.Body)), outcomeUnauthorized, nil
	case nethttp.StatusForbidden:
		return failure[json.RawMessage](DetailForbidden, resp.StatusCode,
			NewHTTPError(DetailForbidden, resp.StatusCode, resp.Body)), outcomeForbidden, nil
	case nethttp.StatusNoContent:
		return Result[json.RawMessage]{}, outcomeEmpty, nil
	}

	if !json.Valid(resp.Body) {
		return Result[json.RawMessage]{}, "", NewValidationError("response body is not valid JSON", "body")
	}

	if !IsSuccessStatus(resp.StatusCode) {
		detail := extractDetail(resp.Body)
		return failure[json.RawMessage](detail, resp.StatusCode,
			NewHTTPError(detail, resp.StatusCode, resp.Body)), outcomeHTTPError, nil
	}

	payload := json.RawMessage(resp.Body)
	return success(&payload), outcomeData, nil
}

// extractDetail returns the body's "detail" member as text. Strings are
// returned verbatim, other JSON values in compact form. Missing, null and
// empty values fall back to DetailGeneric.
func extractDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return DetailGeneric
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		if s == "" {
			return DetailGeneric
		}
		return s
	}

	raw := bytes.TrimSpace(envelope.Detail)
	if bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) || bytes.Equal(raw, []byte("0")) {
		return DetailGeneric
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return DetailGeneric
	}
	return compact.String()
}

func transportFailure(err error) Result[json.RawMessage] {
	detail := DetailServerWakingUp
	if err != nil && err.Error() != "" {
		detail = err.Error()
	}
	return failure[json.RawMessage](detail, 0, err)
}

func canceled(err error) Result[json.RawMessage] {
	return failure[json.RawMessage](err.Error(), 0, NewNetworkError("call canceled", err))
}
