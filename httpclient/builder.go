package httpclient

import (
	nethttp "net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-apiclient/credential"
	"github.com/gaborage/go-apiclient/logger"
	"github.com/gaborage/go-apiclient/navigation"
)

const tracerName = "github.com/gaborage/go-apiclient/httpclient"

// NewClient creates a client with default configuration and no credential.
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the API client
type Builder struct {
	config         *Config
	logger         logger.Logger
	transport      HTTPDoer
	credentials    credential.Store
	navigator      navigation.Navigator
	tracerProvider trace.TracerProvider
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		config: &Config{
			BaseURL:              DefaultBaseURL,
			Timeout:              DefaultTimeout,
			RetryBudget:          DefaultRetryBudget,
			Backoff:              LinearBackoff(time.Second),
			Sleeper:              TimerSleeper(),
			LoginPath:            DefaultLoginPath,
			RequestInterceptors:  []RequestInterceptor{},
			ResponseInterceptors: []ResponseInterceptor{},
			DefaultHeaders:       make(map[string]string),
			MaxPayloadLogBytes:   DefaultMaxPayloadLogBytes,
			RequestIDHeader:      HeaderXRequestID,
		},
		logger: log,
	}
}

// WithBaseURL sets the address endpoints are resolved against. Trailing
// slashes are removed. An empty value keeps DefaultBaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		b.config.BaseURL = baseURL
	}
	return b
}

// WithTimeout sets the per-attempt timeout. Zero disables it.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetryBudget sets the default number of extra attempts
func (b *Builder) WithRetryBudget(n int) *Builder {
	if n < 0 {
		n = 0
	}
	b.config.RetryBudget = n
	return b
}

// WithBackoff sets the delay policy between attempts
func (b *Builder) WithBackoff(policy BackoffPolicy) *Builder {
	if policy != nil {
		b.config.Backoff = policy
	}
	return b
}

// WithSleeper replaces the timer used to wait between attempts. Tests use it
// to observe delays without waiting.
func (b *Builder) WithSleeper(sleeper Sleeper) *Builder {
	if sleeper != nil {
		b.config.Sleeper = sleeper
	}
	return b
}

// WithTransport sets the HTTP primitive. Defaults to a plain *http.Client
// without its own timeout.
func (b *Builder) WithTransport(transport HTTPDoer) *Builder {
	b.transport = transport
	return b
}

// WithCredentialStore sets where the bearer token is read from and cleared on 401
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.credentials = store
	return b
}

// WithNavigator sets the redirect target used on 401
func (b *Builder) WithNavigator(nav navigation.Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithLoginPath sets the path passed to the navigator on 401
func (b *Builder) WithLoginPath(path string) *Builder {
	if path != "" {
		b.config.LoginPath = path
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithDefaultHeaders adds several default headers
func (b *Builder) WithDefaultHeaders(headers map[string]string) *Builder {
	for k, v := range headers {
		b.config.DefaultHeaders[k] = v
	}
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithPayloadLogging enables debug logging of headers and body previews up
// to maxBytes. A non-positive maxBytes keeps the current limit.
func (b *Builder) WithPayloadLogging(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithRequestIDHeader renames the request ID header
func (b *Builder) WithRequestIDHeader(header string) *Builder {
	if header != "" {
		b.config.RequestIDHeader = header
	}
	return b
}

// WithRequestIDGenerator sets how request IDs are generated
func (b *Builder) WithRequestIDGenerator(gen func() string) *Builder {
	b.config.NewRequestID = gen
	return b
}

// WithW3CTrace toggles the traceparent header
func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.EnableW3CTrace = enabled
	return b
}

// WithTracerProvider sets the provider for client spans. Defaults to the global one.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// Build creates the API client with the configured options
func (b *Builder) Build() Client {
	transport := b.transport
	if transport == nil {
		transport = &nethttp.Client{}
	}
	credentials := b.credentials
	if credentials == nil {
		credentials = credential.Nop()
	}
	navigator := b.navigator
	if navigator == nil {
		navigator = navigation.Nop()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	cfg := *b.config
	cfg.DefaultHeaders = make(map[string]string, len(b.config.DefaultHeaders))
	for k, v := range b.config.DefaultHeaders {
		cfg.DefaultHeaders[k] = v
	}
	cfg.RequestInterceptors = append([]RequestInterceptor(nil), b.config.RequestInterceptors...)
	cfg.ResponseInterceptors = append([]ResponseInterceptor(nil), b.config.ResponseInterceptors...)

	return &client{
		logger:      b.logger,
		config:      &cfg,
		transport:   transport,
		credentials: credentials,
		navigator:   navigator,
		tracer:      tp.Tracer(tracerName),
	}
}
