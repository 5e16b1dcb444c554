// Package observability bootstraps the OpenTelemetry tracer and meter
// providers used by the API client.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricznoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gaborage/go-apiclient/config"
	"github.com/gaborage/go-apiclient/logger"
)

const (
	// DefaultMetricsInterval is used when no export interval is configured.
	DefaultMetricsInterval = 60 * time.Second
)

// Provider is the interface for observability providers.
// It manages the lifecycle of tracing and metrics providers.
type Provider interface {
	// TracerProvider returns the configured trace provider.
	TracerProvider() trace.TracerProvider

	// MeterProvider returns the configured meter provider.
	MeterProvider() metric.MeterProvider

	// Shutdown gracefully shuts down the provider, flushing any pending data.
	Shutdown(ctx context.Context) error

	// ForceFlush immediately flushes any pending telemetry data.
	ForceFlush(ctx context.Context) error
}

// Option customizes provider construction.
type Option func(*options)

type options struct {
	environment string
	writer      io.Writer
	logger      logger.Logger
	global      bool
}

// WithEnvironment sets the deployment.environment.name resource attribute.
func WithEnvironment(env string) Option {
	return func(o *options) {
		o.environment = env
	}
}

// WithWriter sets where the stdout exporters write. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.writer = w
		}
	}
}

// WithLogger reports provider setup at debug level.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithoutGlobal keeps the providers out of the otel globals.
func WithoutGlobal() Option {
	return func(o *options) {
		o.global = false
	}
}

// provider implements Provider with OpenTelemetry SDK.
type provider struct {
	config         config.ObservabilityConfig
	opts           options
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider creates a new observability provider based on the configuration.
// If observability is disabled, returns a no-op provider. Otherwise the SDK
// providers are created and, unless WithoutGlobal is given, installed as the
// otel globals together with the W3C trace context propagator.
func NewProvider(cfg *config.ObservabilityConfig, opts ...Option) (Provider, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	o := options{writer: os.Stderr, logger: logger.Nop(), global: true}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		o.logger.Debug().Msg("Observability disabled, using no-op provider")
		return newNoopProvider(), nil
	}

	safeCfg := applyDefaults(*cfg)
	if err := validate(&safeCfg); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	p := &provider{config: safeCfg, opts: o}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := p.initTraceProvider(res); err != nil {
		return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
	}
	if err := p.initMeterProvider(res); err != nil {
		_ = p.tracerProvider.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}

	if o.global {
		otel.SetTracerProvider(p.tracerProvider)
		otel.SetMeterProvider(p.meterProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	o.logger.Debug().
		Str("service", safeCfg.Service.Name).
		Str("protocol", safeCfg.Trace.Protocol).
		Str("endpoint", safeCfg.Trace.Endpoint).
		Msg("Observability provider created")
	return p, nil
}

func applyDefaults(cfg config.ObservabilityConfig) config.ObservabilityConfig {
	if cfg.Trace.Protocol == "" {
		cfg.Trace.Protocol = config.ProtocolHTTP
	}
	if cfg.Metrics.Interval <= 0 {
		cfg.Metrics.Interval = DefaultMetricsInterval
	}
	if cfg.Metrics.Endpoint == "" {
		cfg.Metrics.Endpoint = cfg.Trace.Endpoint
	}
	return cfg
}

func validate(cfg *config.ObservabilityConfig) error {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		return ErrMissingServiceName
	}
	if cfg.Trace.SampleRate < 0 || cfg.Trace.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	switch cfg.Trace.Protocol {
	case config.ProtocolStdout, config.ProtocolHTTP, config.ProtocolGRPC:
		return nil
	default:
		return fmt.Errorf("trace protocol '%s': %w", cfg.Trace.Protocol, ErrInvalidProtocol)
	}
}

// createResource creates an OpenTelemetry resource with service information.
func (p *provider) createResource() (*resource.Resource, error) {
	attrs := resource.WithAttributes(
		semconv.ServiceName(p.config.Service.Name),
		semconv.ServiceVersion(p.config.Service.Version),
		semconv.DeploymentEnvironmentName(p.opts.environment),
	)
	customRes, err := resource.New(context.Background(), attrs)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), customRes)
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter, err := p.createTraceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// CLI processes are short-lived, so stdout exports synchronously
	var processor sdktrace.SpanProcessor
	if p.config.Trace.Protocol == config.ProtocolStdout {
		processor = sdktrace.NewSimpleSpanProcessor(exporter)
	} else {
		processor = sdktrace.NewBatchSpanProcessor(exporter)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.config.Trace.SampleRate))),
	)
	return nil
}

// createTraceExporter creates a trace exporter for the configured protocol.
func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	endpoint := p.config.Trace.Endpoint

	switch p.config.Trace.Protocol {
	case config.ProtocolStdout:
		return stdouttrace.New(stdouttrace.WithWriter(p.opts.writer))
	case config.ProtocolHTTP:
		var opts []otlptracehttp.Option
		if endpoint != "" {
			if hasScheme(endpoint) {
				opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
			} else {
				opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
			}
		}
		if p.config.Trace.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(context.Background(), opts...)
	case config.ProtocolGRPC:
		var opts []otlptracegrpc.Option
		if endpoint != "" {
			if hasScheme(endpoint) {
				opts = append(opts, otlptracegrpc.WithEndpointURL(endpoint))
			} else {
				opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
			}
		}
		if p.config.Trace.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", p.config.Trace.Protocol, ErrInvalidProtocol)
	}
}

func hasScheme(endpoint string) bool {
	return strings.Contains(endpoint, "://")
}

// TracerProvider returns the configured trace provider.
func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return noop.NewTracerProvider()
	}
	return p.tracerProvider
}

// MeterProvider returns the configured meter provider.
func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricznoop.NewMeterProvider()
	}
	return p.meterProvider
}

// Shutdown gracefully shuts down the provider.
//
//nolint:dupl // Shutdown and ForceFlush have similar structure but different semantics
func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error

	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
		}
	}

	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	return nil
}

// ForceFlush immediately flushes any pending telemetry data.
//
//nolint:dupl // Shutdown and ForceFlush have similar structure but different semantics
func (p *provider) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error

	if p.tracerProvider != nil {
		if err := p.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush trace provider: %w", err))
		}
	}

	if p.meterProvider != nil {
		if err := p.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush meter provider: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("flush errors: %w", errors.Join(errs...))
	}

	return nil
}
