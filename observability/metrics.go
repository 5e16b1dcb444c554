package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gaborage/go-apiclient/config"
)

// initMeterProvider initializes the OpenTelemetry meter provider.
func (p *provider) initMeterProvider(res *resource.Resource) error {
	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(p.config.Metrics.Interval),
	)

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return nil
}

// createMetricExporter creates a metric exporter. Metrics use the trace protocol.
func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	endpoint := p.config.Metrics.Endpoint

	switch p.config.Trace.Protocol {
	case config.ProtocolStdout:
		return stdoutmetric.New(stdoutmetric.WithWriter(p.opts.writer))
	case config.ProtocolHTTP:
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			if hasScheme(endpoint) {
				opts = append(opts, otlpmetrichttp.WithEndpointURL(endpoint))
			} else {
				opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
			}
		}
		if p.config.Trace.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case config.ProtocolGRPC:
		var opts []otlpmetricgrpc.Option
		if endpoint != "" {
			if hasScheme(endpoint) {
				opts = append(opts, otlpmetricgrpc.WithEndpointURL(endpoint))
			} else {
				opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
			}
		}
		if p.config.Trace.Insecure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("metrics protocol '%s': %w", p.config.Trace.Protocol, ErrInvalidProtocol)
	}
}
