// Package tracking records OpenTelemetry metrics for the API client and its
// credential storage backends. Instruments are created lazily from the global
// meter provider so that observability.Provider can install one first.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "go-apiclient"

const (
	metricStorageDuration = "apiclient.storage.operation.duration"
	metricAttempts        = "apiclient.request.attempts"
	metricRetries         = "apiclient.request.retries"
	metricResults         = "apiclient.request.results"
	metricCallDuration    = "apiclient.request.duration"

	attrBackend    = "storage.backend"
	attrOperation  = "storage.operation"
	attrErrorType  = "error.type"
	attrMethod     = "http.request.method"
	attrStatusCode = "http.response.status_code"
	attrOutcome    = "apiclient.outcome"
)

// Storage operation names.
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
	OpHealth = "health"
)

var (
	meterMu sync.Mutex
	meter   metric.Meter

	storageDuration metric.Float64Histogram
	attempts        metric.Int64Counter
	retries         metric.Int64Counter
	results         metric.Int64Counter
	callDuration    metric.Float64Histogram
)

func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: failed to initialize metric %s: %v\n", name, err)
	}
}

func ensureInitialized() {
	meterMu.Lock()
	defer meterMu.Unlock()

	if meter != nil {
		return
	}
	meter = otel.Meter(meterName)

	var err error
	storageDuration, err = meter.Float64Histogram(metricStorageDuration,
		metric.WithDescription("Duration of credential storage operations"),
		metric.WithUnit("s"))
	logMetricError(metricStorageDuration, err)

	attempts, err = meter.Int64Counter(metricAttempts,
		metric.WithDescription("Transport attempts issued by the API client"),
		metric.WithUnit("{attempt}"))
	logMetricError(metricAttempts, err)

	retries, err = meter.Int64Counter(metricRetries,
		metric.WithDescription("Attempts retried after a transport failure"),
		metric.WithUnit("{retry}"))
	logMetricError(metricRetries, err)

	results, err = meter.Int64Counter(metricResults,
		metric.WithDescription("Logical calls completed, by outcome"),
		metric.WithUnit("{call}"))
	logMetricError(metricResults, err)

	callDuration, err = meter.Float64Histogram(metricCallDuration,
		metric.WithDescription("Duration of logical calls including backoff waits"),
		metric.WithUnit("s"))
	logMetricError(metricCallDuration, err)
}

// RecordStorageOperation records the duration and outcome of one storage call.
// A not-found error on get is a normal miss and is not tagged with error.type.
func RecordStorageOperation(ctx context.Context, backend, operation string, duration time.Duration, err error, notFound error) {
	ensureInitialized()
	if storageDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrBackend, backend),
		attribute.String(attrOperation, operation),
	}
	if err != nil && (notFound == nil || !errors.Is(err, notFound)) {
		attrs = append(attrs, attribute.String(attrErrorType, Classify(err)))
	}
	storageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAttempt counts one transport attempt.
func RecordAttempt(ctx context.Context, method string) {
	ensureInitialized()
	if attempts != nil {
		attempts.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMethod, method)))
	}
}

// RecordRetry counts an attempt that will be followed by another one. kind is a
// short failure classification such as "timeout" or "connection_error".
func RecordRetry(ctx context.Context, method, kind string) {
	ensureInitialized()
	if retries != nil {
		retries.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String(attrErrorType, kind),
		))
	}
}

// RecordResult records the final outcome of a logical call. status is 0 for
// transport-level failures.
func RecordResult(ctx context.Context, method, outcome string, status int, duration time.Duration) {
	ensureInitialized()
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrOutcome, outcome),
		attribute.Int(attrStatusCode, status),
	)
	if results != nil {
		results.Add(ctx, 1, attrs)
	}
	if callDuration != nil {
		callDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// ResetForTesting drops cached instruments so the next call binds to the
// currently installed global meter provider.
func ResetForTesting() {
	meterMu.Lock()
	defer meterMu.Unlock()

	meter = nil
	storageDuration = nil
	attempts = nil
	retries = nil
	results = nil
	callDuration = nil
}
