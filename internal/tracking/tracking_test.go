package tracking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var errMiss = errors.New("miss")

func setupTestMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	ResetForTesting()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		ResetForTesting()
	})
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != meterName {
			continue
		}
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func attrValue(set attribute.Set, key string) (string, bool) {
	v, ok := set.Value(attribute.Key(key))
	if !ok {
		return "", false
	}
	return v.Emit(), true
}

func TestRecordStorageOperation(t *testing.T) {
	reader := setupTestMeterProvider(t)

	RecordStorageOperation(context.Background(), "redis", OpGet, 5*time.Millisecond, nil, errMiss)
	RecordStorageOperation(context.Background(), "redis", OpGet, 5*time.Millisecond, errMiss, errMiss)
	RecordStorageOperation(context.Background(), "redis", OpSet, 5*time.Millisecond, errors.New("connection refused"), errMiss)

	metrics := collect(t, reader)
	m, ok := metrics[metricStorageDuration]
	require.True(t, ok)

	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	var sawError bool
	var getCount uint64
	for _, dp := range hist.DataPoints {
		op, _ := attrValue(dp.Attributes, attrOperation)
		backend, _ := attrValue(dp.Attributes, attrBackend)
		assert.Equal(t, "redis", backend)
		kind, hasKind := attrValue(dp.Attributes, attrErrorType)
		switch op {
		case OpGet:
			assert.False(t, hasKind, "misses are not errors")
			getCount += dp.Count
		case OpSet:
			sawError = hasKind && kind == KindConnection
		}
	}
	assert.EqualValues(t, 2, getCount)
	assert.True(t, sawError)
}

func TestRecordAttemptsRetriesAndResults(t *testing.T) {
	reader := setupTestMeterProvider(t)
	ctx := context.Background()

	RecordAttempt(ctx, "GET")
	RecordAttempt(ctx, "GET")
	RecordRetry(ctx, "GET", KindConnection)
	RecordResult(ctx, "GET", "data", 200, time.Second)

	metrics := collect(t, reader)

	sumOf := func(name string) int64 {
		m, ok := metrics[name]
		require.True(t, ok, "metric %s not found", name)
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		var total int64
		for _, dp := range sum.DataPoints {
			total += dp.Value
		}
		return total
	}

	assert.EqualValues(t, 2, sumOf(metricAttempts))
	assert.EqualValues(t, 1, sumOf(metricRetries))
	assert.EqualValues(t, 1, sumOf(metricResults))

	results := metrics[metricResults].Data.(metricdata.Sum[int64])
	outcome, _ := attrValue(results.DataPoints[0].Attributes, attrOutcome)
	assert.Equal(t, "data", outcome)

	_, ok := metrics[metricCallDuration]
	assert.True(t, ok)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "deadline", err: fmt.Errorf("wrap: %w", context.DeadlineExceeded), expected: KindTimeout},
		{name: "canceled", err: context.Canceled, expected: KindCanceled},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "api.local"}, expected: KindDNS},
		{name: "refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, expected: KindConnection},
		{name: "reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), expected: KindConnection},
		{name: "closed_message", err: errors.New("store closed"), expected: KindClosed},
		{name: "other", err: errors.New("boom"), expected: KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}
