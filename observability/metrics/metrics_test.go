package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewMetricExporter(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{
			name: "valid config with HTTP",
			opts: []Option{
				WithServiceName("test-service"),
				WithServiceNamespace("test"),
				WithServiceVersion("1.0.0"),
				WithOTLPEndpoint("localhost:4318"),
				WithEnvironment("test"),
			},
		},
		{
			name: "valid config with gRPC",
			opts: []Option{
				WithServiceName("test-service"),
				WithOTLPGRPCEndpoint("localhost:4317"),
			},
		},
		{
			name: "gRPC takes precedence over HTTP",
			opts: []Option{
				WithOTLPEndpoint("localhost:4318"),
				WithOTLPGRPCEndpoint("localhost:4317"),
			},
		},
		{
			name: "manual reader needs no endpoint",
			opts: []Option{
				WithOTLPEndpoint(""),
				WithReader(sdkmetric.NewManualReader()),
			},
		},
		{
			name: "empty OTLP endpoint",
			opts: []Option{
				WithServiceName("test-service"),
				WithOTLPEndpoint(""),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithGlobal(false)}, tt.opts...)
			exporter, closeFn, err := NewMetricExporter(context.Background(), opts...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, exporter)
			assert.NotNil(t, exporter.meterProvider)
			assert.NotNil(t, exporter.Meter())
			assert.NotNil(t, exporter.resource)
			assert.NotNil(t, closeFn)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			// Exporters with no collector behind them may fail the final flush.
			_ = exporter.Close(ctx)
		})
	}
}

func TestMetricExporter_Defaults(t *testing.T) {
	mc := defaultConfig()

	assert.Equal(t, "dispatchd", mc.serviceName)
	assert.Equal(t, "localhost:4318", mc.otlpEndpoint)
	assert.Equal(t, 10*time.Second, mc.interval)
	assert.True(t, mc.global)
}

func TestWithExportInterval_IgnoresNonPositive(t *testing.T) {
	mc := defaultConfig()
	WithExportInterval(0)(mc)
	assert.Equal(t, 10*time.Second, mc.interval)

	WithExportInterval(time.Second)(mc)
	assert.Equal(t, time.Second, mc.interval)
}
