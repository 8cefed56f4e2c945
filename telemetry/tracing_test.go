package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")

	cfg, err := TracingConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, TracingConfig{Endpoint: "collector:4317", Insecure: true, SampleRatio: 1}, cfg)

	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "FALSE")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	cfg, err = TracingConfigFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.Insecure)
	assert.InDelta(t, 0.25, cfg.SampleRatio, 1e-9)

	for _, bad := range []string{"half", "-0.1", "1.5"} {
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", bad)
		_, err = TracingConfigFromEnv()
		assert.Error(t, err, bad)
	}
}

func TestInitTracingDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown, err := InitTracing(slog.New(slog.DiscardHandler), "test", "0")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
	assert.False(t, TracingEnabled())
}

func TestSpanHelpers(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	ctx := WithCorrelation(context.Background(), "corr-1")
	_, span := StartRequestSpan(ctx, "alice", "#radio")
	FinishSpan(span, "added", nil)
	span.End()

	_, span = StartHTTPSpan(context.Background(), "GET", "/readyz")
	FinishSpan(span, "", errors.New("HTTP 503"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)

	req := ended[0]
	assert.Equal(t, "song_request", req.Name())
	assert.Equal(t, codes.Ok, req.Status().Code)
	attrs := attribute.NewSet(req.Attributes()...)
	for k, want := range map[attribute.Key]string{
		"irc.actor":      "alice",
		"irc.channel":    "#radio",
		"correlation_id": "corr-1",
		"outcome":        "added",
	} {
		v, ok := attrs.Value(k)
		require.True(t, ok, k)
		assert.Equal(t, want, v.AsString(), k)
	}

	httpSpan := ended[1]
	assert.Equal(t, "GET /readyz", httpSpan.Name())
	assert.Equal(t, codes.Error, httpSpan.Status().Code)
	assert.Len(t, httpSpan.Events(), 1, "error recorded as span event")
}
