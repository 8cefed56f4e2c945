package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/syaihu/Thunderirc-Radio"

var tracingEnabled atomic.Bool

// TracingConfig controls the OTLP exporter.
type TracingConfig struct {
	// Endpoint is host:port of the collector; empty disables tracing.
	Endpoint string
	Insecure bool
	// SampleRatio is the fraction of root traces kept, in [0,1].
	SampleRatio float64
}

// TracingConfigFromEnv reads OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
// (default true) and OTEL_TRACES_SAMPLER_ARG (default 1).
func TracingConfigFromEnv() (TracingConfig, error) {
	cfg := TracingConfig{
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:    !strings.EqualFold(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"), "false"),
		SampleRatio: 1,
	}
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil || ratio < 0 || ratio > 1 {
			return cfg, fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG %q: want a number in [0,1]", v)
		}
		cfg.SampleRatio = ratio
	}
	return cfg, nil
}

// InitTracing installs an OTLP/gRPC tracer provider configured from the
// environment. Without an endpoint it is a no-op and spans are discarded.
func InitTracing(logger *slog.Logger, serviceName, serviceVersion string) (func(), error) {
	cfg, err := TracingConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		logger.Info("tracing disabled: OTEL_EXPORTER_OTLP_ENDPOINT not set")
		return func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(provider)
	tracingEnabled.Store(true)
	logger.Info("tracing initialized",
		slog.String("service", serviceName),
		slog.String("endpoint", cfg.Endpoint),
		slog.Float64("sample_ratio", cfg.SampleRatio),
	)

	return func() {
		tracingEnabled.Store(false)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown tracer provider", slog.Any("err", err))
		}
	}, nil
}

// TracingEnabled reports whether an exporter is installed.
func TracingEnabled() bool { return tracingEnabled.Load() }

// StartSpan starts a span on the global provider, tagging it with the
// correlation id from ctx when there is one.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if corr := GetCorrelation(ctx); corr != "" {
		attrs = append(attrs, attribute.String("correlation_id", corr))
	}
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// StartRequestSpan starts the span covering one song request.
func StartRequestSpan(ctx context.Context, actor, channel string) (context.Context, trace.Span) {
	return StartSpan(ctx, "song_request",
		attribute.String("irc.actor", actor),
		attribute.String("irc.channel", channel),
	)
}

// StartHTTPSpan starts the span covering one status-server request.
func StartHTTPSpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, method+" "+path,
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)
}

// FinishSpan records the outcome label and err (if any) and sets the span status.
func FinishSpan(span trace.Span, outcome string, err error) {
	if outcome != "" {
		span.SetAttributes(attribute.String("outcome", outcome))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
