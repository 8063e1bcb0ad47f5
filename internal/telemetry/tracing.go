package telemetry

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/xproxy/xproxy/internal/config"
)

// Setup initializes the OTLP trace pipeline when tracing is enabled and
// returns a shutdown hook. Disabled tracing returns a no-op hook.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	if !cfg.TracingEnabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{}
	if cfg.CollectorURL != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.CollectorURL))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "xproxy"
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// NewTraceparent synthesizes a W3C traceparent with a fresh trace id and
// parent id for requests that arrive without one. Both ids must be
// non-zero or receivers discard the header; the version nibble of a v4
// uuid guarantees that for the eight bytes used as the parent id.
func NewTraceparent() string {
	traceID := strings.ReplaceAll(uuid.NewString(), "-", "")
	parent := uuid.New()
	return fmt.Sprintf("00-%s-%s-01", traceID, hex.EncodeToString(parent[:8]))
}
