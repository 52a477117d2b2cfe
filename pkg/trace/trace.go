// Package trace wires OpenTelemetry spans around the scaler loop,
// trigger evaluator and HTTP surface (spec §4.9/§4.8 instrumentation).
// Grounded on Lens/modules/core/pkg/trace's OTLP-over-gRPC setup,
// adapted to read endpoint/sampling from config rather than raw
// environment variables, and logged through pkg/log instead of the
// teacher's own logger package.
package trace

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/thorium-sh/thorium/pkg/log"
)

var provider *sdktrace.TracerProvider

var logger = log.Component("trace")

// Config configures the OTLP exporter a Thorium binary reports spans
// to. Endpoint empty disables tracing entirely (Init becomes a no-op).
type Config struct {
	ServiceName   string
	Endpoint      string
	SamplingRatio float64
}

// Init dials the collector and installs a global TracerProvider. Safe
// to call with an empty Endpoint, in which case tracing stays off and
// StartSpan returns no-op spans via otel's default noop provider.
func Init(cfg Config) error {
	if cfg.Endpoint == "" {
		logger.Info("tracing disabled, no OTLP endpoint configured")
		return nil
	}
	ratio := cfg.SamplingRatio
	if ratio <= 0 {
		ratio = 1.0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return fmt.Errorf("dialing OTLP collector at %s: %w", cfg.Endpoint, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("building trace resource: %w", err)
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	logger.Info("tracer initialised", "service", cfg.ServiceName, "endpoint", cfg.Endpoint, "sampling_ratio", ratio)
	return nil
}

// Shutdown flushes any pending spans; call via defer in main. A no-op
// when Init was never called with a non-empty endpoint.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

// StartSpan opens a span as a child of whatever span (if any) is
// already in ctx, the way the reaction engine and scaler loop bracket
// each unit of work (spec §4.4 step vii, §4.9 scaling decisions).
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer("thorium").Start(ctx, name, opts...)
}

// RecordError marks the active span failed, mirroring
// thoriumerrors.Wrap's intent at the tracing layer: callers still
// return the typed error, this only annotates the span.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetAttributes tags the active span, used to carry (group, pipeline,
// stage) onto scaler and reaction spans for trace-level filtering.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}
