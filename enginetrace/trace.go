// Package enginetrace provides OpenTelemetry tracing for the engine,
// adapted from the teacher's telemetry.Tracer/NewTracerProvider. The
// teacher's HTTP-ingress propagation setup (AWS X-Ray headers, otelhttp
// instrumentation) is dropped: this core has no HTTP surface to propagate
// trace context across (see DESIGN.md).
package enginetrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	InstrumentationName    = "github.com/flowforge/ruleflow"
	InstrumentationVersion = "1.0.0"
)

// Tracer returns a named tracer from tp. If tp is nil, the global
// (no-op by default) provider is used.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(InstrumentationVersion))
}

// NewTracerProvider creates a TracerProvider exporting spans via OTLP/HTTP.
// The caller must call Shutdown on the returned provider.
func NewTracerProvider(ctx context.Context, endpoint, serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return tp, nil
}
