// Package telemetry configures OpenTelemetry tracing for runs.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/thruflo/sightline/internal/config"
	"github.com/thruflo/sightline/internal/logging"
)

// TracerName is the instrumentation name used for run spans.
const TracerName = "github.com/thruflo/sightline"

// Shutdown flushes and stops the exporter.
type Shutdown func(context.Context) error

func noShutdown(context.Context) error { return nil }

// Init configures an OTLP/gRPC trace exporter when an endpoint is set and
// installs it as the global provider. Without an endpoint it returns a noop
// tracer.
func Init(ctx context.Context, cfg config.TelemetryConfig, version string) (trace.Tracer, Shutdown, error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	if endpoint == "" {
		return noop.NewTracerProvider().Tracer(TracerName), noShutdown, nil
	}

	options := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if cfg.Insecure {
		options = append(options, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, options...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithFromEnv(), resource.WithAttributes(resourceAttributes(cfg, version)...))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	logging.Debug("tracing enabled", "endpoint", endpoint)
	return provider.Tracer(TracerName), provider.Shutdown, nil
}

func resourceAttributes(cfg config.TelemetryConfig, version string) []attribute.KeyValue {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = config.DefaultServiceName
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", name)}
	if version != "" {
		attrs = append(attrs, attribute.String("service.version", version))
	}
	return attrs
}
