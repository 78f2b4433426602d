package tracing

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/tt-studio/console/internal/config"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Setup installs a global tracer provider according to cfg.Trace. With
// tracing disabled it installs nothing and returns a no-op shutdown, so the
// client Tracing middleware records into the default no-op provider.
func Setup(ctx context.Context, cfg *config.Config, out io.Writer, logger zerolog.Logger) (ShutdownFunc, error) {
	var exporter sdktrace.SpanExporter
	switch cfg.Trace {
	case "", "off", "none":
		return noop, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Trace)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "tt-studio-console"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(name),
		semconv.ServiceVersionKey.String(cfg.AppVersion),
		attribute.String("studio.profile", cfg.ProfileName),
	))
	if err != nil {
		logger.Warn().Err(err).Msg("otel resource init failed, continuing")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logger.Info().Str("exporter", cfg.Trace).Str("service", name).Msg("tracing enabled")

	return tp.Shutdown, nil
}
