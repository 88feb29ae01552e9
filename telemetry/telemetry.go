// Package telemetry configures the OpenTelemetry trace pipeline used by the
// flynav server and the navigation system.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var ErrUnknownExporter = errors.New("telemetry: unknown exporter")

type Config struct {
	ServiceName string
	// Exporter is "stdout" or "none".
	Exporter string
	// Writer receives stdout spans. Nil means os.Stdout.
	Writer io.Writer
}

func DefaultConfig() Config {
	exporter := os.Getenv("OTEL_TRACES_EXPORTER")
	if exporter == "" {
		exporter = "none"
	}
	return Config{ServiceName: "gravnav", Exporter: exporter}
}

// Init builds a tracer provider for cfg and installs it as the global one.
// The returned func flushes pending spans and stops the provider.
func Init(ctx context.Context, cfg Config) (trace.TracerProvider, func(context.Context) error, error) {
	if cfg.Exporter == "none" {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "stdout":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		var err error
		if exporter, err = stdouttrace.New(stdouttrace.WithWriter(w)); err != nil {
			return nil, nil, fmt.Errorf("telemetry: create exporter: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Exporter)
	}

	res := resource.NewWithAttributes("", attribute.String("service.name", cfg.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}
