// Package telemetry installs the global OpenTelemetry providers. Traces,
// metrics and log records are exported as JSON to a writer, stdout by default.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/phrazzld/shelfd/internal/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InstrumentationName scopes the instruments and the log bridge.
const InstrumentationName = "github.com/phrazzld/shelfd"

// ServiceName is reported as the service.name resource attribute.
const ServiceName = "shelfd"

// Shutdown flushes and stops every provider installed by Setup.
type Shutdown func(context.Context) error

// Setup installs tracer, meter and logger providers exporting to stdout.
// When telemetry is disabled it installs nothing and returns a no-op Shutdown.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (Shutdown, error) {
	return SetupWithWriter(ctx, cfg, os.Stdout)
}

// SetupWithWriter behaves like Setup but exports to w.
func SetupWithWriter(ctx context.Context, cfg config.TelemetryConfig, w io.Writer) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	var shutdowns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		shutdowns = nil
		return errors.Join(errs...)
	}
	fail := func(err error) (Shutdown, error) {
		return nil, errors.Join(err, shutdown(ctx))
	}

	res := resource.NewSchemaless(attribute.String("service.name", ServiceName))

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return fail(fmt.Errorf("failed to create trace exporter: %w", err))
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	shutdowns = append(shutdowns, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return fail(fmt.Errorf("failed to create metric exporter: %w", err))
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	shutdowns = append(shutdowns, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	logExporter, err := stdoutlog.New(stdoutlog.WithWriter(w))
	if err != nil {
		return fail(fmt.Errorf("failed to create log exporter: %w", err))
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	shutdowns = append(shutdowns, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	return shutdown, nil
}

// LogHandler returns a slog handler that forwards records to the global
// OpenTelemetry logger provider.
func LogHandler() slog.Handler {
	return otelslog.NewHandler(InstrumentationName)
}
