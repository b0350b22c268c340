package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const instrumentationName = "webassist"

// Telemetry carries the instruments the gateway records into.
type Telemetry struct {
	Tracer trace.Tracer

	Registrations        metric.Int64Counter
	Logins               metric.Int64Counter
	Chats                metric.Int64Counter
	GenerationFailures   metric.Int64Counter
	NotificationFailures metric.Int64Counter
	GenerationLatency    metric.Float64Histogram
}

// New creates the gateway instruments on meter.
func New(meter metric.Meter, tracer trace.Tracer) (*Telemetry, error) {
	t := &Telemetry{Tracer: tracer}
	var err error
	if t.Registrations, err = meter.Int64Counter("webassist.registrations", metric.WithDescription("login tokens issued")); err != nil {
		return nil, err
	}
	if t.Logins, err = meter.Int64Counter("webassist.logins", metric.WithDescription("sessions issued")); err != nil {
		return nil, err
	}
	if t.Chats, err = meter.Int64Counter("webassist.chats", metric.WithDescription("chat turns answered")); err != nil {
		return nil, err
	}
	if t.GenerationFailures, err = meter.Int64Counter("webassist.generation.failures"); err != nil {
		return nil, err
	}
	if t.NotificationFailures, err = meter.Int64Counter("webassist.notification.failures"); err != nil {
		return nil, err
	}
	if t.GenerationLatency, err = meter.Float64Histogram("webassist.generation.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return t, nil
}

// Noop returns instruments that record nothing.
func Noop() *Telemetry {
	t, _ := New(metricnoop.NewMeterProvider().Meter(instrumentationName), tracenoop.NewTracerProvider().Tracer(instrumentationName))
	return t
}

// Init wires OpenTelemetry tracing and metrics with stdout exporters writing
// to rotated files under dir. The returned cleanup flushes and closes them.
func Init(ctx context.Context, dir, version string) (*Telemetry, func(), error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(instrumentationName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	traceFile := &lumberjack.Logger{Filename: filepath.Join(dir, "webassist_traces.log"), MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricsFile := &lumberjack.Logger{Filename: filepath.Join(dir, "webassist_metrics.log"), MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	t, err := New(mp.Meter(instrumentationName), tp.Tracer(instrumentationName))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown meter provider", "error", err)
		}
		_ = traceFile.Close()
		_ = metricsFile.Close()
	}
	return t, cleanup, nil
}
