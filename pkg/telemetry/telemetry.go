package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/pkg/config"
	"github.com/vibecampus/vibehub/pkg/logging"
)

const instrumentationName = "github.com/vibecampus/vibehub"

var (
	tracer trace.Tracer

	instrumentsOnce sync.Once
	procCalls       metric.Int64Counter
	procFailures    metric.Int64Counter
	procLatency     metric.Float64Histogram
	realtimeEvents  metric.Int64Counter
)

// Init initializes OpenTelemetry with Jaeger and Prometheus exporters
func Init(cfg *config.TelemetryConfig) (func(), error) {
	if !cfg.Enabled {
		logging.GetLogger().Info("Telemetry disabled")
		return func() {}, nil
	}

	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("0.1.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var shutdownFuncs []func(context.Context) error

	if cfg.JaegerURL != "" {
		jaegerExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(jaegerExporter),
			sdktrace.WithResource(res),
		)

		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)

		logging.GetLogger().Info("Jaeger exporter initialized", zap.String("url", cfg.JaegerURL))
	}

	if cfg.PrometheusEnabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)

		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)

		logging.GetLogger().Info("Prometheus exporter initialized", zap.Int("port", cfg.PrometheusPort))
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer = otel.Tracer(cfg.ServiceName)

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, fn := range shutdownFuncs {
			if err := fn(shutdownCtx); err != nil {
				logging.GetLogger().Error("Error shutting down telemetry", zap.Error(err))
			}
		}
	}

	return shutdown, nil
}

// Tracer returns the global tracer
func Tracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer(instrumentationName)
	}
	return tracer
}

// StartSpan starts a new span
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// EndSpan records err on the span (if any) and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func instruments() {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		procCalls, _ = meter.Int64Counter("vibehub.procedure.calls",
			metric.WithDescription("Remote procedure invocations"))
		procFailures, _ = meter.Int64Counter("vibehub.procedure.failures",
			metric.WithDescription("Remote procedure invocations that returned an error"))
		procLatency, _ = meter.Float64Histogram("vibehub.procedure.duration",
			metric.WithDescription("Remote procedure latency"),
			metric.WithUnit("ms"))
		realtimeEvents, _ = meter.Int64Counter("vibehub.realtime.events",
			metric.WithDescription("Change events published to the realtime broker"))
	})
}

// RecordProcedure counts one procedure invocation and its latency
func RecordProcedure(ctx context.Context, name string, took time.Duration, err error) {
	instruments()
	attrs := metric.WithAttributes(attribute.String("procedure", name))
	if procCalls != nil {
		procCalls.Add(ctx, 1, attrs)
	}
	if err != nil && procFailures != nil {
		procFailures.Add(ctx, 1, attrs)
	}
	if procLatency != nil {
		procLatency.Record(ctx, float64(took.Microseconds())/1000, attrs)
	}
}

// RecordRealtimeEvent counts one published change
func RecordRealtimeEvent(ctx context.Context, table, eventType string) {
	instruments()
	if realtimeEvents != nil {
		realtimeEvents.Add(ctx, 1, metric.WithAttributes(
			attribute.String("table", table),
			attribute.String("type", eventType),
		))
	}
}
