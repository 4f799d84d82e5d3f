package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/core"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

type telemetry struct {
	tracer         trace.Tracer
	meter          metric.Meter
	tracerProvider *sdktrace.TracerProvider

	analysisCounter   metric.Int64Counter
	analysisDuration  metric.Float64Histogram
	findingCounter    metric.Int64Counter
	extractorDuration metric.Float64Histogram
}

func New(ctx context.Context, cfg config.TelemetryConfig) (core.Telemetry, error) {
	if !cfg.Enabled {
		return &noopTelemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	client := otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := tp.Tracer(cfg.ServiceName)
	meter := otel.Meter(cfg.ServiceName)

	analysisCounter, err := meter.Int64Counter("hera.analyses.total",
		metric.WithDescription("Total number of URL analyses"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	analysisDuration, err := meter.Float64Histogram("hera.analysis.duration",
		metric.WithDescription("Analysis duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	findingCounter, err := meter.Int64Counter("hera.findings.total",
		metric.WithDescription("Total number of risk findings"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	extractorDuration, err := meter.Float64Histogram("hera.extractor.duration",
		metric.WithDescription("Per-extractor probe duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:            tracer,
		meter:             meter,
		tracerProvider:    tp,
		analysisCounter:   analysisCounter,
		analysisDuration:  analysisDuration,
		findingCounter:    findingCounter,
		extractorDuration: extractorDuration,
	}, nil
}

func (t *telemetry) RecordAnalysis(tier types.Tier, duration float64, degraded bool) {
	ctx := context.Background()

	attrs := []attribute.KeyValue{
		attribute.String("analysis.tier", string(tier)),
		attribute.Bool("analysis.degraded", degraded),
	}

	t.analysisCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	t.analysisDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
}

func (t *telemetry) RecordFinding(kind string) {
	ctx := context.Background()

	attrs := []attribute.KeyValue{
		attribute.String("finding.kind", kind),
	}

	t.findingCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (t *telemetry) RecordExtractor(source string, status types.ExtractorStatus, duration float64) {
	ctx := context.Background()

	attrs := []attribute.KeyValue{
		attribute.String("extractor.source", source),
		attribute.String("extractor.status", string(status)),
	}

	t.extractorDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
}

func (t *telemetry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.tracerProvider.Shutdown(ctx)
}

type noopTelemetry struct{}

func (n *noopTelemetry) RecordAnalysis(tier types.Tier, duration float64, degraded bool)          {}
func (n *noopTelemetry) RecordFinding(kind string)                                                {}
func (n *noopTelemetry) RecordExtractor(source string, status types.ExtractorStatus, dur float64) {}
func (n *noopTelemetry) Close() error                                                             { return nil }
