package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig configures NewTracer: just the fields a log-backed exporter
// needs, without an OTLP collector Endpoint or EnableInsecure flag.
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64 // 0 disables sampling entirely (AlwaysOff)
}

// Tracer wraps an OpenTelemetry TracerProvider.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TraceConfig
}

// NewTracer builds a Tracer whose spans are exported through logger rather
// than an OTLP/gRPC collector: spans are recorded as structured log lines
// via the same Logger every other package uses, with no collector process
// to run or exporter chain to configure.
func NewTracer(cfg TraceConfig, logger *Logger) (*Tracer, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SamplingRatio <= 0 {
		sampler = sdktrace.NeverSample()
	} else if cfg.SamplingRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRatio)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(&logSpanExporter{logger: logger}),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
		config:   cfg,
	}, nil
}

// Start begins a span named name.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown flushes and stops the underlying TracerProvider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// logSpanExporter implements sdktrace.SpanExporter by writing each finished
// span as a structured log record instead of shipping it to a collector.
type logSpanExporter struct {
	logger *Logger
}

func (e *logSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		attrs := make([]any, 0, len(span.Attributes())*2+8)
		attrs = append(attrs,
			"trace_id", span.SpanContext().TraceID().String(),
			"span_id", span.SpanContext().SpanID().String(),
			"name", span.Name(),
			"duration_ms", span.EndTime().Sub(span.StartTime())/time.Millisecond,
			"status", span.Status().Code.String(),
		)
		for _, kv := range span.Attributes() {
			attrs = append(attrs, string(kv.Key), kv.Value.AsInterface())
		}
		e.logger.Debug(ctx, "span completed", attrs...)
	}
	return nil
}

func (e *logSpanExporter) Shutdown(context.Context) error {
	return nil
}
