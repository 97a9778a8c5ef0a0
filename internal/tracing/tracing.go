package tracing

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitTracer installs a Jaeger tracer as the global tracer. An empty endpoint
// leaves the no-op tracer in place.
func InitTracer(serviceName, jaegerEndpoint string, sampleRate float64) (opentracing.Tracer, io.Closer, error) {
	if jaegerEndpoint == "" {
		tracer := opentracing.NoopTracer{}
		opentracing.SetGlobalTracer(tracer)
		return tracer, nopCloser{}, nil
	}

	cfg := newConfiguration(serviceName, jaegerEndpoint, sampleRate)
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

// FlushInterval is how often buffered spans are sent to the collector
const FlushInterval = time.Second

func newConfiguration(serviceName, jaegerEndpoint string, sampleRate float64) *config.Configuration {
	sampler := &config.SamplerConfig{Type: jaeger.SamplerTypeConst, Param: 1}
	if sampleRate > 0 && sampleRate < 1 {
		sampler = &config.SamplerConfig{Type: jaeger.SamplerTypeProbabilistic, Param: sampleRate}
	}

	return &config.Configuration{
		ServiceName: serviceName,
		Sampler:     sampler,
		Reporter: &config.ReporterConfig{
			LogSpans:            false,
			CollectorEndpoint:   jaegerEndpoint,
			BufferFlushInterval: FlushInterval,
		},
	}
}

// StartSpan starts a new span with the given operation name
func StartSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, operationName)
	return span, ctx
}

// StartStageSpan starts a span for one pipeline stage, tagged with the executable
func StartStageSpan(ctx context.Context, stage, executable string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pipeline."+stage)
	ext.Component.Set(span, executable)
	span.SetTag("stage", stage)
	return span, ctx
}

// FinishSpan finishes a span
func FinishSpan(span opentracing.Span) {
	if span != nil {
		span.Finish()
	}
}

// LogError logs an error to the span
func LogError(span opentracing.Span, err error) {
	if span != nil && err != nil {
		ext.Error.Set(span, true)
		span.LogKV("error", err.Error())
	}
}

// SetTag sets a tag on the span
func SetTag(span opentracing.Span, key string, value interface{}) {
	if span != nil {
		span.SetTag(key, value)
	}
}
