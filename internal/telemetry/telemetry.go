// Package telemetry exports traces of the generation flows over OTLP gRPC.
//
// Every flow opens one root span and one child per oracle call:
//
//	explain.generate  caller, tone, cache hit, remaining quota
//	quiz.generate     caller, requested and returned question counts, remaining quota
//	oracle.generate   provider, model, token usage, block reason
//
// Failed spans carry error.kind, the same outcome label the request metrics use.
// Callers are identified by a pseudonym, never the raw user id.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	SpanExplain = "explain.generate"
	SpanQuiz    = "quiz.generate"
	SpanOracle  = "oracle.generate"
)

const (
	serviceVersion    = "1.0.0"
	defaultTracerName = "stem-explainer"
)

var tracer trace.Tracer

// Init installs a tracer provider exporting to otlpEndpoint. Without an
// endpoint spans go to the global no-op provider.
func Init(ctx context.Context, serviceName, otlpEndpoint string) (func(context.Context) error, error) {
	if otlpEndpoint == "" {
		tracer = otel.Tracer(serviceName)
		slog.Info("tracing disabled", "reason", "OTLP_ENDPOINT not set")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	install(tp, serviceName)

	slog.Info("tracing enabled", "endpoint", otlpEndpoint, "service", serviceName)
	return tp.Shutdown, nil
}

func install(tp trace.TracerProvider, serviceName string) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracer = tp.Tracer(serviceName)
}

func Tracer() trace.Tracer {
	if tracer == nil {
		tracer = otel.Tracer(defaultTracerName)
	}
	return tracer
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// SetCaller tags the flow span with the pseudonymized caller and request id.
func SetCaller(span trace.Span, userTag, requestID string) {
	span.SetAttributes(
		attribute.String("user.tag", userTag),
		attribute.String("request.id", requestID),
	)
}

func SetTone(span trace.Span, tone string) {
	span.SetAttributes(attribute.String("explain.tone", tone))
}

func SetCacheHit(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("explain.cache_hit", hit))
}

func SetQuotaRemaining(span trace.Span, remaining int) {
	span.SetAttributes(attribute.Int("quota.remaining", remaining))
}

func SetQuizCounts(span trace.Span, requested, returned int) {
	span.SetAttributes(
		attribute.Int("quiz.requested", requested),
		attribute.Int("quiz.returned", returned),
	)
}

func SetOracleUsage(span trace.Span, provider, model string, inputTokens, outputTokens int) {
	span.SetAttributes(
		attribute.String("oracle.provider", provider),
		attribute.String("oracle.model", model),
		attribute.Int("oracle.tokens.input", inputTokens),
		attribute.Int("oracle.tokens.output", outputTokens),
	)
}

// SetBlocked records a safety refusal. The span is not marked failed.
func SetBlocked(span trace.Span, reason string) {
	span.SetAttributes(attribute.String("oracle.block_reason", reason))
}

// Fail marks the span failed with an outcome label such as "rate_limited".
func Fail(span trace.Span, kind string, err error) {
	span.SetAttributes(attribute.String("error.kind", kind))
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
}

func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
