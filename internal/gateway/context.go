package gateway

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type requestIDKey struct{}

// WithRequestID attaches the inbound request id for logs and spans.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func spanFrom(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
