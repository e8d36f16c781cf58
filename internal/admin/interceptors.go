package admin

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/internal/observability"
)

const requestIDMetadataKey = "x-request-id"

// RequestIDUnaryServerInterceptor ensures a request_id is present on the
// context, sourcing it from inbound metadata if provided, and attaches a
// per-request logger annotated with request_id and method.
func RequestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	base = logging.OrNoop(base)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if incoming := firstHeader(md, requestIDMetadataKey); incoming != "" {
				ctx = logging.ContextWithRequestID(ctx, incoming)
			}
		}
		ctx, id := logging.EnsureRequestID(ctx)
		reqLog := base.With(
			logging.String("request_id", id),
			logging.String("method", info.FullMethod))
		ctx = logging.ContextWithLogger(ctx, reqLog)
		reqLog.Debug(ctx, "admin request")
		return handler(ctx, req)
	}
}

// SpanAttributesUnaryServerInterceptor decorates the span opened by the
// otelgrpc stats handler with rpc and request attributes.
func SpanAttributesUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		span := trace.SpanFromContext(ctx)
		if span.IsRecording() {
			service, method := observability.SplitMethod(info.FullMethod)
			attrs := []attribute.KeyValue{
				attribute.String("rpc.service", service),
				attribute.String("rpc.method", method),
				attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
			}
			if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
				attrs = append(attrs, attribute.String("request_id", reqID))
			}
			span.SetAttributes(attrs...)
		}
		resp, err := handler(ctx, req)
		if err != nil && span.IsRecording() {
			span.RecordError(err)
		}
		return resp, err
	}
}

// StatusUnaryServerInterceptor converts handler errors with ToStatusError.
func StatusUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		return resp, ToStatusError(err)
	}
}

func firstHeader(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
