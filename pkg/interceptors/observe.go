package interceptors

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"siting/pkg/metrics"
	"siting/pkg/telemetry"
)

// splitMethod "/siting.v1.SitingService/Optimize" -> ("siting.v1.SitingService", "Optimize")
func splitMethod(full string) (service, method string) {
	full = strings.TrimPrefix(full, "/")
	if i := strings.LastIndexByte(full, '/'); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

// Metrics считает вызовы по коду, длительность и вызовы в работе.
// m == nil означает общий экземпляр metrics.Get().
func Metrics(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	if m == nil {
		m = metrics.Get()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		defer m.TrackInFlight(info.FullMethod)()

		start := time.Now()
		resp, err := handler(ctx, req)
		m.RecordGRPCRequest(info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// Tracing серверный span, дочерний к контексту из входящих метаданных
func Tracing() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		service, method := splitMethod(info.FullMethod)
		attrs := []attribute.KeyValue{
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
		}
		if id := RequestIDFromContext(ctx); id != "" {
			attrs = append(attrs, attribute.String("request.id", id))
		}
		ctx, span := telemetry.StartSpan(telemetry.ExtractIncoming(ctx), strings.TrimPrefix(info.FullMethod, "/"),
			trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(attrs...))
		defer span.End()

		resp, err := handler(ctx, req)

		span.SetAttributes(attribute.Int("rpc.grpc.status_code", int(status.Code(err))))
		if id := runIDOf(req, resp); id != "" {
			span.SetAttributes(attribute.String("siting.run_id", id))
		}
		telemetry.SetError(ctx, err)
		return resp, err
	}
}
