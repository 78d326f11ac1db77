package interceptors

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"siting/pkg/logger"
)

// RequestIDHeader ключ метаданных с идентификатором запроса
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// RequestIDFromContext идентификатор, выданный RequestID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID берёт x-request-id от шлюза или выдаёт новый, возвращает его
// в заголовке ответа и кладёт в контекст логгер с request_id и method
func RequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 {
				id = v[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id)); err != nil {
			logger.Log.Debug("Failed to set request id header", "error", err)
		}

		ctx = context.WithValue(ctx, requestIDKey{}, id)
		ctx = logger.ContextWithLogger(ctx, logger.Log.With("request_id", id, "method", info.FullMethod))
		return handler(ctx, req)
	}
}
