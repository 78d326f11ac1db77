package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	mw "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"siting/pkg/logger"
)

// Recovery превращает панику обработчика в codes.Internal
func Recovery() grpc.UnaryServerInterceptor {
	return recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(
		func(ctx context.Context, p any) error {
			logger.FromContext(ctx).Error("panic in gRPC handler", "panic", p, "stack", string(debug.Stack()))
			return status.Error(codes.Internal, "internal error")
		}))
}

// Logging пишет завершение вызова через логгер из контекста.
// Проверки здоровья не логируются.
func Logging() grpc.UnaryServerInterceptor {
	sink := logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		logger.FromContext(ctx).Log(ctx, slog.Level(lvl), msg, fields...)
	})
	inner := logging.UnaryServerInterceptor(sink,
		logging.WithLogOnEvents(logging.FinishCall),
		logging.WithLevels(levelFor),
		logging.WithFieldsFromContext(traceFields),
	)
	return selector.UnaryServerInterceptor(inner, selector.MatchFunc(notHealth))
}

func notHealth(_ context.Context, c mw.CallMeta) bool {
	return c.Service != grpc_health_v1.Health_ServiceDesc.ServiceName
}

// levelFor ошибки клиента пишутся как warn, сбои сервера как error
func levelFor(code codes.Code) logging.Level {
	switch code {
	case codes.OK:
		return logging.LevelInfo
	case codes.InvalidArgument, codes.NotFound, codes.Canceled, codes.ResourceExhausted,
		codes.FailedPrecondition, codes.DeadlineExceeded, codes.Unauthenticated, codes.PermissionDenied:
		return logging.LevelWarn
	default:
		return logging.LevelError
	}
}

func traceFields(ctx context.Context) logging.Fields {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return logging.Fields{"trace_id", sc.TraceID().String()}
}
