package interceptors

import (
	"context"
	"math"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"siting/pkg/logger"
	"siting/pkg/ratelimit"
)

// RateLimit расходует costs.Cost(method) единиц лимита ключа клиента.
// Ошибка лимитера запрос не блокирует.
func RateLimit(limiter ratelimit.Limiter, keyOf ratelimit.KeyFunc, costs ratelimit.MethodCosts) grpc.UnaryServerInterceptor {
	if keyOf == nil {
		keyOf = ratelimit.KeyByIP
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		key := keyOf(info.FullMethod, incoming(ctx))
		cost := costs.Cost(info.FullMethod)
		log := logger.FromContext(ctx)

		d, err := limiter.Take(ctx, key, cost)
		if err != nil {
			log.Warn("Rate limit check failed", "error", err, "key", key)
			return handler(ctx, req)
		}

		header := metadata.Pairs(
			"x-ratelimit-limit", strconv.Itoa(d.Limit),
			"x-ratelimit-remaining", strconv.Itoa(d.Remaining),
			"x-ratelimit-reset", d.ResetAt.UTC().Format(time.RFC3339),
		)
		if !d.Allowed {
			header.Set("retry-after", strconv.Itoa(max(int(math.Ceil(d.RetryAfter.Seconds())), 1)))
		}
		if err := grpc.SetHeader(ctx, header); err != nil {
			log.Debug("Failed to set rate limit headers", "error", err)
		}

		if d.Allowed {
			return handler(ctx, req)
		}
		log.Warn("Rate limit exceeded", "key", key, "cost", cost, "retry_after", d.RetryAfter)
		return nil, status.Errorf(codes.ResourceExhausted,
			"rate limit exceeded: %d units per window, call costs %d", d.Limit, cost)
	}
}
