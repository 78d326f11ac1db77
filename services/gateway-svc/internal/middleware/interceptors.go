// Package middleware перехватчики connect и HTTP middleware шлюза.
package middleware

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/metadata"

	"siting/pkg/auth"
	"siting/pkg/config"
	"siting/pkg/logger"
	"siting/pkg/metrics"
	"siting/pkg/ratelimit"
	"siting/pkg/telemetry"
)

// RequestIDHeader заголовок идентификатора запроса
const RequestIDHeader = "X-Request-ID"

// NewLoggingInterceptor выдаёт request id, передаёт его в siting-svc и логирует запрос
func NewLoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			requestID := req.Header().Get(RequestIDHeader)
			if requestID == "" {
				requestID = GenerateRequestID()
			}
			procedure := req.Spec().Procedure

			ctx = WithRequestID(ctx, requestID)
			ctx = metadata.AppendToOutgoingContext(ctx, strings.ToLower(RequestIDHeader), requestID)
			log := logger.Log.With("request_id", requestID, "method", procedure)
			ctx = logger.ContextWithLogger(ctx, log)

			start := time.Now()
			resp, err := next(ctx, req)
			duration := time.Since(start)

			if err != nil {
				var cerr *connect.Error
				if errors.As(err, &cerr) {
					cerr.Meta().Set(RequestIDHeader, requestID)
				}
				log.Error("Request failed",
					"duration_ms", duration.Milliseconds(),
					"code", connect.CodeOf(err).String(),
					"error", err,
				)
				return nil, err
			}

			resp.Header().Set(RequestIDHeader, requestID)
			log.Info("Request completed", "duration_ms", duration.Milliseconds())
			return resp, nil
		}
	}
}

// NewTracingInterceptor открывает серверный span и передаёт контекст трассировки дальше
func NewTracingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure
			ctx, span := telemetry.StartSpan(ctx, procedure, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				attribute.String("rpc.system", "connect"),
				attribute.String("rpc.method", procedure),
				attribute.String("rpc.protocol", req.Peer().Protocol),
			)

			resp, err := next(telemetry.InjectOutgoing(ctx), req)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				span.SetAttributes(attribute.String("rpc.connect.code", connect.CodeOf(err).String()))
				span.RecordError(err)
				return nil, err
			}
			span.SetStatus(codes.Ok, "")
			return resp, nil
		}
	}
}

// APIKeyHeader заголовок ключа машинного клиента
const APIKeyHeader = "X-API-Key"

// NewAuthInterceptor проверяет bearer токен или API ключ и передаёт
// пользователя в siting-svc через x-user-id/x-username. nil пропускает всё.
func NewAuthInterceptor(authn *auth.Authenticator) connect.UnaryInterceptorFunc {
	if authn == nil {
		return func(next connect.UnaryFunc) connect.UnaryFunc { return next }
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			p, err := authn.Authenticate(ctx, auth.Credentials{
				Authorization: req.Header().Get("Authorization"),
				APIKey:        req.Header().Get(APIKeyHeader),
			})
			if err != nil {
				logger.WithContext(ctx).Warn("Authentication failed", "error", err)
				msg := "invalid credentials"
				if errors.Is(err, auth.ErrMissingCredentials) {
					msg = "missing credentials"
				}
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New(msg))
			}

			ctx = WithPrincipal(ctx, p)
			ctx = metadata.AppendToOutgoingContext(ctx, "x-user-id", p.UserID, "x-username", p.Username)
			ctx = logger.ContextWithLogger(ctx, logger.WithContext(ctx).With("user_id", p.UserID))
			return next(ctx, req)
		}
	}
}

// NewRateLimitInterceptor ограничивает частоту запросов. Прогоны оптимизации
// расходуют лимит по MethodCosts. Ошибка лимитера запрос не блокирует.
func NewRateLimitInterceptor(limiter ratelimit.Limiter, cfg config.RateLimitConfig) connect.UnaryInterceptorFunc {
	if limiter == nil || !cfg.Enabled {
		return func(next connect.UnaryFunc) connect.UnaryFunc { return next }
	}

	keyOf := ratelimit.KeyFuncFor(cfg.KeyFunc)
	costs := ratelimit.MethodCosts(cfg.MethodCosts)

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure
			key := keyOf(procedure, requestMetadata(ctx, req))

			d, err := limiter.Take(ctx, key, costs.Cost(procedure))
			if err != nil {
				logger.WithContext(ctx).Warn("Rate limit check failed", "error", err, "key", key)
				return next(ctx, req)
			}
			if d.Allowed {
				resp, err := next(ctx, req)
				if err == nil {
					setLimitHeaders(resp.Header(), d)
				}
				return resp, err
			}

			logger.WithContext(ctx).Warn("Rate limit exceeded", "key", key, "retry_after", d.RetryAfter)
			cerr := connect.NewError(connect.CodeResourceExhausted, errors.New("rate limit exceeded"))
			setLimitHeaders(cerr.Meta(), d)
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			cerr.Meta().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			return nil, cerr
		}
	}
}

func setLimitHeaders(h http.Header, d ratelimit.Decision) {
	h.Set("X-Ratelimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-Ratelimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-Ratelimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))
}

// requestMetadata заголовки запроса в виде, который понимают извлекатели ключей.
// Пользователь берётся только из аутентификации, не из заголовков клиента.
func requestMetadata(ctx context.Context, req connect.AnyRequest) ratelimit.Meta {
	md := make(ratelimit.Meta, 4)
	for _, h := range []string{"X-Forwarded-For", "X-Real-IP"} {
		if v := req.Header().Get(h); v != "" {
			md[strings.ToLower(h)] = strings.TrimSpace(strings.Split(v, ",")[0])
		}
	}
	if p := GetPrincipal(ctx); p != nil {
		md["x-user-id"] = p.UserID
	}
	if addr := req.Peer().Addr; addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		md[":authority"] = addr
	}
	return md
}

// NewMetricsInterceptor собирает метрики
func NewMetricsInterceptor() connect.UnaryInterceptorFunc {
	m := metrics.Get()

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()

			resp, err := next(ctx, req)

			status := "OK"
			if err != nil {
				status = connect.CodeOf(err).String()
			}
			m.RecordGRPCRequest(req.Spec().Procedure, status, time.Since(start))

			return resp, err
		}
	}
}
