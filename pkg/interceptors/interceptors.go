// Package interceptors серверная цепочка gRPC сервиса размещения.
package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"siting/pkg/metrics"
	"siting/pkg/ratelimit"
)

// Options состав цепочки. Nil Limiter и Audit выключают соответствующие звенья.
type Options struct {
	ServiceName string
	Tracing     bool
	Limiter     ratelimit.Limiter
	KeyFunc     ratelimit.KeyFunc
	Costs       ratelimit.MethodCosts
	Audit       *AuditOptions
	// Metrics nil означает metrics.Get()
	Metrics *metrics.Metrics
}

// Unary собирает цепочку для grpc.ChainUnaryInterceptor: recovery,
// request id, tracing, metrics, logging, rate limit, status, audit.
// Audit стоит внутри status и видит уже приведённые gRPC коды.
func Unary(o Options) []grpc.UnaryServerInterceptor {
	chain := []grpc.UnaryServerInterceptor{Recovery(), RequestID()}
	if o.Tracing {
		chain = append(chain, Tracing())
	}
	chain = append(chain, Metrics(o.Metrics), Logging())
	if o.Limiter != nil {
		chain = append(chain, RateLimit(o.Limiter, o.KeyFunc, o.Costs))
	}
	chain = append(chain, Status())
	if o.Audit != nil && o.Audit.Logger != nil {
		a := *o.Audit
		if a.Service == "" {
			a.Service = o.ServiceName
		}
		chain = append(chain, Audit(a))
	}
	return chain
}

// incoming первое значение каждого ключа входящих метаданных.
// x-forwarded-for сокращается до исходного клиента, адрес соединения
// кладётся в :authority, если шлюз его не передал.
func incoming(ctx context.Context) ratelimit.Meta {
	md, _ := metadata.FromIncomingContext(ctx)
	out := make(ratelimit.Meta, len(md)+1)
	for k, v := range md {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	if xff, ok := out["x-forwarded-for"]; ok {
		out["x-forwarded-for"] = strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if _, ok := out[":authority"]; !ok {
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			out[":authority"] = hostOnly(p.Addr.String())
		}
	}
	return out
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// clientIP адрес клиента с учётом прокси
func clientIP(md ratelimit.Meta) string {
	for _, k := range []string{"x-forwarded-for", "x-real-ip"} {
		if v := md[k]; v != "" {
			return v
		}
	}
	return md[":authority"]
}
