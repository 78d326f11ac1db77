package interceptors

import (
	"context"
	"path"
	"slices"
	"time"

	mw "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"siting/pkg/audit"
	"siting/pkg/logger"
)

// AuditOptions настройки журнала вызовов
type AuditOptions struct {
	Service string
	Logger  audit.Logger
	// Exclude полные имена методов без аудита; health исключён всегда
	Exclude []string
	// IncludeRequest сохраняет запрос с маскированием полей Mask
	IncludeRequest bool
	Mask           []string
}

// runIDGetter запросы и ответы, относящиеся к прогону
type runIDGetter interface {
	GetRunID() string
}

// Audit пишет запись на каждый вызов
func Audit(o AuditOptions) grpc.UnaryServerInterceptor {
	inner := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		md := incoming(ctx)
		e := audit.NewEntry(o.Service, info.FullMethod, actionOf(info.FullMethod))
		e.UserID, e.Username = md["x-user-id"], md["x-username"]
		e.ClientIP = clientIP(md)
		e.UserAgent = md["user-agent"]
		e.RequestID = RequestIDFromContext(ctx)
		e.RunID = runIDOf(req, resp)
		e.LatencyMs = time.Since(start).Milliseconds()
		if o.IncludeRequest {
			e.Attach("request", req, o.Mask)
		}
		if err != nil {
			st := status.Convert(err)
			e.Fail(outcomeOf(st.Code()), st.Code().String(), st.Message())
		}

		if logErr := o.Logger.Log(ctx, e); logErr != nil {
			logger.FromContext(ctx).Warn("Failed to write audit entry", "error", logErr)
		}
		return resp, err
	}

	skip := append([]string{}, o.Exclude...)
	return selector.UnaryServerInterceptor(inner, selector.MatchFunc(func(_ context.Context, c mw.CallMeta) bool {
		return c.Service != grpc_health_v1.Health_ServiceDesc.ServiceName && !slices.Contains(skip, c.FullMethod())
	}))
}

func actionOf(fullMethod string) audit.Action {
	switch path.Base(fullMethod) {
	case "Optimize", "OptimizeWaste":
		return audit.ActionOptimize
	case "PlanRoutes":
		return audit.ActionPlanRoutes
	case "ExportGeoJSON", "GenerateReport":
		return audit.ActionExport
	default:
		return audit.ActionRead
	}
}

func outcomeOf(code codes.Code) audit.Outcome {
	switch code {
	case codes.ResourceExhausted, codes.Unauthenticated, codes.PermissionDenied:
		return audit.OutcomeDenied
	default:
		return audit.OutcomeFailure
	}
}

// runIDOf идентификатор прогона из запроса, иначе из ответа
func runIDOf(req, resp any) string {
	for _, m := range []any{req, resp} {
		if g, ok := m.(runIDGetter); ok {
			if id := g.GetRunID(); id != "" {
				return id
			}
		}
	}
	return ""
}
