// Package handlers connect обработчики шлюза, проксирующие вызовы в siting-svc.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"

	sitingv1 "siting/api/siting/v1"
	"siting/pkg/apperror"
	"siting/pkg/config"
)

// Заголовки с кодом ошибки приложения
const (
	ErrorCodeHeader  = "X-Error-Code"
	ErrorFieldHeader = "X-Error-Field"
)

// Backend сервис, в который шлюз передаёт вызовы. Ошибки ожидаются как *apperror.Error.
type Backend interface {
	Optimize(ctx context.Context, in *sitingv1.OptimizeRequest) (*sitingv1.OptimizeResponse, error)
	OptimizeWaste(ctx context.Context, in *sitingv1.WasteRequest) (*sitingv1.WasteResponse, error)
	PlanRoutes(ctx context.Context, in *sitingv1.RouteRequest) (*sitingv1.RouteResponse, error)
	GetRun(ctx context.Context, in *sitingv1.GetRunRequest) (*sitingv1.GetRunResponse, error)
	ListRuns(ctx context.Context, in *sitingv1.ListRunsRequest) (*sitingv1.ListRunsResponse, error)
	ExportGeoJSON(ctx context.Context, in *sitingv1.GetRunRequest) (*sitingv1.GeoJSONResponse, error)
	GenerateReport(ctx context.Context, in *sitingv1.ReportRequest) (*sitingv1.ReportResponse, error)
}

// GatewayHandler connect обработчики siting.v1.SitingService
type GatewayHandler struct {
	backend   Backend
	health    HealthChecker
	config    *config.Config
	startedAt time.Time
}

// NewGatewayHandler создаёт handler
func NewGatewayHandler(backend Backend, health HealthChecker, cfg *config.Config) *GatewayHandler {
	return &GatewayHandler{
		backend:   backend,
		health:    health,
		config:    cfg,
		startedAt: time.Now(),
	}
}

// Register регистрирует процедуры сервиса в mux. Сообщения идут в JSON
// с тем же кодеком, что и между шлюзом и siting-svc.
func (h *GatewayHandler) Register(mux *http.ServeMux, opts ...connect.HandlerOption) {
	opts = append([]connect.HandlerOption{connect.WithCodec(sitingv1.Codec{})}, opts...)

	handle(mux, sitingv1.SitingService_Optimize_FullMethodName, h.backend.Optimize, opts)
	handle(mux, sitingv1.SitingService_OptimizeWaste_FullMethodName, h.backend.OptimizeWaste, opts)
	handle(mux, sitingv1.SitingService_PlanRoutes_FullMethodName, h.backend.PlanRoutes, opts)
	handle(mux, sitingv1.SitingService_GetRun_FullMethodName, h.backend.GetRun, opts)
	handle(mux, sitingv1.SitingService_ListRuns_FullMethodName, h.backend.ListRuns, opts)
	handle(mux, sitingv1.SitingService_ExportGeoJSON_FullMethodName, h.backend.ExportGeoJSON, opts)
	handle(mux, sitingv1.SitingService_GenerateReport_FullMethodName, h.backend.GenerateReport, opts)
}

func handle[Req, Resp any](
	mux *http.ServeMux,
	procedure string,
	call func(context.Context, *Req) (*Resp, error),
	opts []connect.HandlerOption,
) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Resp], error) {
			resp, err := call(ctx, req.Msg)
			if err != nil {
				return nil, toConnectError(err)
			}
			return connect.NewResponse(resp), nil
		},
		opts...,
	))
}

// toConnectError переводит ошибку siting-svc в ошибку connect с тем же кодом
func toConnectError(err error) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.FromGRPC(err)
	}

	code := connect.Code(appErr.GRPCCode())
	cerr := connect.NewError(code, errors.New(appErr.Message))
	cerr.Meta().Set(ErrorCodeHeader, string(appErr.Code))
	if appErr.Field != "" {
		cerr.Meta().Set(ErrorFieldHeader, appErr.Field)
	}
	return cerr
}
