package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	sitingv1 "siting/api/siting/v1"
	"siting/pkg/apperror"
)

// SitingClient клиент для siting-svc; ошибки сервиса возвращаются как *apperror.Error
type SitingClient struct {
	conn   *grpc.ClientConn
	client sitingv1.SitingServiceClient
}

// NewSitingClient создаёт клиента с retry
func NewSitingClient(ctx context.Context, cfg ClientConfig, extra ...grpc.DialOption) (*SitingClient, error) {
	conn, err := NewGRPCClient(ctx, cfg, extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to siting service: %w", err)
	}
	return &SitingClient{
		conn:   conn,
		client: sitingv1.NewSitingServiceClient(conn),
	}, nil
}

// Close закрывает соединение
func (c *SitingClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Conn возвращает соединение, например для health клиента
func (c *SitingClient) Conn() *grpc.ClientConn {
	return c.conn
}

func (c *SitingClient) Optimize(ctx context.Context, in *sitingv1.OptimizeRequest) (*sitingv1.OptimizeResponse, error) {
	return call(ctx, in, c.client.Optimize)
}

func (c *SitingClient) OptimizeWaste(ctx context.Context, in *sitingv1.WasteRequest) (*sitingv1.WasteResponse, error) {
	return call(ctx, in, c.client.OptimizeWaste)
}

func (c *SitingClient) PlanRoutes(ctx context.Context, in *sitingv1.RouteRequest) (*sitingv1.RouteResponse, error) {
	return call(ctx, in, c.client.PlanRoutes)
}

func (c *SitingClient) GetRun(ctx context.Context, in *sitingv1.GetRunRequest) (*sitingv1.GetRunResponse, error) {
	return call(ctx, in, c.client.GetRun)
}

func (c *SitingClient) ListRuns(ctx context.Context, in *sitingv1.ListRunsRequest) (*sitingv1.ListRunsResponse, error) {
	return call(ctx, in, c.client.ListRuns)
}

func (c *SitingClient) ExportGeoJSON(ctx context.Context, in *sitingv1.GetRunRequest) (*sitingv1.GeoJSONResponse, error) {
	return call(ctx, in, c.client.ExportGeoJSON)
}

func (c *SitingClient) GenerateReport(ctx context.Context, in *sitingv1.ReportRequest) (*sitingv1.ReportResponse, error) {
	return call(ctx, in, c.client.GenerateReport)
}

func call[Req, Resp any](ctx context.Context, in Req, fn func(context.Context, Req, ...grpc.CallOption) (Resp, error)) (Resp, error) {
	resp, err := fn(ctx, in)
	if err != nil {
		var zero Resp
		return zero, apperror.FromGRPC(err)
	}
	return resp, nil
}
