package sitingv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName полное имя gRPC-сервиса
const ServiceName = "siting.v1.SitingService"

// Полные имена методов
const (
	SitingService_Optimize_FullMethodName       = "/siting.v1.SitingService/Optimize"
	SitingService_OptimizeWaste_FullMethodName  = "/siting.v1.SitingService/OptimizeWaste"
	SitingService_PlanRoutes_FullMethodName     = "/siting.v1.SitingService/PlanRoutes"
	SitingService_GetRun_FullMethodName         = "/siting.v1.SitingService/GetRun"
	SitingService_ListRuns_FullMethodName       = "/siting.v1.SitingService/ListRuns"
	SitingService_ExportGeoJSON_FullMethodName  = "/siting.v1.SitingService/ExportGeoJSON"
	SitingService_GenerateReport_FullMethodName = "/siting.v1.SitingService/GenerateReport"
)

// SitingServiceServer серверная сторона сервиса
type SitingServiceServer interface {
	Optimize(context.Context, *OptimizeRequest) (*OptimizeResponse, error)
	OptimizeWaste(context.Context, *WasteRequest) (*WasteResponse, error)
	PlanRoutes(context.Context, *RouteRequest) (*RouteResponse, error)
	GetRun(context.Context, *GetRunRequest) (*GetRunResponse, error)
	ListRuns(context.Context, *ListRunsRequest) (*ListRunsResponse, error)
	ExportGeoJSON(context.Context, *GetRunRequest) (*GeoJSONResponse, error)
	GenerateReport(context.Context, *ReportRequest) (*ReportResponse, error)
}

// UnimplementedSitingServiceServer встраивается в реализации ради совместимости
type UnimplementedSitingServiceServer struct{}

func (UnimplementedSitingServiceServer) Optimize(context.Context, *OptimizeRequest) (*OptimizeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Optimize not implemented")
}

func (UnimplementedSitingServiceServer) OptimizeWaste(context.Context, *WasteRequest) (*WasteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method OptimizeWaste not implemented")
}

func (UnimplementedSitingServiceServer) PlanRoutes(context.Context, *RouteRequest) (*RouteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PlanRoutes not implemented")
}

func (UnimplementedSitingServiceServer) GetRun(context.Context, *GetRunRequest) (*GetRunResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRun not implemented")
}

func (UnimplementedSitingServiceServer) ListRuns(context.Context, *ListRunsRequest) (*ListRunsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListRuns not implemented")
}

func (UnimplementedSitingServiceServer) ExportGeoJSON(context.Context, *GetRunRequest) (*GeoJSONResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ExportGeoJSON not implemented")
}

func (UnimplementedSitingServiceServer) GenerateReport(context.Context, *ReportRequest) (*ReportResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GenerateReport not implemented")
}

// RegisterSitingServiceServer регистрирует реализацию на сервере
func RegisterSitingServiceServer(s grpc.ServiceRegistrar, srv SitingServiceServer) {
	s.RegisterService(&SitingService_ServiceDesc, srv)
}

// unaryHandler строит обработчик метода с декодированием запроса и цепочкой перехватчиков
func unaryHandler[Req, Resp any](fullMethod string, call func(SitingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SitingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SitingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SitingService_ServiceDesc описание сервиса для grpc.ServiceRegistrar
var SitingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SitingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Optimize",
			Handler:    unaryHandler(SitingService_Optimize_FullMethodName, SitingServiceServer.Optimize),
		},
		{
			MethodName: "OptimizeWaste",
			Handler:    unaryHandler(SitingService_OptimizeWaste_FullMethodName, SitingServiceServer.OptimizeWaste),
		},
		{
			MethodName: "PlanRoutes",
			Handler:    unaryHandler(SitingService_PlanRoutes_FullMethodName, SitingServiceServer.PlanRoutes),
		},
		{
			MethodName: "GetRun",
			Handler:    unaryHandler(SitingService_GetRun_FullMethodName, SitingServiceServer.GetRun),
		},
		{
			MethodName: "ListRuns",
			Handler:    unaryHandler(SitingService_ListRuns_FullMethodName, SitingServiceServer.ListRuns),
		},
		{
			MethodName: "ExportGeoJSON",
			Handler:    unaryHandler(SitingService_ExportGeoJSON_FullMethodName, SitingServiceServer.ExportGeoJSON),
		},
		{
			MethodName: "GenerateReport",
			Handler:    unaryHandler(SitingService_GenerateReport_FullMethodName, SitingServiceServer.GenerateReport),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "siting/v1/siting.json",
}

// SitingServiceClient клиентская сторона сервиса
type SitingServiceClient interface {
	Optimize(ctx context.Context, in *OptimizeRequest, opts ...grpc.CallOption) (*OptimizeResponse, error)
	OptimizeWaste(ctx context.Context, in *WasteRequest, opts ...grpc.CallOption) (*WasteResponse, error)
	PlanRoutes(ctx context.Context, in *RouteRequest, opts ...grpc.CallOption) (*RouteResponse, error)
	GetRun(ctx context.Context, in *GetRunRequest, opts ...grpc.CallOption) (*GetRunResponse, error)
	ListRuns(ctx context.Context, in *ListRunsRequest, opts ...grpc.CallOption) (*ListRunsResponse, error)
	ExportGeoJSON(ctx context.Context, in *GetRunRequest, opts ...grpc.CallOption) (*GeoJSONResponse, error)
	GenerateReport(ctx context.Context, in *ReportRequest, opts ...grpc.CallOption) (*ReportResponse, error)
}

type sitingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSitingServiceClient создаёт клиента поверх соединения
func NewSitingServiceClient(cc grpc.ClientConnInterface) SitingServiceClient {
	return &sitingServiceClient{cc: cc}
}

// invoke выполняет унарный вызов с JSON-кодеком
func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sitingServiceClient) Optimize(ctx context.Context, in *OptimizeRequest, opts ...grpc.CallOption) (*OptimizeResponse, error) {
	return invoke[OptimizeResponse](ctx, c.cc, SitingService_Optimize_FullMethodName, in, opts)
}

func (c *sitingServiceClient) OptimizeWaste(ctx context.Context, in *WasteRequest, opts ...grpc.CallOption) (*WasteResponse, error) {
	return invoke[WasteResponse](ctx, c.cc, SitingService_OptimizeWaste_FullMethodName, in, opts)
}

func (c *sitingServiceClient) PlanRoutes(ctx context.Context, in *RouteRequest, opts ...grpc.CallOption) (*RouteResponse, error) {
	return invoke[RouteResponse](ctx, c.cc, SitingService_PlanRoutes_FullMethodName, in, opts)
}

func (c *sitingServiceClient) GetRun(ctx context.Context, in *GetRunRequest, opts ...grpc.CallOption) (*GetRunResponse, error) {
	return invoke[GetRunResponse](ctx, c.cc, SitingService_GetRun_FullMethodName, in, opts)
}

func (c *sitingServiceClient) ListRuns(ctx context.Context, in *ListRunsRequest, opts ...grpc.CallOption) (*ListRunsResponse, error) {
	return invoke[ListRunsResponse](ctx, c.cc, SitingService_ListRuns_FullMethodName, in, opts)
}

func (c *sitingServiceClient) ExportGeoJSON(ctx context.Context, in *GetRunRequest, opts ...grpc.CallOption) (*GeoJSONResponse, error) {
	return invoke[GeoJSONResponse](ctx, c.cc, SitingService_ExportGeoJSON_FullMethodName, in, opts)
}

func (c *sitingServiceClient) GenerateReport(ctx context.Context, in *ReportRequest, opts ...grpc.CallOption) (*ReportResponse, error) {
	return invoke[ReportResponse](ctx, c.cc, SitingService_GenerateReport_FullMethodName, in, opts)
}
