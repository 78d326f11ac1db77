package sitingv1

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"siting/pkg/apperror"
	"siting/pkg/domain"
)

type routesOnly struct {
	UnimplementedSitingServiceServer
	got *RouteRequest
}

func (s *routesOnly) PlanRoutes(_ context.Context, in *RouteRequest) (*RouteResponse, error) {
	s.got = in
	return &RouteResponse{Plan: RoutePlan{TotalDistanceKm: 12.5, Unassigned: []domain.WastePoint{}}}, nil
}

func dial(t *testing.T, impl SitingServiceServer) SitingServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterSitingServiceServer(srv, impl)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewSitingServiceClient(conn)
}

func TestClient_RoundTrip(t *testing.T) {
	impl := &routesOnly{}
	client := dial(t, impl)

	resp, err := client.PlanRoutes(context.Background(), &RouteRequest{
		Depot:    domain.Coordinates{Lat: 55.75, Lon: 37.61},
		Vehicles: []domain.Vehicle{{ID: "v1", Capacity: 10, AvgSpeedKmh: 30}},
	})
	require.NoError(t, err)

	assert.Equal(t, 12.5, resp.Plan.TotalDistanceKm)
	require.NotNil(t, impl.got)
	assert.Equal(t, 55.75, impl.got.Depot.Lat)
	assert.Equal(t, "v1", impl.got.Vehicles[0].ID)
}

func TestClient_Unimplemented(t *testing.T) {
	client := dial(t, &routesOnly{})

	_, err := client.Optimize(context.Background(), &OptimizeRequest{})
	require.Error(t, err)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestCodec(t *testing.T) {
	c := Codec{}
	assert.Equal(t, "json", c.Name())

	data, err := c.Marshal(&GetRunRequest{RunID: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"run_id":"abc"}`, string(data))

	var out GetRunRequest
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, "abc", out.RunID)
}

func TestRequestValidation(t *testing.T) {
	assert.Error(t, (&GetRunRequest{}).Validate())
	assert.NoError(t, (&GetRunRequest{RunID: "r"}).Validate())

	assert.NoError(t, (&ListRunsRequest{Limit: 10, Modes: []string{ModeWaste}}).Validate())
	assert.True(t, apperror.Is((&ListRunsRequest{Limit: MaxListLimit + 1}).Validate(), apperror.CodeInvalidPagination))
	assert.True(t, apperror.IsConfiguration((&ListRunsRequest{Modes: []string{"transit"}}).Validate()))

	assert.NoError(t, (&ReportRequest{RunID: "r"}).Validate())
	assert.True(t, apperror.Is((&ReportRequest{RunID: "r", Format: "docx"}).Validate(), apperror.CodeUnknownOption))

	var resp *OptimizeResponse
	assert.Equal(t, "", resp.GetRunID())
	assert.Equal(t, "r", (&WasteResponse{RunID: "r"}).GetRunID())
}
