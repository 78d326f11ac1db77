package interceptors

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	sitingv1 "siting/api/siting/v1"
	"siting/pkg/metrics"
)

func TestSplitMethod(t *testing.T) {
	svc, m := splitMethod(sitingv1.SitingService_Optimize_FullMethodName)
	assert.Equal(t, "siting.v1.SitingService", svc)
	assert.Equal(t, "Optimize", m)

	svc, m = splitMethod("Ping")
	assert.Empty(t, svc)
	assert.Equal(t, "Ping", m)
}

func TestMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "test", "interceptors")
	chain := []grpc.UnaryServerInterceptor{Metrics(m)}
	method := sitingv1.SitingService_GetRun_FullMethodName

	_, err := call(context.Background(), chain, method, nil, ok(nil))
	require.NoError(t, err)
	_, err = call(context.Background(), chain, method, nil, fail(status.Error(codes.NotFound, "no run")))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues(method, "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues(method, "NotFound")))
}

func TestTracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	chain := []grpc.UnaryServerInterceptor{RequestID(), Tracing()}
	_, err := call(context.Background(), chain, sitingv1.SitingService_GetRun_FullMethodName,
		&sitingv1.GetRunRequest{RunID: "run-7"}, fail(status.Error(codes.NotFound, "no run")))
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "siting.v1.SitingService/GetRun", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, otelcodes.Error, span.Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "GetRun", attrs["rpc.method"].AsString())
	assert.Equal(t, "siting.v1.SitingService", attrs["rpc.service"].AsString())
	assert.Equal(t, int64(codes.NotFound), attrs["rpc.grpc.status_code"].AsInt64())
	assert.Equal(t, "run-7", attrs["siting.run_id"].AsString())
	assert.Len(t, attrs["request.id"].AsString(), 36)
}
