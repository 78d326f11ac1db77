package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg, "test", "siting-svc"), reg
}

func TestNew_Names(t *testing.T) {
	m, reg := newMetrics(t)
	m.RecordGRPCRequest("/siting.v1.SitingService/GetRun", "OK", time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["test_siting_svc_grpc_requests_total"])
	assert.True(t, names["test_siting_svc_runtime_goroutines"])
}

func TestNew_DuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "test", "dup")
	assert.Panics(t, func() { New(reg, "test", "dup") })
}

func TestNameSegment(t *testing.T) {
	assert.Equal(t, "siting_svc", nameSegment("siting-svc"))
	assert.Equal(t, "a_b_c9", nameSegment("a.b c9"))
	assert.Equal(t, "", nameSegment(""))
}

func TestGet(t *testing.T) {
	m := Get()
	require.NotNil(t, m)
	assert.Same(t, m, Get())
}

func TestRecordGRPCRequest(t *testing.T) {
	m, _ := newMetrics(t)
	m.RecordGRPCRequest("/m", "OK", 100*time.Millisecond)
	m.RecordGRPCRequest("/m", "OK", 50*time.Millisecond)
	m.RecordGRPCRequest("/m", "NotFound", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues("/m", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues("/m", "NotFound")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.GRPCRequestDuration))
}

func TestTrackInFlight(t *testing.T) {
	m, _ := newMetrics(t)

	done1 := m.TrackInFlight("/a")
	done2 := m.TrackInFlight("/a")
	m.TrackInFlight("/b")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GRPCRequestsInFlight.WithLabelValues("/a")))

	done1()
	done1()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsInFlight.WithLabelValues("/a")))
	done2()
	assert.Zero(t, testutil.ToFloat64(m.GRPCRequestsInFlight.WithLabelValues("/a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsInFlight.WithLabelValues("/b")))
}

func TestRecordRun(t *testing.T) {
	m, _ := newMetrics(t)

	m.RecordRun(Run{
		Mode: "healthcare", Selected: 3,
		CoverageBefore: 0.4, CoverageAfter: 0.8,
		Candidates: 20, UnderservedCells: 140, ParetoFront: 4,
	})
	m.RecordRun(Run{Mode: "healthcare", Selected: 2, CoverageAfter: 0.6})
	m.RecordRun(Run{Mode: "waste", Selected: 2, Generations: 80, RouteKm: 42})
	m.RecordRun(Run{Mode: "waste", Err: errors.New("boom"), Generations: 99})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("healthcare", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("waste", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("waste", "error")))

	assert.Equal(t, 2, testutil.CollectAndCount(m.Coverage))
	assert.Equal(t, 2, testutil.CollectAndCount(m.SelectedSites))

	// ошибочный прогон и нули не наблюдаются
	assert.Equal(t, uint64(1), sampleCount(t, m.GAGenerations))
	assert.Equal(t, uint64(1), sampleCount(t, m.Candidates))
	assert.Equal(t, uint64(1), sampleCount(t, m.ParetoFrontSize))
	assert.Equal(t, uint64(1), sampleCount(t, m.RouteDistanceKm))
}

func sampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	var pb dto.Metric
	require.NoError(t, (<-ch).Write(&pb))
	return pb.GetHistogram().GetSampleCount()
}

func TestTimeStage(t *testing.T) {
	m, _ := newMetrics(t)

	stop := m.TimeStage("mclp")
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, stop(), 10*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestRecordCacheLookupAndProvider(t *testing.T) {
	m, _ := newMetrics(t)

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.RecordProvider("population", "area_density")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderResolved.WithLabelValues("population", "area_density")))
}

func TestSetServiceInfo(t *testing.T) {
	m, _ := newMetrics(t)
	m.SetServiceInfo("1.0.0", "production")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServiceInfo.WithLabelValues("1.0.0", "production")))
}

func TestRuntimeCollector(t *testing.T) {
	runtime.GC()
	c := NewRuntimeCollector("test", "rt")

	// после GC есть и последняя пауза
	assert.Equal(t, 5, testutil.CollectAndCount(c))
	assert.Equal(t, 1, testutil.CollectAndCount(c, "test_rt_runtime_goroutines"))
}

func TestNewServer(t *testing.T) {
	srv := NewServer(0, "")
	assert.Equal(t, ":0", srv.Addr)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	body, _ := io.ReadAll(w.Body)
	assert.Equal(t, "OK", string(body))

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, w.Code)
}
