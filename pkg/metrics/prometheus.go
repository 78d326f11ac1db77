// Package metrics Prometheus метрики сервисов siting.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	GRPCRequestsTotal    *prometheus.CounterVec
	GRPCRequestDuration  *prometheus.HistogramVec
	GRPCRequestsInFlight *prometheus.GaugeVec

	RunsTotal        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	SelectedSites    *prometheus.HistogramVec
	Coverage         *prometheus.HistogramVec
	Candidates       prometheus.Histogram
	UnderservedCells prometheus.Histogram
	ParetoFrontSize  prometheus.Histogram
	GAGenerations    prometheus.Histogram
	RouteDistanceKm  prometheus.Histogram

	CacheRequests    *prometheus.CounterVec
	ProviderResolved *prometheus.CounterVec
	ServiceInfo      *prometheus.GaugeVec
}

// builder подставляет namespace/subsystem во все опции
type builder struct {
	f       promauto.Factory
	ns, sub string
}

func (b builder) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return b.f.NewCounterVec(prometheus.CounterOpts{Namespace: b.ns, Subsystem: b.sub, Name: name, Help: help}, labels)
}

func (b builder) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return b.f.NewHistogramVec(prometheus.HistogramOpts{Namespace: b.ns, Subsystem: b.sub, Name: name, Help: help, Buckets: buckets}, labels)
}

func (b builder) single(name, help string, buckets []float64) prometheus.Histogram {
	return b.f.NewHistogram(prometheus.HistogramOpts{Namespace: b.ns, Subsystem: b.sub, Name: name, Help: help, Buckets: buckets})
}

func (b builder) gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return b.f.NewGaugeVec(prometheus.GaugeOpts{Namespace: b.ns, Subsystem: b.sub, Name: name, Help: help}, labels)
}

// New регистрирует метрики и runtime коллектор в reg. Повторная регистрация
// тех же имён в одном reg паникует.
func New(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	namespace, subsystem = nameSegment(namespace), nameSegment(subsystem)
	b := builder{f: promauto.With(reg), ns: namespace, sub: subsystem}
	seconds := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

	m := &Metrics{
		GRPCRequestsTotal:    b.counter("grpc_requests_total", "gRPC requests by method and status code", "method", "status"),
		GRPCRequestDuration:  b.histogram("grpc_request_duration_seconds", "gRPC request latency", seconds, "method"),
		GRPCRequestsInFlight: b.gauge("grpc_requests_in_flight", "gRPC requests being served", "method"),

		RunsTotal:        b.counter("optimization_runs_total", "Optimization runs by mode and outcome", "mode", "status"),
		StageDuration:    b.histogram("stage_duration_seconds", "Engine stage latency", seconds, "stage"),
		SelectedSites:    b.histogram("selected_sites", "Sites or facilities chosen per run", []float64{0, 1, 2, 3, 5, 10, 20, 50}, "mode"),
		Coverage:         b.histogram("coverage_ratio", "Population coverage ratio", prometheus.LinearBuckets(0, 0.1, 11), "phase"),
		Candidates:       b.single("candidates_generated", "Suitable candidate sites per run", []float64{0, 5, 10, 20, 30, 50, 100}),
		UnderservedCells: b.single("underserved_cells", "Underserved demand cells per run", []float64{0, 10, 50, 100, 500, 1000, 5000, 10000}),
		ParetoFrontSize:  b.single("pareto_front_size", "Size of the first non-dominated front", []float64{1, 2, 5, 10, 20, 50, 100}),
		GAGenerations:    b.single("ga_generations", "Generations run by the genetic optimizer", []float64{1, 10, 25, 50, 100, 200, 500}),
		RouteDistanceKm:  b.single("route_distance_km", "Total distance of planned collection routes", prometheus.ExponentialBuckets(1, 2, 10)),

		CacheRequests:    b.counter("cache_requests_total", "Result cache lookups", "result"),
		ProviderResolved: b.counter("provider_resolutions_total", "Data provider that answered a request", "kind", "source"),
		ServiceInfo:      b.gauge("service_info", "Build and environment of the running service", "version", "environment"),
	}
	reg.MustRegister(NewRuntimeCollector(namespace, subsystem))
	return m
}

// nameSegment "siting-svc" -> "siting_svc"; prometheus допускает только [a-zA-Z0-9_]
func nameSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, s)
}

var (
	mu      sync.Mutex
	current *Metrics
)

// InitMetrics регистрирует метрики в prometheus.DefaultRegisterer и делает их текущими
func InitMetrics(namespace, subsystem string) *Metrics {
	m := New(prometheus.DefaultRegisterer, namespace, subsystem)
	mu.Lock()
	current = m
	mu.Unlock()
	return m
}

// Get текущие метрики; без InitMetrics создаёт их в отдельном реестре
func Get() *Metrics {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = New(prometheus.NewRegistry(), "siting", "")
	}
	return current
}

func (m *Metrics) RecordGRPCRequest(method, status string, d time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(method, status).Inc()
	m.GRPCRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// TrackInFlight увеличивает gauge метода до вызова возвращённой функции
func (m *Metrics) TrackInFlight(method string) (done func()) {
	g := m.GRPCRequestsInFlight.WithLabelValues(method)
	g.Inc()
	var once sync.Once
	return func() { once.Do(g.Dec) }
}

// Run итог прогона. Нулевые счётчики этапов не наблюдаются.
type Run struct {
	Mode             string
	Err              error
	Selected         int
	CoverageBefore   float64
	CoverageAfter    float64
	Candidates       int
	UnderservedCells int
	ParetoFront      int
	Generations      int
	RouteKm          float64
}

func (m *Metrics) RecordRun(r Run) {
	if r.Err != nil {
		m.RunsTotal.WithLabelValues(r.Mode, "error").Inc()
		return
	}
	m.RunsTotal.WithLabelValues(r.Mode, "success").Inc()
	m.SelectedSites.WithLabelValues(r.Mode).Observe(float64(r.Selected))

	if r.CoverageBefore > 0 {
		m.Coverage.WithLabelValues("before").Observe(r.CoverageBefore)
	}
	if r.CoverageAfter > 0 {
		m.Coverage.WithLabelValues("after").Observe(r.CoverageAfter)
	}
	observePositive(m.Candidates, float64(r.Candidates))
	observePositive(m.UnderservedCells, float64(r.UnderservedCells))
	observePositive(m.ParetoFrontSize, float64(r.ParetoFront))
	observePositive(m.GAGenerations, float64(r.Generations))
	observePositive(m.RouteDistanceKm, r.RouteKm)
}

func observePositive(h prometheus.Histogram, v float64) {
	if v > 0 {
		h.Observe(v)
	}
}

// TimeStage запускает таймер этапа; вызов результата пишет длительность
func (m *Metrics) TimeStage(stage string) (stop func() time.Duration) {
	start := time.Now()
	return func() time.Duration {
		d := time.Since(start)
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
		return d
	}
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// RecordProvider kind: population, facilities; source: кто ответил
func (m *Metrics) RecordProvider(kind, source string) {
	m.ProviderResolved.WithLabelValues(kind, source).Inc()
}

func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler отдаёт prometheus.DefaultGatherer
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer отдельный HTTP сервер метрик с /health; запуск и остановка за вызывающим
func NewServer(port int, path string) *http.Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}
