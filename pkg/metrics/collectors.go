package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// RuntimeCollector снимает runtime.MemStats на каждом scrape
type RuntimeCollector struct {
	goroutines, heapAlloc, heapSys, gcRuns, gcPause *prometheus.Desc
}

func NewRuntimeCollector(namespace, subsystem string) *RuntimeCollector {
	d := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, "runtime_"+name), help, nil, nil)
	}
	return &RuntimeCollector{
		goroutines: d("goroutines", "Live goroutines"),
		heapAlloc:  d("heap_alloc_bytes", "Heap bytes in use"),
		heapSys:    d("heap_sys_bytes", "Heap bytes obtained from the OS"),
		gcRuns:     d("gc_runs_total", "Completed GC cycles"),
		gcPause:    d("gc_last_pause_seconds", "Last GC pause"),
	}
}

func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.goroutines, c.heapAlloc, c.heapSys, c.gcRuns, c.gcPause} {
		ch <- d
	}
}

func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	gauge(c.goroutines, float64(runtime.NumGoroutine()))
	gauge(c.heapAlloc, float64(ms.HeapAlloc))
	gauge(c.heapSys, float64(ms.HeapSys))
	ch <- prometheus.MustNewConstMetric(c.gcRuns, prometheus.CounterValue, float64(ms.NumGC))
	// PauseNs кольцевой, последняя пауза в (NumGC+255)%256
	if ms.NumGC > 0 {
		gauge(c.gcPause, float64(ms.PauseNs[(ms.NumGC+255)%256])/1e9)
	}
}
