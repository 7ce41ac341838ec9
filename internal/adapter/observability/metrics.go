package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	TasksEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_tasks_enqueued_total",
			Help: "Total number of scan tasks published to the queue",
		},
	)
	TasksReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_tasks_received_total",
			Help: "Total number of queue messages received by outcome",
		},
		[]string{"outcome"},
	)

	ObjectsProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scan_objects_processing",
			Help: "Number of objects currently being scanned",
		},
	)
	ObjectsScannedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_objects_total",
			Help: "Total number of objects finished by result",
		},
		[]string{"result"},
	)
	ObjectScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_object_duration_seconds",
			Help:    "Time from fetch start to stored findings per object",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
	ObjectFetchBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_object_fetch_bytes",
			Help:    "Size distribution of fetched objects in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	FindingsInsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_findings_inserted_total",
			Help: "Total number of findings persisted by detector",
		},
		[]string{"detector"},
	)
	StuckObjectsReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_stuck_objects_reaped_total",
			Help: "Total number of stale processing rows moved to failed",
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(TasksEnqueuedTotal)
	prometheus.MustRegister(TasksReceivedTotal)
	prometheus.MustRegister(ObjectsProcessing)
	prometheus.MustRegister(ObjectsScannedTotal)
	prometheus.MustRegister(ObjectScanDuration)
	prometheus.MustRegister(ObjectFetchBytes)
	prometheus.MustRegister(FindingsInsertedTotal)
	prometheus.MustRegister(StuckObjectsReapedTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

func EnqueueTasks(n int) {
	TasksEnqueuedTotal.Add(float64(n))
}

func ReceiveTask(outcome string) {
	TasksReceivedTotal.WithLabelValues(outcome).Inc()
}

func StartProcessingObject() {
	ObjectsProcessing.Inc()
}

// FinishObject closes out one object scan; result is succeeded, failed or
// skipped.
func FinishObject(result string, dur time.Duration) {
	ObjectsProcessing.Dec()
	ObjectsScannedTotal.WithLabelValues(result).Inc()
	ObjectScanDuration.Observe(dur.Seconds())
}

func ObserveFetchSize(bytes int64) {
	ObjectFetchBytes.Observe(float64(bytes))
}

func InsertFindings(detector string, n int) {
	if n > 0 {
		FindingsInsertedTotal.WithLabelValues(detector).Add(float64(n))
	}
}

func ReapStuckObjects(n int64) {
	if n > 0 {
		StuckObjectsReapedTotal.Add(float64(n))
	}
}
