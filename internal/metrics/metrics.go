package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upid",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "upid",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10},
	}, []string{"method", "path"})

	// Pipeline metrics
	RecordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "upid",
		Subsystem: "pipeline",
		Name:      "records_processed_total",
		Help:      "Total project-unit records run through the pipeline",
	})

	CoordinateRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upid",
		Subsystem: "pipeline",
		Name:      "coordinate_repairs_total",
		Help:      "Coordinate values repaired or rejected, by axis and repair kind",
	}, []string{"axis", "repair"})

	MatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upid",
		Subsystem: "pipeline",
		Name:      "match_outcomes_total",
		Help:      "Spatial match outcomes by reference set and status",
	}, []string{"set", "status"})

	Issues = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upid",
		Subsystem: "pipeline",
		Name:      "issues_total",
		Help:      "Data-quality issues raised, by severity",
	}, []string{"severity"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "upid",
		Subsystem: "pipeline",
		Name:      "batch_duration_seconds",
		Help:      "Wall time to process one batch",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "upid",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "upid",
		Subsystem: "db",
		Name:      "pool_conns_in_use",
		Help:      "Connections currently in use",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "upid",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request metrics. Paths are reported as the mux route
// template to keep label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// UpdateDBPoolMetrics copies database/sql pool stats into the gauges.
func UpdateDBPoolMetrics(db *sql.DB) {
	if db == nil {
		return
	}
	s := db.Stats()
	DBPoolConnsOpen.Set(float64(s.OpenConnections))
	DBPoolConnsInUse.Set(float64(s.InUse))
	DBPoolConnsIdle.Set(float64(s.Idle))
}
