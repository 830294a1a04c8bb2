package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-card-sync/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the sync worker.
// Every method is safe to call on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	cyclesTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	recordsTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	dbQueryDuration *prometheus.HistogramVec
	lastSuccess     prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

// NewMetricsService registers the worker collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	cyclesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_cycles_total",
		Help: "Sync cycles by terminal status",
	}, []string{"status"})

	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_cycle_duration_seconds",
		Help:    "Wall time of one fetch-parse-persist cycle",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	recordsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_records_total",
		Help: "Student records handed to the database by result",
	}, []string{"result"})

	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_fetch_duration_seconds",
		Help:    "Duration of the student API call",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_last_success_timestamp_seconds",
		Help: "Unix time of the last completed cycle",
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ops_http_request_duration_seconds",
		Help:    "Duration of requests served by the ops listener",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(cyclesTotal, cycleDuration, recordsTotal, fetchDuration, dbQueryDuration, lastSuccess, requestDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		cyclesTotal:     cyclesTotal,
		cycleDuration:   cycleDuration,
		recordsTotal:    recordsTotal,
		fetchDuration:   fetchDuration,
		dbQueryDuration: dbQueryDuration,
		lastSuccess:     lastSuccess,
		requestDuration: requestDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCycle records the outcome of one cycle.
func (m *MetricsService) ObserveCycle(outcome models.CycleOutcome) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(string(outcome.Status)).Inc()
	if outcome.Status == models.CycleStatusSkipped {
		return
	}
	m.cycleDuration.Observe(outcome.Duration().Seconds())
	if outcome.Status == models.CycleStatusCompleted {
		m.lastSuccess.Set(float64(outcome.FinishedAt.Unix()))
	}
}

// ObserveRecord counts one persistence attempt.
func (m *MetricsService) ObserveRecord(persisted bool) {
	if m == nil {
		return
	}
	result := "failed"
	if persisted {
		result = "persisted"
	}
	m.recordsTotal.WithLabelValues(result).Inc()
}

// ObserveFetch records the API call duration. A zero status means the transport failed.
func (m *MetricsService) ObserveFetch(status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = fmt.Sprintf("%d", status)
	}
	m.fetchDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveDBQuery records database call timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveHTTPRequest records requests served by the ops listener.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Observe(duration.Seconds())
}
