package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-card-sync/internal/models"
)

func TestMetricsServiceObserveCycle(t *testing.T) {
	m := NewMetricsService()
	start := time.Unix(1_700_000_000, 0)

	m.ObserveCycle(models.CycleOutcome{Status: models.CycleStatusCompleted, StartedAt: start, FinishedAt: start.Add(2 * time.Second)})
	m.ObserveCycle(models.CycleOutcome{Status: models.CycleStatusFailed, StartedAt: start, FinishedAt: start.Add(time.Second)})
	m.ObserveCycle(models.CycleOutcome{Status: models.CycleStatusSkipped})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.cyclesTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cyclesTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cyclesTotal.WithLabelValues("skipped")))
	assert.Equal(t, float64(start.Add(2*time.Second).Unix()), testutil.ToFloat64(m.lastSuccess))
}

func TestMetricsServiceRecordsAndFetch(t *testing.T) {
	m := NewMetricsService()

	m.ObserveRecord(true)
	m.ObserveRecord(true)
	m.ObserveRecord(false)
	m.ObserveFetch(200, 10*time.Millisecond)
	m.ObserveFetch(0, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.recordsTotal.WithLabelValues("persisted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.recordsTotal.WithLabelValues("failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.fetchDuration))
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.ObserveRecord(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sync_records_total{result="persisted"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService

	assert.NotPanics(t, func() {
		m.ObserveCycle(models.CycleOutcome{Status: models.CycleStatusCompleted})
		m.ObserveRecord(false)
		m.ObserveFetch(500, time.Second)
		m.ObserveDBQuery("q", time.Second)
		m.ObserveHTTPRequest(http.MethodGet, "/", 200, time.Second)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
