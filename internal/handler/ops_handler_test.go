package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-card-sync/internal/models"
	"github.com/noah-isme/sma-card-sync/internal/service"
)

type fakeStatusReader struct {
	status models.SyncStatus
}

func (f *fakeStatusReader) Status() models.SyncStatus {
	return f.status
}

func newOpsRouter(h *OpsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)
	return r
}

func serve(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestOpsHandlerHealth(t *testing.T) {
	rec := serve(newOpsRouter(NewOpsHandler(nil, nil)), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpsHandlerReady(t *testing.T) {
	reader := &fakeStatusReader{status: models.SyncStatus{State: models.LoopStateIdle}}
	router := newOpsRouter(NewOpsHandler(reader, nil))

	assert.Equal(t, http.StatusOK, serve(router, "/ready").Code)

	reader.status.State = models.LoopStateCancelled
	rec := serve(router, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "sync loop stopped")
}

func TestOpsHandlerStatus(t *testing.T) {
	finished := time.Date(2026, 10, 18, 9, 0, 6, 0, time.UTC)
	reader := &fakeStatusReader{status: models.SyncStatus{
		State:     models.LoopStateIdle,
		CyclesRun: 7,
		LastCycle: &models.CycleOutcome{
			ID:         "cycle-7",
			Status:     models.CycleStatusFailed,
			Attempted:  2,
			Persisted:  1,
			Error:      "failed to persist student Ana 2021/019-A",
			FinishedAt: finished,
		},
	}}

	rec := serve(newOpsRouter(NewOpsHandler(reader, nil)), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.SyncStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, uint64(7), envelope.Data.CyclesRun)
	require.NotNil(t, envelope.Data.LastCycle)
	assert.Equal(t, models.CycleStatusFailed, envelope.Data.LastCycle.Status)
	assert.Equal(t, 1, envelope.Data.LastCycle.Persisted)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestOpsHandlerWithoutLoop(t *testing.T) {
	router := newOpsRouter(NewOpsHandler(nil, nil))

	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/status").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/ready").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/metrics").Code)
}

func TestOpsHandlerMetrics(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveRecord(true)

	rec := serve(newOpsRouter(NewOpsHandler(nil, metrics)), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sync_records_total")
}
