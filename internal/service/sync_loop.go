package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-card-sync/internal/models"
	appErrors "github.com/noah-isme/sma-card-sync/pkg/errors"
)

const defaultSyncInterval = 6 * time.Second

type cycleProcessor interface {
	ProcessStudents(ctx context.Context) (models.CycleOutcome, error)
}

// SyncLoop drives cycles on a fixed delay until its context is cancelled. Every
// cycle failure, panics included, is logged and absorbed here; the next tick is the
// only retry.
type SyncLoop struct {
	processor cycleProcessor
	interval  time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time

	mu          sync.RWMutex
	state       models.LoopState
	cycles      uint64
	last        *models.CycleOutcome
	lastSuccess *time.Time
}

// NewSyncLoop constructs a loop that waits interval between the end of one cycle and
// the start of the next.
func NewSyncLoop(processor cycleProcessor, interval time.Duration, metrics *MetricsService, logger *zap.Logger) *SyncLoop {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncLoop{
		processor: processor,
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		state:     models.LoopStateIdle,
	}
}

// Run blocks until ctx is cancelled. Cancellation is checked before each cycle and
// ends the delay early; a cycle already under way is not preempted.
func (l *SyncLoop) Run(ctx context.Context) error {
	l.logger.Info("sync loop started", zap.Duration("interval", l.interval))
	defer func() {
		l.setState(models.LoopStateCancelled)
		l.logger.Info("sync loop stopped")
	}()

	for ctx.Err() == nil {
		l.RunCycle(ctx)

		timer := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
	return nil
}

// RunCycle executes exactly one cycle behind the error boundary and returns its outcome.
func (l *SyncLoop) RunCycle(ctx context.Context) (outcome models.CycleOutcome) {
	id := uuid.NewString()
	startedAt := l.now()
	l.setState(models.LoopStateRunning)
	l.logger.Info("sync cycle started", zap.String("cycle_id", id), zap.Time("started_at", startedAt))

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = appErrors.Wrap(fmt.Errorf("panic: %v", r), appErrors.ErrInternal.Code, "sync cycle panicked")
		}
		outcome.ID = id
		outcome.StartedAt = startedAt
		outcome.FinishedAt = l.now()
		switch {
		case err != nil:
			outcome.Status = models.CycleStatusFailed
			outcome.Error = err.Error()
			l.logFailure(ctx, id, err)
		case outcome.Status == "":
			outcome.Status = models.CycleStatusCompleted
		}
		l.logger.Info("sync cycle finished",
			zap.String("cycle_id", id),
			zap.String("status", string(outcome.Status)),
			zap.Int("attempted", outcome.Attempted),
			zap.Int("persisted", outcome.Persisted),
			zap.Duration("duration", outcome.Duration()),
		)
		l.metrics.ObserveCycle(outcome)
		l.record(outcome)
	}()

	outcome, err = l.processor.ProcessStudents(ctx)
	return outcome
}

func (l *SyncLoop) logFailure(ctx context.Context, id string, err error) {
	fields := []zap.Field{
		zap.String("cycle_id", id),
		zap.String("code", appErrors.Code(err)),
		zap.Error(err),
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		l.logger.Info("sync cycle interrupted by shutdown", fields...)
		return
	}
	l.logger.Error("sync cycle failed", fields...)
}

func (l *SyncLoop) setState(state models.LoopState) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
}

func (l *SyncLoop) record(outcome models.CycleOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cycles++
	l.last = &outcome
	if outcome.Status == models.CycleStatusCompleted {
		finished := outcome.FinishedAt
		l.lastSuccess = &finished
	}
	if l.state == models.LoopStateRunning {
		l.state = models.LoopStateIdle
	}
}

// State returns the current loop state.
func (l *SyncLoop) State() models.LoopState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Status returns a snapshot suitable for the ops status endpoint.
func (l *SyncLoop) Status() models.SyncStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	status := models.SyncStatus{State: l.state, CyclesRun: l.cycles}
	if l.last != nil {
		last := *l.last
		status.LastCycle = &last
	}
	if l.lastSuccess != nil {
		success := *l.lastSuccess
		status.LastSuccessAt = &success
	}
	return status
}
