package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-card-sync/internal/models"
	appErrors "github.com/noah-isme/sma-card-sync/pkg/errors"
)

type studentFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type studentParser interface {
	Parse(raw []byte) ([]models.StudentRecord, error)
}

type studentSink interface {
	Persist(ctx context.Context, record models.StudentRecord) error
}

type cycleLock interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// LockOptions configures the optional cross-replica cycle lock.
type LockOptions struct {
	Key string
	TTL time.Duration
}

// StudentSyncService runs the body of one sync cycle: fetch, parse, persist.
type StudentSyncService struct {
	fetcher studentFetcher
	parser  studentParser
	sink    studentSink
	metrics *MetricsService
	logger  *zap.Logger

	lock      cycleLock
	lockOpts  LockOptions
	lockToken string
}

// NewStudentSyncService constructs the cycle pipeline.
func NewStudentSyncService(fetcher studentFetcher, parser studentParser, sink studentSink, metrics *MetricsService, logger *zap.Logger) *StudentSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentSyncService{fetcher: fetcher, parser: parser, sink: sink, metrics: metrics, logger: logger}
}

// WithLock makes every cycle hold lock for its duration. A cycle that cannot take
// the lock is skipped.
func (s *StudentSyncService) WithLock(lock cycleLock, opts LockOptions) *StudentSyncService {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	s.lock = lock
	s.lockOpts = opts
	s.lockToken = uuid.NewString()
	return s
}

// ProcessStudents runs one cycle. Records are persisted in API order and the first
// persistence failure ends the cycle; later records wait for the next tick. Once the
// payload has been fetched, cancellation of ctx no longer interrupts the cycle.
func (s *StudentSyncService) ProcessStudents(ctx context.Context) (models.CycleOutcome, error) {
	var outcome models.CycleOutcome

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, s.lockOpts.Key, s.lockToken, s.lockOpts.TTL)
		if err != nil {
			return outcome, appErrors.Wrap(err, appErrors.ErrLock.Code, "failed to acquire sync lock")
		}
		if !acquired {
			s.logger.Info("sync lock held by another worker, skipping cycle", zap.String("key", s.lockOpts.Key))
			outcome.Status = models.CycleStatusSkipped
			return outcome, nil
		}
		defer s.releaseLock(ctx)
	}

	raw, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return outcome, err
	}

	persistCtx := context.WithoutCancel(ctx)

	records, parseErr := s.parser.Parse(raw)
	for _, record := range records {
		outcome.Attempted++
		if err := s.sink.Persist(persistCtx, record); err != nil {
			s.metrics.ObserveRecord(false)
			return outcome, err
		}
		s.metrics.ObserveRecord(true)
		outcome.Persisted++
	}
	if parseErr != nil {
		return outcome, parseErr
	}

	return outcome, nil
}

func (s *StudentSyncService) releaseLock(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.lock.Release(releaseCtx, s.lockOpts.Key, s.lockToken); err != nil {
		s.logger.Warn("failed to release sync lock", zap.String("key", s.lockOpts.Key), zap.Error(err))
	}
}
