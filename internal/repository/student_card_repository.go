package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-card-sync/internal/models"
	"github.com/noah-isme/sma-card-sync/pkg/config"
	appErrors "github.com/noah-isme/sma-card-sync/pkg/errors"
)

const (
	defaultProcedure = "sp_VerifyStudentCard"
	defaultDBTimeout = 30 * time.Second
)

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// StudentCardRepository applies student records to the card database through a
// stored procedure, one scoped connection per record.
type StudentCardRepository struct {
	db        *sqlx.DB
	driver    string
	procedure string
	timeout   time.Duration
	metrics   queryObserver
	logger    *zap.Logger
}

// NewStudentCardRepository constructs a StudentCardRepository. driver selects how the
// procedure is invoked (sqlserver or postgres); timeout bounds each call and defaults
// to 30 seconds.
func NewStudentCardRepository(db *sqlx.DB, driver, procedure string, timeout time.Duration, metrics queryObserver, logger *zap.Logger) *StudentCardRepository {
	if procedure == "" {
		procedure = defaultProcedure
	}
	if timeout <= 0 {
		timeout = defaultDBTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentCardRepository{db: db, driver: driver, procedure: procedure, timeout: timeout, metrics: metrics, logger: logger}
}

// Persist calls the verification procedure with @ID, @NAME and @BLOCKED. The digits of
// the matriculation are computed for the log line but are not bound. Each call gets its own
// deadline even when ctx ignores cancellation. Errors are logged here and returned as
// PERSISTENCE_ERROR.
func (r *StudentCardRepository) Persist(ctx context.Context, record models.StudentRecord) error {
	numeric := record.NumericMatriculation()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.execProcedure(ctx, record); err != nil {
		r.logger.Error("error while processing student",
			zap.String("student", record.DisplayName),
			zap.String("full_name", record.FullName),
			zap.String("matriculation", record.MatriculationRaw),
			zap.Bool("blocked", record.IsBlocked()),
			zap.Error(err),
		)
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code,
			fmt.Sprintf("failed to persist student %s %s", record.DisplayName, record.MatriculationRaw))
	}

	r.logger.Info("student processed successfully",
		zap.String("student", record.DisplayName),
		zap.String("matriculation", record.MatriculationRaw),
		zap.String("matriculation_digits", numeric),
		zap.Int("external_id", record.ExternalID),
		zap.Bool("blocked", record.IsBlocked()),
	)
	return nil
}

func (r *StudentCardRepository) execProcedure(ctx context.Context, record models.StudentRecord) error {
	query, args, err := r.procedureCall(record)
	if err != nil {
		return err
	}

	conn, err := r.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("open connection: %w", err)
	}
	defer conn.Close()

	start := time.Now()
	_, err = conn.ExecContext(ctx, query, args...)
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(r.procedure, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("exec %s: %w", r.procedure, err)
	}
	return nil
}

// procedureCall builds the driver specific invocation. go-mssqldb runs a bare
// procedure name as an RPC call with named parameters; lib/pq has no named
// parameters, so postgres gets a positional CALL.
func (r *StudentCardRepository) procedureCall(record models.StudentRecord) (string, []interface{}, error) {
	switch r.driver {
	case config.DriverSQLServer:
		return r.procedure, []interface{}{
			sql.Named("ID", record.ExternalID),
			sql.Named("NAME", record.FullName),
			sql.Named("BLOCKED", record.Blocked),
		}, nil
	case config.DriverPostgres:
		return fmt.Sprintf("CALL %s($1, $2, $3)", r.procedure), []interface{}{
			record.ExternalID,
			record.FullName,
			record.Blocked,
		}, nil
	default:
		return "", nil, fmt.Errorf("unsupported driver %q", r.driver)
	}
}
