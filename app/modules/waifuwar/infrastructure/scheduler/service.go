// Package collapsequeue schedules round collapses on River.
package collapsequeue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	waifuwarmetrics "github.com/Black-And-White-Club/waifu-bot/pkg/observability/metrics/waifuwar"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// minLead is the shortest delay accepted for a scheduled collapse.
const minLead = 5 * time.Second

// Service handles collapse scheduling using River
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics waifuwarmetrics.WaifuWarMetrics
	now     func() time.Time
}

// NewService creates a River client on its own pgx pool (River requires pgx,
// not database/sql) and registers the collapse worker.
func NewService(ctx context.Context, dsn string, logger *slog.Logger, metrics waifuwarmetrics.WaifuWarMetrics, publisher message.Publisher) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_collapse_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", "river")

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	svc, err := NewServiceWithPool(pool, ctxLogger, metrics, publisher)
	if err != nil {
		pool.Close()
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, err
	}

	metrics.RecordOperationSuccess(ctx, "initialize_service", "river")
	metrics.RecordOperationDuration(ctx, "initialize_service", "river", time.Since(start))
	ctxLogger.InfoContext(ctx, "Collapse queue service initialized")
	return svc, nil
}

// NewServiceWithPool builds the service on an existing pool. The caller keeps
// ownership of the pool only if this returns an error.
func NewServiceWithPool(pool *pgxpool.Pool, logger *slog.Logger, metrics waifuwarmetrics.WaifuWarMetrics, publisher message.Publisher) (*Service, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewCollapseWorker(logger, publisher))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueName: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	return &Service{client: client, pool: pool, logger: logger, metrics: metrics, now: time.Now}, nil
}

// Migrate applies River's own schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to run river migrations: %w", err)
	}
	return nil
}

// Start starts working due jobs.
func (s *Service) Start(ctx context.Context) error {
	s.metrics.RecordOperationAttempt(ctx, "start_service", "river")
	if err := s.client.Start(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_service", "river")
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.metrics.RecordOperationSuccess(ctx, "start_service", "river")
	s.logger.InfoContext(ctx, "Collapse queue service started")
	return nil
}

// Stop waits for running jobs and closes the pool.
func (s *Service) Stop(ctx context.Context) error {
	s.metrics.RecordOperationAttempt(ctx, "stop_service", "river")
	defer s.pool.Close()
	if err := s.client.Stop(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "stop_service", "river")
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.metrics.RecordOperationSuccess(ctx, "stop_service", "river")
	s.logger.InfoContext(ctx, "Collapse queue service stopped")
	return nil
}

// ScheduleCollapse inserts a collapse job due at at.
func (s *Service) ScheduleCollapse(ctx context.Context, payload waifuwarevents.RoundCollapseRequestedPayloadV1, at time.Time) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "schedule_collapse", "river")

	ctxLogger := s.logger.With(
		attr.GuildID(string(payload.GuildID)),
		attr.BracketID(payload.BracketID),
		attr.Time("collapse_time", at),
	)

	now := s.now()
	if at.Before(now.Add(minLead)) {
		s.metrics.RecordOperationFailure(ctx, "schedule_collapse", "river")
		return fmt.Errorf("collapse time must be at least %s in the future", minLead)
	}

	res, err := s.client.Insert(ctx, CollapseJob{Request: payload}, &river.InsertOpts{ScheduledAt: at})
	if err != nil {
		ctxLogger.ErrorContext(ctx, "Failed to schedule collapse job", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "schedule_collapse", "river")
		return fmt.Errorf("failed to schedule collapse job: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "schedule_collapse", "river")
	s.metrics.RecordOperationDuration(ctx, "schedule_collapse", "river", time.Since(start))
	ctxLogger.InfoContext(ctx, "Collapse job scheduled",
		attr.Duration("delay", at.Sub(now)),
		attr.Int64("job_id", res.Job.ID),
		attr.Bool("duplicate", res.UniqueSkippedAsDuplicate),
	)
	return nil
}

// HealthCheck verifies the queue's database is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("queue service health check failed: %w", err)
	}
	return nil
}
