package waifuwarservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	waifuwarmetrics "github.com/Black-And-White-Club/waifu-bot/pkg/observability/metrics/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "WaifuWarService"

// WaifuWarService implements the Service interface.
type WaifuWarService struct {
	repo      waifuwardb.Repository
	logger    *slog.Logger
	metrics   waifuwarmetrics.WaifuWarMetrics
	tracer    trace.Tracer
	db        *bun.DB
	sessions  SessionStore
	scheduler CollapseScheduler
	rng       Randomizer
	now       func() time.Time
}

var _ Service = (*WaifuWarService)(nil)

// Option customizes a WaifuWarService.
type Option func(*WaifuWarService)

// WithRandomizer replaces the shuffle and tie-break source.
func WithRandomizer(rng Randomizer) Option {
	return func(s *WaifuWarService) { s.rng = rng }
}

// WithScheduler enables ScheduleCollapse.
func WithScheduler(scheduler CollapseScheduler) Option {
	return func(s *WaifuWarService) { s.scheduler = scheduler }
}

// WithClock replaces time.Now, used to resolve relative schedule times.
func WithClock(now func() time.Time) Option {
	return func(s *WaifuWarService) { s.now = now }
}

// NewWaifuWarService creates a new WaifuWarService.
func NewWaifuWarService(
	repo waifuwardb.Repository,
	sessions SessionStore,
	logger *slog.Logger,
	metrics waifuwarmetrics.WaifuWarMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	opts ...Option,
) *WaifuWarService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &WaifuWarService{
		repo:     repo,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		db:       db,
		sessions: sessions,
		rng:      mathRandomizer{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mathRandomizer draws from the auto-seeded math/rand/v2 source.
type mathRandomizer struct{}

func (mathRandomizer) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }
func (mathRandomizer) Coin() bool                         { return rand.IntN(2) == 1 }

// execute runs fn in a transaction under telemetry and unwraps the result, so
// domain failures come back as their typed error.
func execute[S any](
	s *WaifuWarService,
	ctx context.Context,
	operationName string,
	identifier string,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, error], error),
) (S, error) {
	result, err := withTelemetry(s, ctx, operationName, identifier, func(ctx context.Context) (results.OperationResult[S, error], error) {
		return runInTx[S, error](s, ctx, fn)
	})
	if err != nil {
		var zero S
		return zero, err
	}
	return results.Unwrap(result)
}

// observe runs fn under telemetry without a transaction.
func observe[S any](
	s *WaifuWarService,
	ctx context.Context,
	operationName string,
	identifier string,
	fn func(ctx context.Context) (results.OperationResult[S, error], error),
) (S, error) {
	result, err := withTelemetry(s, ctx, operationName, identifier, fn)
	if err != nil {
		var zero S
		return zero, err
	}
	return results.Unwrap(result)
}

// success and failure keep the logic functions readable.
func success[S any](v S) (results.OperationResult[S, error], error) {
	return results.SuccessResult[S, error](v), nil
}

func failure[S any](err error) (results.OperationResult[S, error], error) {
	return results.FailureResult[S, error](err), nil
}

func fault[S any](format string, err error) (results.OperationResult[S, error], error) {
	return results.OperationResult[S, error]{}, fmt.Errorf(format, err)
}

// propagate routes err to the failure side when it is a domain error and
// returns it as a fault otherwise.
func propagate[S any](err error) (results.OperationResult[S, error], error) {
	if IsDomainError(err) {
		return failure[S](err)
	}
	return results.OperationResult[S, error]{}, err
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *WaifuWarService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	if s.metrics != nil {
		s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)
	}

	startTime := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
		}
	}()

	s.logger.DebugContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			}
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		}
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.InfoContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if result.IsSuccess() {
		s.logger.DebugContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	}

	return result, nil
}

// errRollback aborts a transaction whose operation returned a failure result,
// so a domain failure never leaves partial writes behind.
var errRollback = errors.New("rollback on failure result")

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *WaifuWarService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		if txErr == nil && result.IsFailure() {
			return errRollback
		}
		return txErr
	})
	if errors.Is(err, errRollback) {
		return result, nil
	}

	return result, err
}
