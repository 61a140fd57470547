package waifuwar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	waifuwarhandlers "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/handlers"
	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	waifuwarrouter "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/router"
	collapsequeue "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/scheduler"
	"github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/sessions"
	"github.com/Black-And-White-Club/waifu-bot/config"
	"github.com/Black-And-White-Club/waifu-bot/pkg/eventbus"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	waifuwarmetrics "github.com/Black-And-White-Club/waifu-bot/pkg/observability/metrics/waifuwar"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

// Module represents the waifu war module.
type Module struct {
	WaifuWarService waifuwarservice.Service
	WaifuWarRouter  *waifuwarrouter.WaifuWarRouter
	cfg             config.WaifuWarConfig
	logger          *slog.Logger
	sessions        waifuwarservice.SessionStore
	redisSessions   *sessions.RedisStore
	scheduler       *collapsequeue.Service
	cancelFunc      context.CancelFunc
}

// NewWaifuWarModule creates and initializes a new waifu war module.
func NewWaifuWarModule(
	ctx context.Context,
	cfg *config.Config,
	obs *observability.Observability,
	eventBus eventbus.EventBus,
	router *message.Router,
	routerCtx context.Context,
	db *bun.DB,
) (*Module, error) {
	logger := obs.Logger
	tracer := obs.Tracer

	logger.InfoContext(ctx, "waifuwar.NewWaifuWarModule initializing")

	// 1. Initialize Repository
	repo := waifuwardb.NewRepository(db)

	// 2. Initialize Metrics
	var (
		metrics        waifuwarmetrics.WaifuWarMetrics = waifuwarmetrics.NewNoop()
		handlerMetrics handlerwrapper.ReturningMetrics
	)
	if obs.Registry != nil {
		prom, err := waifuwarmetrics.NewPrometheus(obs.Registry, "waifu_bot")
		if err != nil {
			return nil, fmt.Errorf("failed to register waifu war metrics: %w", err)
		}
		metrics = prom
		handlerMetrics = prom
	}

	m := &Module{cfg: cfg.WaifuWar, logger: logger}

	// 3. Initialize onboarding sessions
	switch cfg.WaifuWar.OnboardingStore {
	case config.OnboardingStoreRedis:
		store, err := sessions.NewRedisStore(ctx, cfg.Redis.URL, cfg.WaifuWar.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis session store: %w", err)
		}
		m.sessions = store
		m.redisSessions = store
	default:
		store := sessions.NewMemoryStore()
		if cfg.WaifuWar.SessionSnapshot != "" {
			restored, err := sessions.LoadFile(ctx, store, cfg.WaifuWar.SessionSnapshot)
			if err != nil {
				logger.WarnContext(ctx, "Failed to restore guide sessions", attr.Error(err))
			} else {
				logger.InfoContext(ctx, "Restored guide sessions", attr.Int("sessions", restored))
			}
		}
		m.sessions = store
	}

	// 4. Initialize Service
	opts := []waifuwarservice.Option{}
	if cfg.WaifuWar.SchedulerEnabled {
		scheduler, err := collapsequeue.NewService(ctx, cfg.Postgres.DSN, logger, metrics, eventBus)
		if err != nil {
			m.closeSessions()
			return nil, fmt.Errorf("failed to create collapse scheduler: %w", err)
		}
		m.scheduler = scheduler
		opts = append(opts, waifuwarservice.WithScheduler(scheduler))
	}
	service := waifuwarservice.NewWaifuWarService(repo, m.sessions, logger, metrics, tracer, db, opts...)
	m.WaifuWarService = service

	// 5. Initialize Handlers
	handlers := waifuwarhandlers.NewWaifuWarHandlers(service, logger, tracer,
		waifuwarhandlers.WithRateLimiter(waifuwarhandlers.NewUserRateLimiter(cfg.WaifuWar.CommandsPerMinute, cfg.WaifuWar.CommandBurst)),
		waifuwarhandlers.WithCommandPrefix(cfg.WaifuWar.CommandPrefix),
	)

	// 6. Initialize Router
	m.WaifuWarRouter = waifuwarrouter.NewWaifuWarRouter(
		logger,
		router,
		eventBus,
		eventBus,
		tracer,
		handlerMetrics,
		obs.Registry,
	)

	// 7. Configure the router with handlers
	if err := m.WaifuWarRouter.Configure(routerCtx, handlers); err != nil {
		m.closeSessions()
		return nil, fmt.Errorf("failed to configure waifu war router: %w", err)
	}

	return m, nil
}

// Run starts the collapse scheduler, when enabled, and blocks until ctx is done.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.InfoContext(ctx, "Starting waifu war module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if m.scheduler != nil {
		if err := m.scheduler.Start(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Collapse scheduler did not start; scheduled collapses will wait", attr.Error(err))
		}
	}

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Waifu war module goroutine stopped")
}

// HealthCheck reports whether the module's own backends are reachable.
func (m *Module) HealthCheck(ctx context.Context) error {
	var errs []error
	if m.scheduler != nil {
		errs = append(errs, m.scheduler.HealthCheck(ctx))
	}
	if m.redisSessions != nil {
		errs = append(errs, m.redisSessions.Ping(ctx))
	}
	return errors.Join(errs...)
}

// Close shuts down the waifu war module.
func (m *Module) Close() error {
	m.logger.Info("Stopping waifu war module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	var errs []error
	if m.scheduler != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := m.scheduler.Stop(stopCtx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}

	if m.cfg.SessionSnapshot != "" && m.redisSessions == nil {
		if err := sessions.SaveFile(context.Background(), m.sessions, m.cfg.SessionSnapshot); err != nil {
			m.logger.Error("Failed to save guide sessions", attr.Error(err))
			errs = append(errs, err)
		}
	}
	m.closeSessions()

	if m.WaifuWarRouter != nil {
		if err := m.WaifuWarRouter.Close(); err != nil {
			m.logger.Error("Error closing WaifuWarRouter from module", attr.Error(err))
			errs = append(errs, fmt.Errorf("error closing WaifuWarRouter: %w", err))
		}
	}

	m.logger.Info("Waifu war module stopped")
	return errors.Join(errs...)
}

func (m *Module) closeSessions() {
	if m.redisSessions != nil {
		if err := m.redisSessions.Close(); err != nil {
			m.logger.Warn("Failed to close redis session store", attr.Error(err))
		}
	}
}
