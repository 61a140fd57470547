package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/config"
	"github.com/Black-And-White-Club/waifu-bot/internal/opsserver"
	"github.com/Black-And-White-Club/waifu-bot/pkg/eventbus"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	obs := observability.Init(observability.Config{
		ServiceName: "waifu-bot",
		Environment: cfg.Observability.Environment,
		Version:     version,
		LogLevel:    cfg.Observability.LogLevel,
	})
	logger := obs.Logger
	logger.InfoContext(ctx, "Starting waifu-bot")

	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	db := bun.NewDB(pgdb, pgdialect.New())
	defer db.Close()

	eventBus, err := eventbus.NewEventBus(ctx, cfg.NATS.URL, logger, "waifu-bot", obs.Tracer)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create event bus", attr.Error(err))
		os.Exit(1)
	}
	defer eventBus.Close()

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, watermill.NewSlogLogger(logger))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create router", attr.Error(err))
		os.Exit(1)
	}
	router.AddMiddleware(
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			Multiplier:      2,
			Logger:          watermill.NewSlogLogger(logger),
		}.Middleware,
		middleware.Recoverer,
	)

	module, err := waifuwar.NewWaifuWarModule(ctx, cfg, obs, eventBus, router, ctx, db)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create waifu war module", attr.Error(err))
		os.Exit(1)
	}

	checks := map[string]opsserver.Check{
		"postgres": db.PingContext,
		"nats": func(context.Context) error {
			if !eventBus.Healthy() {
				return errors.New("nats connection is not healthy")
			}
			return nil
		},
		"waifuwar": module.HealthCheck,
	}
	opsOpts := []opsserver.Option{
		opsserver.WithReadiness(checks),
		opsserver.WithBrackets(module.WaifuWarService),
	}

	var wg sync.WaitGroup
	if cfg.Observability.MetricsAddress == "" {
		opsOpts = append(opsOpts, opsserver.WithMetrics(obs.Registry))
	} else {
		metricsServer := opsserver.New(cfg.Observability.MetricsAddress, logger, opsserver.WithMetrics(obs.Registry))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Run(ctx); err != nil {
				logger.ErrorContext(ctx, "Metrics server stopped", attr.Error(err))
			}
		}()
	}
	opsServer := opsserver.New(cfg.Observability.OpsAddress, logger, opsOpts...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := opsServer.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "Ops server stopped", attr.Error(err))
		}
	}()

	wg.Add(1)
	go module.Run(ctx, &wg)

	if err := router.Run(ctx); err != nil {
		logger.ErrorContext(ctx, "Router stopped", attr.Error(err))
		cancel()
	}

	<-ctx.Done()
	logger.Info("Shutting down waifu-bot")

	if err := module.Close(); err != nil {
		logger.Error("Error during shutdown", attr.Error(err))
	}
	wg.Wait()
	logger.Info("waifu-bot stopped")
}
