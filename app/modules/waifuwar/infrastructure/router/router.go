package waifuwarrouter

import (
	"context"
	"log/slog"

	waifuwarhandlers "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/handlers"
	"github.com/Black-And-White-Club/waifu-bot/pkg/eventbus"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// WaifuWarRouter handles Watermill handler registration for waifu war events.
type WaifuWarRouter struct {
	logger         *slog.Logger
	router         *message.Router
	subscriber     eventbus.EventBus
	publisher      eventbus.EventBus
	tracer         trace.Tracer
	metrics        handlerwrapper.ReturningMetrics
	metricsBuilder *metrics.PrometheusMetricsBuilder
}

// NewWaifuWarRouter creates a new WaifuWarRouter. Router metrics are added to
// registry when it is not nil; handlerMetrics may also be nil.
func NewWaifuWarRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber eventbus.EventBus,
	publisher eventbus.EventBus,
	tracer trace.Tracer,
	handlerMetrics handlerwrapper.ReturningMetrics,
	registry *prometheus.Registry,
) *WaifuWarRouter {
	var builder *metrics.PrometheusMetricsBuilder
	if registry != nil {
		b := metrics.NewPrometheusMetricsBuilder(registry, "waifu_bot", "watermill")
		builder = &b
	}
	return &WaifuWarRouter{
		logger:         logger,
		router:         router,
		subscriber:     subscriber,
		publisher:      publisher,
		tracer:         tracer,
		metrics:        handlerMetrics,
		metricsBuilder: builder,
	}
}

// Configure sets up the router with handlers.
func (r *WaifuWarRouter) Configure(_ context.Context, handlers waifuwarhandlers.Handlers) error {
	if r.metricsBuilder != nil {
		r.logger.Info("Adding Prometheus router metrics middleware for waifu war")
		r.metricsBuilder.AddPrometheusRouterMetrics(r.router)
	}
	r.registerHandlers(handlers)
	return nil
}

// handlerDeps bundles dependencies for handler registration.
type handlerDeps struct {
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// registerHandlers wires NATS topics to handler methods.
func (r *WaifuWarRouter) registerHandlers(handlers waifuwarhandlers.Handlers) {
	deps := handlerDeps{
		router:     r.router,
		subscriber: r.subscriber,
		publisher:  r.publisher,
		logger:     r.logger,
		tracer:     r.tracer,
		metrics:    r.metrics,
	}

	r.logger.Info("Registering waifu war module handlers",
		slog.String("command_subject", waifuwarevents.CommandRequestedV1),
		slog.String("reaction_subject", waifuwarevents.ReactionAddedV1),
		slog.String("collapse_subject", waifuwarevents.RoundCollapseRequestedV1),
	)

	registerHandler(deps, waifuwarevents.CommandRequestedV1, handlers.HandleCommand)
	registerHandler(deps, waifuwarevents.ReactionAddedV1, handlers.HandleReaction)
	registerHandler(deps, waifuwarevents.RoundCollapseRequestedV1, handlers.HandleRoundCollapseRequested)

	r.logger.Info("Waifu war module handlers registered successfully")
}

// registerHandler is a generic function for type-safe Watermill handler registration.
func registerHandler[T any](
	deps handlerDeps,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "waifuwar." + topic

	deps.router.AddHandler(
		handlerName,
		topic,
		deps.subscriber,
		"",
		deps.publisher,
		handlerwrapper.WrapTransformingTyped(
			handlerName,
			deps.logger,
			deps.tracer,
			deps.metrics,
			handler,
		),
	)
}

// Close shuts down the router.
func (r *WaifuWarRouter) Close() error {
	return r.router.Close()
}
