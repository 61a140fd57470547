// Package waifuwarmetrics defines the metrics recorded by the waifu war module.
package waifuwarmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WaifuWarMetrics is the metrics surface used by the service layer.
type WaifuWarMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)

	RecordVoteCast(ctx context.Context, guildID string)
	RecordVoteRejected(ctx context.Context, guildID, reason string)
	RecordVoteRetracted(ctx context.Context, guildID string)
	RecordRoundCollapsed(ctx context.Context, guildID string, divisions int)
	RecordTieBreak(ctx context.Context, guildID string)
}

// PrometheusMetrics records to a prometheus registerer.
type PrometheusMetrics struct {
	attempts   *prometheus.CounterVec
	successes  *prometheus.CounterVec
	failures   *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	votes      *prometheus.CounterVec
	rejections *prometheus.CounterVec
	retracts   *prometheus.CounterVec
	collapses  *prometheus.CounterVec
	divisions  *prometheus.CounterVec
	ties       *prometheus.CounterVec

	handlerAttempts  *prometheus.CounterVec
	handlerSuccesses *prometheus.CounterVec
	handlerFailures  *prometheus.CounterVec
	handlerDurations *prometheus.HistogramVec
}

// NewPrometheus registers the waifu war collectors on reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*PrometheusMetrics, error) {
	if namespace == "" {
		namespace = "waifu_bot"
	}
	const subsystem = "waifuwar"

	m := &PrometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_attempts_total", Help: "Service operations started.",
		}, []string{"operation", "service"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_success_total", Help: "Service operations completed without infrastructure error.",
		}, []string{"operation", "service"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_failures_total", Help: "Service operations that returned an infrastructure error or panicked.",
		}, []string{"operation", "service"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_duration_seconds", Help: "Service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "votes_cast_total", Help: "Ballots recorded.",
		}, []string{"guild_id"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "votes_rejected_total", Help: "Ballots rejected, by reason.",
		}, []string{"guild_id", "reason"}),
		retracts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "votes_retracted_total", Help: "Ballots retracted.",
		}, []string{"guild_id"}),
		collapses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "rounds_collapsed_total", Help: "Rounds collapsed into the next round or a champion.",
		}, []string{"guild_id"}),
		divisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "divisions_resolved_total", Help: "Divisions resolved by round collapses.",
		}, []string{"guild_id"}),
		ties: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "tie_breaks_total", Help: "Divisions decided by the random tie-break.",
		}, []string{"guild_id"}),
		handlerAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "handler_attempts_total", Help: "Messages received per handler.",
		}, []string{"handler"}),
		handlerSuccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "handler_success_total", Help: "Messages acked per handler.",
		}, []string{"handler"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "handler_failures_total", Help: "Messages nacked or dropped per handler.",
		}, []string{"handler"}),
		handlerDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "handler_duration_seconds", Help: "Handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler"}),
	}

	for _, c := range []prometheus.Collector{
		m.attempts, m.successes, m.failures, m.durations,
		m.votes, m.rejections, m.retracts, m.collapses, m.divisions, m.ties,
		m.handlerAttempts, m.handlerSuccesses, m.handlerFailures, m.handlerDurations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.durations.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordVoteCast(_ context.Context, guildID string) {
	m.votes.WithLabelValues(guildID).Inc()
}

func (m *PrometheusMetrics) RecordVoteRejected(_ context.Context, guildID, reason string) {
	m.rejections.WithLabelValues(guildID, reason).Inc()
}

func (m *PrometheusMetrics) RecordVoteRetracted(_ context.Context, guildID string) {
	m.retracts.WithLabelValues(guildID).Inc()
}

func (m *PrometheusMetrics) RecordRoundCollapsed(_ context.Context, guildID string, divisions int) {
	m.collapses.WithLabelValues(guildID).Inc()
	m.divisions.WithLabelValues(guildID).Add(float64(divisions))
}

func (m *PrometheusMetrics) RecordTieBreak(_ context.Context, guildID string) {
	m.ties.WithLabelValues(guildID).Inc()
}

// Handler metrics are recorded by the message handler wrapper.

func (m *PrometheusMetrics) RecordHandlerAttempt(_ context.Context, handlerName string) {
	m.handlerAttempts.WithLabelValues(handlerName).Inc()
}

func (m *PrometheusMetrics) RecordHandlerSuccess(_ context.Context, handlerName string) {
	m.handlerSuccesses.WithLabelValues(handlerName).Inc()
}

func (m *PrometheusMetrics) RecordHandlerFailure(_ context.Context, handlerName string) {
	m.handlerFailures.WithLabelValues(handlerName).Inc()
}

func (m *PrometheusMetrics) RecordHandlerDuration(_ context.Context, handlerName string, duration time.Duration) {
	m.handlerDurations.WithLabelValues(handlerName).Observe(duration.Seconds())
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

// NewNoop returns metrics that record nothing.
func NewNoop() WaifuWarMetrics { return NoOpMetrics{} }

func (NoOpMetrics) RecordOperationAttempt(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (NoOpMetrics) RecordVoteCast(context.Context, string)                                 {}
func (NoOpMetrics) RecordVoteRejected(context.Context, string, string)                     {}
func (NoOpMetrics) RecordVoteRetracted(context.Context, string)                            {}
func (NoOpMetrics) RecordRoundCollapsed(context.Context, string, int)                      {}
func (NoOpMetrics) RecordTieBreak(context.Context, string)                                 {}

var (
	_ WaifuWarMetrics = (*PrometheusMetrics)(nil)
	_ WaifuWarMetrics = NoOpMetrics{}
)
