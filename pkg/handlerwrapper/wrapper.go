// Package handlerwrapper adapts typed, transformation-style handlers to
// watermill handler funcs. A handler receives a decoded payload and returns the
// messages it wants published; the wrapper owns decoding, encoding, tracing,
// correlation and logging.
package handlerwrapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

// CtxKeyReplyTo carries the reply_to metadata of the inbound message, if any.
const CtxKeyReplyTo ctxKey = "reply_to"

const (
	// MetadataTopic is the metadata key the event bus routes on when a message
	// is published without an explicit topic.
	MetadataTopic = "topic"
	// MetadataCorrelationID ties every outbound message to the inbound one.
	MetadataCorrelationID = "correlation_id"
	// MetadataReplyTo names the topic a requester listens on for the answer.
	MetadataReplyTo = "reply_to"
	// MetadataHandlerName records which handler produced a message.
	MetadataHandlerName = "handler_name"
)

// ErrNilPayload is returned by handlers that receive a nil payload.
var ErrNilPayload = errors.New("payload cannot be nil")

// Result is one message a handler wants published.
type Result struct {
	Topic    string
	Payload  any
	Metadata map[string]string
}

// ReturningMetrics is recorded per handler invocation. A nil value disables it.
type ReturningMetrics interface {
	RecordHandlerAttempt(ctx context.Context, handlerName string)
	RecordHandlerSuccess(ctx context.Context, handlerName string)
	RecordHandlerFailure(ctx context.Context, handlerName string)
	RecordHandlerDuration(ctx context.Context, handlerName string, duration time.Duration)
}

// WrapTransformingTyped decodes the inbound JSON payload into T, calls handler
// and encodes each returned Result into an outbound message.
//
// A payload that cannot be decoded is logged and acknowledged; redelivering it
// would fail the same way. Errors returned by handler nack the message.
func WrapTransformingTyped[T any](
	handlerName string,
	logger *slog.Logger,
	tracer trace.Tracer,
	metrics ReturningMetrics,
	handler func(context.Context, *T) ([]Result, error),
) message.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(msg *message.Message) ([]*message.Message, error) {
		ctx := msg.Context()

		correlationID := msg.Metadata.Get(MetadataCorrelationID)
		if correlationID == "" {
			correlationID = msg.UUID
		}
		ctx = attr.WithCorrelationID(ctx, correlationID)
		if rt := msg.Metadata.Get(MetadataReplyTo); rt != "" {
			ctx = context.WithValue(ctx, CtxKeyReplyTo, rt)
		}

		var span trace.Span
		if tracer != nil {
			ctx, span = tracer.Start(ctx, handlerName, trace.WithAttributes(
				attribute.String("message.uuid", msg.UUID),
				attribute.String("correlation_id", correlationID),
			))
		} else {
			span = trace.SpanFromContext(ctx)
		}
		defer span.End()

		if metrics != nil {
			metrics.RecordHandlerAttempt(ctx, handlerName)
			start := time.Now()
			defer func() { metrics.RecordHandlerDuration(ctx, handlerName, time.Since(start)) }()
		}

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			logger.ErrorContext(ctx, "Failed to decode payload",
				attr.ExtractCorrelationID(ctx),
				attr.String("handler", handlerName),
				attr.Error(err),
			)
			span.RecordError(err)
			if metrics != nil {
				metrics.RecordHandlerFailure(ctx, handlerName)
			}
			return nil, nil
		}

		results, err := handler(ctx, payload)
		if err != nil {
			logger.ErrorContext(ctx, "Handler failed",
				attr.ExtractCorrelationID(ctx),
				attr.String("handler", handlerName),
				attr.Error(err),
			)
			span.RecordError(err)
			if metrics != nil {
				metrics.RecordHandlerFailure(ctx, handlerName)
			}
			return nil, err
		}

		out := make([]*message.Message, 0, len(results))
		for _, r := range results {
			m, err := encodeResult(r, correlationID, handlerName)
			if err != nil {
				span.RecordError(err)
				if metrics != nil {
					metrics.RecordHandlerFailure(ctx, handlerName)
				}
				return nil, err
			}
			out = append(out, m)
		}

		if metrics != nil {
			metrics.RecordHandlerSuccess(ctx, handlerName)
		}
		return out, nil
	}
}

func encodeResult(r Result, correlationID, handlerName string) (*message.Message, error) {
	if r.Topic == "" {
		return nil, fmt.Errorf("result for handler %s has no topic", handlerName)
	}
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for %s: %w", r.Topic, err)
	}

	m := message.NewMessage(uuid.NewString(), body)
	m.Metadata.Set(MetadataTopic, r.Topic)
	m.Metadata.Set(MetadataCorrelationID, correlationID)
	m.Metadata.Set(MetadataHandlerName, handlerName)
	for k, v := range r.Metadata {
		m.Metadata.Set(k, v)
	}
	return m, nil
}
