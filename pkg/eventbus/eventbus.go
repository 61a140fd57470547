// Package eventbus provides the NATS JetStream event bus and guild-scoped topic helpers.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EventBus is the publish/subscribe surface used by the watermill router.
type EventBus interface {
	message.Publisher
	message.Subscriber
	// CreateStream provisions the JetStream stream backing streamName.>.
	CreateStream(ctx context.Context, streamName string) error
}

// JetStreamEventBus implements EventBus on NATS JetStream through watermill-nats.
type JetStreamEventBus struct {
	logger     *slog.Logger
	tracer     trace.Tracer
	appType    string
	conn       *nc.Conn
	js         jetstream.JetStream
	publisher  *wmnats.Publisher
	subscriber *wmnats.Subscriber

	mu      sync.Mutex
	streams map[string]struct{}
}

var _ EventBus = (*JetStreamEventBus)(nil)

// NewEventBus connects to NATS and builds a JetStream backed publisher and
// subscriber. appType names the durable consumer group, so every replica of the
// same service shares one delivery of each message.
func NewEventBus(ctx context.Context, natsURL string, logger *slog.Logger, appType string, tracer trace.Tracer) (*JetStreamEventBus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wmLogger := watermill.NewSlogLogger(logger)

	options := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(1 * time.Second),
		nc.ErrorHandler(func(_ *nc.Conn, s *nc.Subscription, err error) {
			if s != nil {
				logger.Error("Error in subscription", "subject", s.Subject, "queue", s.Queue, "error", err)
			} else {
				logger.Error("Error in connection", "error", err)
			}
		}),
	}

	conn, err := nc.Connect(natsURL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	marshaler := &wmnats.NATSMarshaler{}

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:         natsURL,
			NatsOptions: options,
			Marshaler:   marshaler,
			JetStream: wmnats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: false,
				TrackMsgId:    true,
			},
		},
		wmLogger,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create Watermill NATS publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(
		wmnats.SubscriberConfig{
			URL:              natsURL,
			QueueGroupPrefix: appType,
			SubscribersCount: 1,
			AckWaitTimeout:   30 * time.Second,
			CloseTimeout:     30 * time.Second,
			NatsOptions:      options,
			Unmarshaler:      marshaler,
			JetStream: wmnats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: false,
				DurablePrefix: appType,
			},
		},
		wmLogger,
	)
	if err != nil {
		_ = publisher.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to create Watermill NATS subscriber: %w", err)
	}

	logger.InfoContext(ctx, "Event bus connected", "nats_url", natsURL, "app_type", appType)

	return &JetStreamEventBus{
		logger:     logger,
		tracer:     tracer,
		appType:    appType,
		conn:       conn,
		js:         js,
		publisher:  publisher,
		subscriber: subscriber,
		streams:    make(map[string]struct{}),
	}, nil
}

// Publish publishes messages to topic. An empty topic routes each message by
// its "topic" metadata, which is how handler results are published by the router.
func (b *JetStreamEventBus) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		target := topic
		if target == "" {
			target = msg.Metadata.Get(handlerwrapper.MetadataTopic)
		}
		if target == "" {
			return fmt.Errorf("message %s has no topic", msg.UUID)
		}

		ctx := msg.Context()
		if b.tracer != nil {
			var span trace.Span
			ctx, span = b.tracer.Start(ctx, "eventbus.Publish", trace.WithAttributes(
				attribute.String("topic", target),
				attribute.String("message.uuid", msg.UUID),
			))
			msg.SetContext(ctx)
			span.End()
		}

		if err := b.CreateStream(ctx, StreamName(target)); err != nil {
			return err
		}
		if err := b.publisher.Publish(target, msg); err != nil {
			return fmt.Errorf("failed to publish message to %s: %w", target, err)
		}
	}
	return nil
}

// Subscribe ensures the stream for topic exists and subscribes to it.
func (b *JetStreamEventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if err := b.CreateStream(ctx, StreamName(topic)); err != nil {
		return nil, err
	}
	messages, err := b.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return messages, nil
}

// CreateStream creates or updates the stream capturing streamName.> subjects.
// Streams already provisioned by this process are skipped.
func (b *JetStreamEventBus) CreateStream(ctx context.Context, streamName string) error {
	if !isValidStreamName(streamName) {
		return fmt.Errorf("invalid stream name: %q", streamName)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[streamName]; ok {
		return nil
	}

	_, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{streamName + ".>"},
		Storage:  jetstream.FileStorage,
		MaxAge:   72 * time.Hour,
	})
	if err != nil && !errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create stream %s: %w", streamName, err)
	}

	b.streams[streamName] = struct{}{}
	b.logger.DebugContext(ctx, "Stream ready", "stream", streamName)
	return nil
}

// Close closes the publisher, the subscriber and the NATS connection.
func (b *JetStreamEventBus) Close() error {
	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close publisher: %w", err))
	}
	if err := b.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close subscriber: %w", err))
	}
	b.conn.Close()
	return errors.Join(errs...)
}

// Healthy reports whether the underlying NATS connection is up.
func (b *JetStreamEventBus) Healthy() bool {
	return b.conn != nil && b.conn.IsConnected()
}

// StreamName returns the stream a topic belongs to: its first dot-separated segment.
func StreamName(topic string) string {
	name, _, _ := strings.Cut(topic, ".")
	return name
}

// isValidStreamName checks a stream name against NATS rules: alphanumerics,
// hyphens and underscores, not starting or ending with a hyphen.
func isValidStreamName(name string) bool {
	for _, r := range name {
		if !isValidRune(r) {
			return false
		}
	}
	return name != "" && name[0] != '-' && name[len(name)-1] != '-'
}

func isValidRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}
