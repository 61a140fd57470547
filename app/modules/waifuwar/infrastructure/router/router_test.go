package waifuwarrouter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Black-And-White-Club/waifu-bot/pkg/eventbus"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// testBus routes empty-topic publishes by their topic metadata, as the
// JetStream bus does.
type testBus struct {
	*gochannel.GoChannel
}

func (b testBus) Publish(topic string, msgs ...*message.Message) error {
	for _, m := range msgs {
		t := topic
		if t == "" {
			t = m.Metadata.Get(handlerwrapper.MetadataTopic)
		}
		if err := b.GoChannel.Publish(t, m); err != nil {
			return err
		}
	}
	return nil
}

func (testBus) CreateStream(context.Context, string) error { return nil }

var _ eventbus.EventBus = testBus{}

type stubHandlers struct {
	commands chan *waifuwarevents.CommandRequestedPayloadV1
}

func (s *stubHandlers) HandleCommand(ctx context.Context, p *waifuwarevents.CommandRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	s.commands <- p
	return []handlerwrapper.Result{{
		Topic: eventbus.FormatGuildScopedTopic(waifuwarevents.MessageSendRequestedV1, string(p.GuildID)),
		Payload: &waifuwarevents.MessageSendRequestedPayloadV1{
			GuildID:   p.GuildID,
			ChannelID: p.ChannelID,
			Embeds:    []waifuwarevents.Embed{{Title: "pong"}},
		},
	}}, nil
}

func (s *stubHandlers) HandleReaction(context.Context, *waifuwarevents.ReactionAddedPayloadV1) ([]handlerwrapper.Result, error) {
	return nil, nil
}

func (s *stubHandlers) HandleRoundCollapseRequested(context.Context, *waifuwarevents.RoundCollapseRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	return nil, nil
}

func TestWaifuWarRouter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wmLogger := watermill.NewSlogLogger(logger)
	bus := testBus{gochannel.NewGoChannel(gochannel.Config{}, wmLogger)}
	defer bus.Close()

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	require.NoError(t, err)

	handlers := &stubHandlers{commands: make(chan *waifuwarevents.CommandRequestedPayloadV1, 1)}
	r := NewWaifuWarRouter(logger, router, bus, bus, noop.NewTracerProvider().Tracer("test"), nil, nil)
	require.NoError(t, r.Configure(ctx, handlers))

	out, err := bus.Subscribe(ctx, "discord.waifuwar.message.send.v1.guild-1")
	require.NoError(t, err)

	go func() { _ = router.Run(ctx) }()
	select {
	case <-router.Running():
	case <-ctx.Done():
		t.Fatal("router did not start")
	}
	defer r.Close()

	body, err := json.Marshal(waifuwarevents.CommandRequestedPayloadV1{GuildID: "guild-1", ChannelID: "chan-1", UserID: "alice", Command: "ping"})
	require.NoError(t, err)
	in := message.NewMessage(watermill.NewUUID(), body)
	in.Metadata.Set(handlerwrapper.MetadataCorrelationID, "corr-1")
	require.NoError(t, bus.Publish(waifuwarevents.CommandRequestedV1, in))

	select {
	case got := <-handlers.commands:
		assert.Equal(t, "ping", got.Command)
	case <-ctx.Done():
		t.Fatal("command was not handled")
	}

	select {
	case msg := <-out:
		msg.Ack()
		assert.Equal(t, "corr-1", msg.Metadata.Get(handlerwrapper.MetadataCorrelationID))
		var payload waifuwarevents.MessageSendRequestedPayloadV1
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		require.Len(t, payload.Embeds, 1)
		assert.Equal(t, "pong", payload.Embeds[0].Title)
	case <-ctx.Done():
		t.Fatal("reply was not published")
	}
}
