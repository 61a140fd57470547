package waifuwarhandlerintegrationtests

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/config"
	"github.com/Black-And-White-Club/waifu-bot/integration_tests/testutils"
	"github.com/Black-And-White-Club/waifu-bot/pkg/eventbus"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	testEnv     *testutils.TestEnvironment
	testEnvOnce sync.Once
	testEnvErr  error
)

const guild = "guild-1"

type HandlerTestDeps struct {
	*testutils.TestEnvironment
	Module *waifuwar.Module
	Router *message.Router
}

func GetTestEnv(t *testing.T) *testutils.TestEnvironment {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}

	testEnvOnce.Do(func() {
		log.Println("Initializing waifu war handler test environment...")
		testEnv, testEnvErr = testutils.NewTestEnvironment(t)
	})
	if testEnvErr != nil {
		t.Fatalf("Waifu war handler test environment initialization failed: %v", testEnvErr)
	}
	return testEnv
}

// SetupTestWaifuWarHandler wires the module onto a fresh router and runs it
// until the test ends.
func SetupTestWaifuWarHandler(t *testing.T) HandlerTestDeps {
	t.Helper()
	env := GetTestEnv(t)

	resetCtx, resetCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer resetCancel()
	require.NoError(t, env.Reset(resetCtx))

	logger := slog.New(slog.NewTextHandler(testutils.TestWriter{T: t}, &slog.HandlerOptions{Level: slog.LevelInfo}))
	obs := &observability.Observability{
		Logger: logger,
		Tracer: noop.NewTracerProvider().Tracer("test_waifuwar_handlers"),
	}
	cfg := &config.Config{
		Postgres: env.Config.Postgres,
		NATS:     env.Config.NATS,
		WaifuWar: config.WaifuWarConfig{
			CommandPrefix:   "%ww",
			CommandBurst:    5,
			OnboardingStore: config.OnboardingStoreMemory,
		},
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 5 * time.Second}, watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(env.Ctx)
	module, err := waifuwar.NewWaifuWarModule(ctx, cfg, obs, env.EventBus, router, ctx, env.DB)
	require.NoError(t, err)

	go func() {
		if err := router.Run(ctx); err != nil {
			log.Printf("router stopped: %v", err)
		}
	}()
	select {
	case <-router.Running():
	case <-time.After(15 * time.Second):
		t.Fatal("router did not start")
	}

	t.Cleanup(func() {
		cancel()
		if err := module.Close(); err != nil {
			t.Logf("module close: %v", err)
		}
	})

	return HandlerTestDeps{TestEnvironment: env, Module: module, Router: router}
}

// PublishCommand sends a command as the gateway would.
func (d HandlerTestDeps) PublishCommand(t *testing.T, payload waifuwarevents.CommandRequestedPayloadV1) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(handlerwrapper.MetadataCorrelationID, watermill.NewUUID())
	require.NoError(t, d.EventBus.Publish(waifuwarevents.CommandRequestedV1, msg))
}

// NextReply waits for the next message sent to guild.
func (d HandlerTestDeps) NextReply(t *testing.T, consumer jetstream.Consumer) waifuwarevents.MessageSendRequestedPayloadV1 {
	t.Helper()
	msg, err := consumer.Next(jetstream.FetchMaxWait(15 * time.Second))
	require.NoError(t, err)
	require.NoError(t, msg.Ack())

	var payload waifuwarevents.MessageSendRequestedPayloadV1
	require.NoError(t, json.Unmarshal(msg.Data(), &payload))
	return payload
}

// ReplyConsumer reads the guild's outbound messages from the discord stream.
func (d HandlerTestDeps) ReplyConsumer(t *testing.T) jetstream.Consumer {
	t.Helper()
	consumer, err := d.JetStream.OrderedConsumer(d.Ctx, "discord", jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{eventbus.FormatGuildScopedTopic(waifuwarevents.MessageSendRequestedV1, guild)},
	})
	require.NoError(t, err)
	return consumer
}
