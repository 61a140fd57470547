package waifuwarintegrationtests

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"testing"
	"time"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	"github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/sessions"
	"github.com/Black-And-White-Club/waifu-bot/integration_tests/testutils"
	waifuwarmetrics "github.com/Black-And-White-Club/waifu-bot/pkg/observability/metrics/waifuwar"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// Global variables for the test environment, initialized once.
var (
	testEnv     *testutils.TestEnvironment
	testEnvOnce sync.Once
	testEnvErr  error
)

const guild = sharedtypes.GuildID("guild-1")

// TestDeps holds dependencies needed by individual tests.
type TestDeps struct {
	Ctx     context.Context
	Env     *testutils.TestEnvironment
	Service *waifuwarservice.WaifuWarService
}

// keepOrder leaves rosters unshuffled and lets the left entrant win ties.
type keepOrder struct{}

func (keepOrder) Shuffle(int, func(i, j int)) {}
func (keepOrder) Coin() bool                  { return false }

func GetTestEnv(t *testing.T) *testutils.TestEnvironment {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}

	testEnvOnce.Do(func() {
		log.Println("Initializing waifu war test environment...")
		testEnv, testEnvErr = testutils.NewTestEnvironment(t)
	})
	if testEnvErr != nil {
		t.Fatalf("Waifu war test environment initialization failed: %v", testEnvErr)
	}
	return testEnv
}

func SetupTestWaifuWarService(t *testing.T, opts ...waifuwarservice.Option) TestDeps {
	t.Helper()
	env := GetTestEnv(t)

	resetCtx, resetCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer resetCancel()
	require.NoError(t, env.Reset(resetCtx))

	logger := slog.New(slog.NewTextHandler(testutils.TestWriter{T: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]waifuwarservice.Option{waifuwarservice.WithRandomizer(keepOrder{})}, opts...)
	service := waifuwarservice.NewWaifuWarService(
		waifuwardb.NewRepository(env.DB),
		sessions.NewMemoryStore(),
		logger,
		waifuwarmetrics.NewNoop(),
		noop.NewTracerProvider().Tracer("test_waifuwar_service"),
		env.DB,
		opts...,
	)
	return TestDeps{Ctx: env.Ctx, Env: env, Service: service}
}

// seedBracket adds n generated entrants to the catalog and to a new bracket.
func seedBracket(t *testing.T, deps TestDeps, name string, n int) (int64, []string) {
	t.Helper()
	bracket, err := deps.Service.CreateBracket(deps.Ctx, name, guild)
	require.NoError(t, err)

	names := make([]string, 0, n)
	seen := map[string]bool{}
	for len(names) < n {
		entrant := gofakeit.FirstName() + " " + gofakeit.LastName()
		if seen[entrant] {
			continue
		}
		seen[entrant] = true
		_, err := deps.Service.AddEntrant(deps.Ctx, waifuwarservice.AddEntrantInput{
			Name:        entrant,
			Description: gofakeit.Sentence(6),
			Group:       gofakeit.Company(),
			ImageRef:    gofakeit.URL(),
		})
		require.NoError(t, err)
		_, err = deps.Service.AddToRoster(deps.Ctx, bracket.ID, entrant)
		require.NoError(t, err)
		names = append(names, entrant)
	}
	return bracket.ID, names
}
