package waifuwarintegrationtests

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	collapsequeue "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/scheduler"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	waifuwarmetrics "github.com/Black-And-White-Club/waifu-bot/pkg/observability/metrics/waifuwar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleCollapse_InsertsRiverJob(t *testing.T) {
	env := GetTestEnv(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scheduler, err := collapsequeue.NewServiceWithPool(env.Pool, logger, waifuwarmetrics.NewNoop(), env.EventBus)
	require.NoError(t, err)

	deps := SetupTestWaifuWarService(t, waifuwarservice.WithScheduler(scheduler))
	ctx, svc := deps.Ctx, deps.Service

	bracketID, _ := seedBracket(t, deps, "Timed War", 4)
	_, err = svc.StartVote(ctx, bracketID, guild)
	require.NoError(t, err)

	_, err = svc.ScheduleCollapse(ctx, waifuwarservice.ScheduleCollapseRequest{GuildID: guild, ChannelID: "chan-1", RequestedBy: "owner", When: "in 2 hours"})
	require.ErrorIs(t, err, waifuwarservice.ErrEmptyName, "non-final rounds need a suffix")

	before := time.Now()
	scheduled, err := svc.ScheduleCollapse(ctx, waifuwarservice.ScheduleCollapseRequest{
		GuildID:     guild,
		ChannelID:   "chan-1",
		RequestedBy: "owner",
		Suffix:      "Finals",
		When:        "in 2 hours",
	})
	require.NoError(t, err)
	assert.Equal(t, bracketID, scheduled.BracketID)
	assert.WithinDuration(t, before.Add(2*time.Hour), scheduled.At, time.Minute)

	var (
		args        []byte
		scheduledAt time.Time
	)
	err = env.DB.QueryRowContext(ctx,
		"SELECT args, scheduled_at FROM river_job WHERE kind = $1", collapsequeue.CollapseJobKind,
	).Scan(&args, &scheduledAt)
	require.NoError(t, err)
	assert.WithinDuration(t, scheduled.At, scheduledAt, time.Second)

	var job collapsequeue.CollapseJob
	require.NoError(t, json.Unmarshal(args, &job))
	assert.Equal(t, waifuwarevents.RoundCollapseRequestedPayloadV1{
		GuildID:     guild,
		ChannelID:   "chan-1",
		RequestedBy: "owner",
		BracketID:   bracketID,
		Suffix:      "Finals",
	}, job.Request)
}

func TestScheduleCollapse_Unavailable(t *testing.T) {
	deps := SetupTestWaifuWarService(t)

	_, err := deps.Service.ScheduleCollapse(deps.Ctx, waifuwarservice.ScheduleCollapseRequest{GuildID: guild, When: "in 1 hour"})
	require.ErrorIs(t, err, waifuwarservice.ErrSchedulingUnavailable)
}
