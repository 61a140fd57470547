package waifuwarintegrationtests

import (
	"errors"
	"sync"
	"testing"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBracketLifecycle(t *testing.T) {
	deps := SetupTestWaifuWarService(t)
	ctx, svc := deps.Ctx, deps.Service

	bracketID, names := seedBracket(t, deps, "Spring War", 4)

	_, err := svc.StartVote(ctx, bracketID, guild)
	require.NoError(t, err)

	votable, err := svc.FindVotable(ctx, guild)
	require.NoError(t, err)
	assert.Equal(t, bracketID, votable.ID)

	// Division 1: left wins 2-0. Division 2: right wins 2-1.
	ballots := []struct {
		user     string
		position int
	}{
		{"alice", 1}, {"bob", 1},
		{"alice", 4}, {"bob", 4}, {"carol", 3},
	}
	for _, b := range ballots {
		_, err := svc.CastVoteAt(ctx, guild, sharedtypes.DiscordID(b.user), bracketID, b.position)
		require.NoError(t, err, "%s voting %d", b.user, b.position)
	}

	left, right, err := svc.Tally(ctx, bracketID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, left)
	assert.Equal(t, 2, right)

	result, err := svc.CollapseRound(ctx, guild, "Finals")
	require.NoError(t, err)
	require.NotNil(t, result.Next)
	assert.Nil(t, result.Champion)
	assert.Equal(t, "Spring War (Finals)", result.Next.Name)
	assert.Equal(t, waifuwartypes.StatusClosed, result.Closed.Status)
	require.Len(t, result.Divisions, 2)
	assert.Equal(t, names[0], result.Divisions[0].Winner.Entrant.Name)
	assert.Equal(t, names[3], result.Divisions[1].Winner.Entrant.Name)

	roster, err := svc.ListRoster(ctx, result.Next.ID)
	require.NoError(t, err)
	require.Len(t, roster.Slots, 2)
	assert.Equal(t, names[0], roster.Slots[0].Entrant.Name)
	assert.Equal(t, names[3], roster.Slots[1].Entrant.Name)
	assert.Equal(t, waifuwartypes.StatusVotable, roster.Bracket.Status)

	old, err := svc.UserVotes(ctx, bracketID, "alice")
	require.NoError(t, err)
	assert.Empty(t, old)

	_, err = svc.CastVoteAt(ctx, guild, "alice", result.Next.ID, 2)
	require.NoError(t, err)

	final, err := svc.CollapseRound(ctx, guild, "")
	require.NoError(t, err)
	require.NotNil(t, final.Champion)
	assert.Nil(t, final.Next)
	assert.Equal(t, names[3], final.Champion.Name)
	assert.Equal(t, "Spring War", final.Champion.BracketName)
	assert.Equal(t, 1, final.Champion.Votes)

	_, err = svc.FindVotable(ctx, guild)
	assert.True(t, errors.Is(err, waifuwarservice.ErrNoVotableBracket))
}

func TestStartVote_RequiresPowerOfTwo(t *testing.T) {
	deps := SetupTestWaifuWarService(t)

	bracketID, _ := seedBracket(t, deps, "Odd War", 3)

	_, err := deps.Service.StartVote(deps.Ctx, bracketID, guild)
	var notPow2 *waifuwarservice.NotPowerOfTwoError
	require.ErrorAs(t, err, &notPow2)
	assert.Equal(t, 3, notPow2.Size)
	assert.Equal(t, 2, notPow2.Lower)
	assert.Equal(t, 4, notPow2.Upper)
}

func TestStartVote_OneVotablePerGuild(t *testing.T) {
	deps := SetupTestWaifuWarService(t)

	first, _ := seedBracket(t, deps, "First War", 2)
	second, err := deps.Service.CreateBracket(deps.Ctx, "Second War", guild)
	require.NoError(t, err)

	_, err = deps.Service.StartVote(deps.Ctx, first, guild)
	require.NoError(t, err)

	_, err = deps.Service.StartVote(deps.Ctx, second.ID, guild)
	var another *waifuwarservice.AnotherBracketVotableError
	require.ErrorAs(t, err, &another)
	assert.Equal(t, first, another.OtherID)
}

func TestCollapseRoundAt_Concurrent(t *testing.T) {
	deps := SetupTestWaifuWarService(t)
	ctx, svc := deps.Ctx, deps.Service

	bracketID, _ := seedBracket(t, deps, "Pinned War", 4)
	_, err := svc.StartVote(ctx, bracketID, guild)
	require.NoError(t, err)

	const attempts = 4
	results := make([]*waifuwartypes.CollapseResult, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.CollapseRoundAt(ctx, guild, bracketID, "Semis")
		}()
	}
	wg.Wait()

	var next *waifuwartypes.Bracket
	for i, err := range errs {
		if err == nil {
			require.Nil(t, next, "only one collapse may succeed")
			next = results[i].Next
			continue
		}
		var stale *waifuwarservice.StaleCollapseError
		require.ErrorAs(t, err, &stale)
		assert.Equal(t, bracketID, stale.BracketID)
	}
	require.NotNil(t, next)

	votable, err := svc.FindVotable(ctx, guild)
	require.NoError(t, err)
	assert.Equal(t, next.ID, votable.ID, "the next round stays votable")

	brackets, err := svc.ListBrackets(ctx, guild, waifuwartypes.StatusAll)
	require.NoError(t, err)
	assert.Len(t, brackets, 2)
}
