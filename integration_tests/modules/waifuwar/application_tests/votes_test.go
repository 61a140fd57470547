package waifuwarintegrationtests

import (
	"fmt"
	"sync"
	"testing"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastVote_OnePerDivision(t *testing.T) {
	deps := SetupTestWaifuWarService(t)
	ctx, svc := deps.Ctx, deps.Service

	bracketID, _ := seedBracket(t, deps, "Ledger War", 4)
	_, err := svc.StartVote(ctx, bracketID, guild)
	require.NoError(t, err)

	receipt, err := svc.CastVoteAt(ctx, guild, "alice", bracketID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Division)

	_, err = svc.CastVoteAt(ctx, guild, "alice", bracketID, 2)
	var already *waifuwarservice.AlreadyVotedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, 1, already.Division)
	assert.Equal(t, 1, already.Existing.Position)
	assert.Equal(t, 2, already.Attempted.Position)

	_, err = svc.RetractVoteAt(ctx, guild, "alice", bracketID, 1)
	require.NoError(t, err)

	_, err = svc.CastVoteAt(ctx, guild, "alice", bracketID, 2)
	require.NoError(t, err)

	left, right, err := svc.Tally(ctx, bracketID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, left)
	assert.Equal(t, 1, right)

	missing, err := svc.MissingDivisions(ctx, bracketID, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, missing)

	last, err := svc.LastDivision(ctx, bracketID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, last)

	voted, err := svc.HasVoted(ctx, bracketID, "bob")
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestCastVote_ConcurrentBallotsOfOneUser(t *testing.T) {
	deps := SetupTestWaifuWarService(t)
	ctx, svc := deps.Ctx, deps.Service

	bracketID, _ := seedBracket(t, deps, "Race War", 2)
	_, err := svc.StartVote(ctx, bracketID, guild)
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.CastVoteAt(ctx, guild, "alice", bracketID, 1+i%2)
		}()
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var already *waifuwarservice.AlreadyVotedError
		assert.ErrorAs(t, err, &already, fmt.Sprintf("attempt %d", i))
	}
	assert.Equal(t, 1, succeeded)

	left, right, err := svc.Tally(ctx, bracketID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, left+right)
}

func TestCastVote_Scope(t *testing.T) {
	deps := SetupTestWaifuWarService(t)
	ctx, svc := deps.Ctx, deps.Service

	bracketID, _ := seedBracket(t, deps, "Scoped War", 2)

	_, err := svc.CastVoteAt(ctx, guild, "alice", bracketID, 1)
	var notVotable *waifuwarservice.BracketNotVotableError
	require.ErrorAs(t, err, &notVotable)

	_, err = svc.StartVote(ctx, bracketID, guild)
	require.NoError(t, err)

	_, err = svc.CastVoteAt(ctx, "guild-2", "alice", bracketID, 1)
	var wrongScope *waifuwarservice.WrongScopeError
	require.ErrorAs(t, err, &wrongScope)

	_, err = svc.CastVoteAt(ctx, guild, "alice", bracketID, 3)
	var notFound *waifuwarservice.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
