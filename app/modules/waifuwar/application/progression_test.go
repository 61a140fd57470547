package waifuwarservice

import (
	"context"
	"errors"
	"testing"

	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaifuWarService_CollapseRound(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.rng.Coins = []bool{true}
	b := seedVotable(t, h, "Fall2024", "A", "B", "C", "D")
	_, err := h.svc.CastVote(ctx, testGuild, alice, "A")
	require.NoError(t, err)

	result, err := h.svc.CollapseRound(ctx, testGuild, "Finals")
	require.NoError(t, err)

	require.Len(t, result.Divisions, 2)
	first := result.Divisions[0]
	assert.Equal(t, "A", first.Winner.Entrant.Name)
	assert.Equal(t, 1, first.WinnerVotes)
	assert.Zero(t, first.LoserVotes)
	assert.False(t, first.WasTie)

	second := result.Divisions[1]
	assert.True(t, second.WasTie)
	assert.Equal(t, "D", second.Winner.Entrant.Name, "coin flip picked the right side")

	assert.Nil(t, result.Champion)
	require.NotNil(t, result.Next)
	assert.Equal(t, "Fall2024 (Finals)", result.Next.Name)
	assert.Equal(t, waifuwartypes.StatusVotable, result.Next.Status)
	assert.Equal(t, []string{"A", "D"}, h.repo.RosterNames(result.Next.ID))

	assert.Equal(t, b.ID, result.Closed.ID)
	assert.Equal(t, waifuwartypes.StatusClosed, result.Closed.Status)
	assert.Equal(t, waifuwartypes.StatusClosed, h.repo.BracketStatus(b.ID))
	assert.Zero(t, h.repo.VoteCount(b.ID))

	votable, err := h.svc.FindVotable(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(t, result.Next.ID, votable.ID)
}

func TestWaifuWarService_CollapseRoundChampion(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedVotable(t, h, "Fall2024", "A", "B", "C", "D")
	_, err := h.svc.CastVote(ctx, testGuild, alice, "A")
	require.NoError(t, err)
	_, err = h.svc.CastVote(ctx, testGuild, alice, "C")
	require.NoError(t, err)
	semi, err := h.svc.CollapseRound(ctx, testGuild, "Finals")
	require.NoError(t, err)

	_, err = h.svc.CastVote(ctx, testGuild, alice, "C")
	require.NoError(t, err)
	_, err = h.svc.CastVote(ctx, testGuild, bob, "C")
	require.NoError(t, err)

	final, err := h.svc.CollapseRound(ctx, testGuild, "")
	require.NoError(t, err, "the final round needs no suffix")
	assert.Nil(t, final.Next)
	require.NotNil(t, final.Champion)
	assert.Equal(t, "C", final.Champion.Name)
	assert.Equal(t, "Fall2024", final.Champion.BracketName)
	assert.Equal(t, "Group C", final.Champion.Group)
	assert.Equal(t, "https://img.example/C", final.Champion.ImageRef)
	assert.Equal(t, 2, final.Champion.Votes)
	assert.False(t, final.Champion.WasTie)

	assert.Equal(t, waifuwartypes.StatusClosed, h.repo.BracketStatus(semi.Next.ID))
	assert.Equal(t, 2, h.repo.VoteCount(semi.Next.ID), "final ballots are kept")

	brackets, err := h.svc.ListBrackets(ctx, testGuild, waifuwartypes.StatusAll)
	require.NoError(t, err)
	assert.Len(t, brackets, 2, "no bracket follows the final")

	_, err = h.svc.FindVotable(ctx, testGuild)
	assert.ErrorIs(t, err, ErrNoVotableBracket)
}

func TestWaifuWarService_CollapseRoundFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing suffix", func(t *testing.T) {
		h := newHarness()
		b := seedVotable(t, h, "Fall2024", "A", "B", "C", "D")
		_, err := h.svc.CollapseRound(ctx, testGuild, "  ")
		assert.ErrorIs(t, err, ErrEmptyName)
		assert.Equal(t, waifuwartypes.StatusVotable, h.repo.BracketStatus(b.ID))
	})

	t.Run("next name taken", func(t *testing.T) {
		h := newHarness()
		b := seedVotable(t, h, "Fall2024", "A", "B", "C", "D")
		_, err := h.svc.CreateBracket(ctx, "Fall2024 (Finals)", testGuild)
		require.NoError(t, err)
		_, err = h.svc.CastVote(ctx, testGuild, alice, "A")
		require.NoError(t, err)

		_, err = h.svc.CollapseRound(ctx, testGuild, "Finals")
		var dup *DuplicateNameError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, waifuwartypes.StatusVotable, h.repo.BracketStatus(b.ID))
		assert.Equal(t, 1, h.repo.VoteCount(b.ID))
	})

	t.Run("nothing votable", func(t *testing.T) {
		h := newHarness()
		_, err := h.svc.CollapseRound(ctx, testGuild, "Finals")
		assert.ErrorIs(t, err, ErrNoVotableBracket)
	})

	t.Run("tally failure", func(t *testing.T) {
		h := newHarness()
		seedVotable(t, h, "Fall2024", "A", "B")
		h.repo.TallyBracketFunc = func(context.Context, int64) (map[int]waifuwardb.Tally, error) {
			return nil, errors.New("timeout")
		}
		_, err := h.svc.CollapseRound(ctx, testGuild, "")
		require.Error(t, err)
		assert.False(t, IsDomainError(err))
	})
}

func TestWaifuWarService_CollapseRoundAt(t *testing.T) {
	ctx := context.Background()

	t.Run("collapses the pinned bracket", func(t *testing.T) {
		h := newHarness()
		b := seedVotable(t, h, "Fall2024", "A", "B", "C", "D")

		result, err := h.svc.CollapseRoundAt(ctx, testGuild, b.ID, "Finals")
		require.NoError(t, err)
		assert.Equal(t, b.ID, result.Closed.ID)
		require.NotNil(t, result.Next)
		assert.Equal(t, "Fall2024 (Finals)", result.Next.Name)
	})

	t.Run("votable bracket changed after it was read", func(t *testing.T) {
		h := newHarness()
		b := seedVotable(t, h, "Fall2024", "A", "B", "C", "D")

		seen, err := h.svc.FindVotable(ctx, testGuild)
		require.NoError(t, err)
		require.Equal(t, b.ID, seen.ID)

		manual, err := h.svc.CollapseRound(ctx, testGuild, "Finals")
		require.NoError(t, err)
		_, err = h.svc.CastVote(ctx, testGuild, alice, "A")
		require.NoError(t, err)

		_, err = h.svc.CollapseRoundAt(ctx, testGuild, seen.ID, "Finals")
		var stale *StaleCollapseError
		require.ErrorAs(t, err, &stale)
		assert.Equal(t, b.ID, stale.BracketID)
		assert.Equal(t, manual.Next.ID, stale.VotableID)
		assert.True(t, IsDomainError(err))

		assert.Equal(t, waifuwartypes.StatusVotable, h.repo.BracketStatus(manual.Next.ID), "the next round is left alone")
		assert.Equal(t, 1, h.repo.VoteCount(manual.Next.ID))
		brackets, err := h.svc.ListBrackets(ctx, testGuild, waifuwartypes.StatusAll)
		require.NoError(t, err)
		assert.Len(t, brackets, 2)
	})

	t.Run("nothing votable anymore", func(t *testing.T) {
		h := newHarness()
		b := seedVotable(t, h, "Fall2024", "A", "B")
		_, err := h.svc.CollapseRound(ctx, testGuild, "")
		require.NoError(t, err)

		_, err = h.svc.CollapseRoundAt(ctx, testGuild, b.ID, "")
		var stale *StaleCollapseError
		require.ErrorAs(t, err, &stale)
		assert.Zero(t, stale.VotableID)
	})
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "Fall2024", want: "Fall2024"},
		{in: "Fall2024 (Semis)", want: "Fall2024"},
		{in: "Fall2024 (Semis) (Finals)", want: "Fall2024"},
		{in: "  Spring ", want: "Spring"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, baseName(tt.in))
	}
}
