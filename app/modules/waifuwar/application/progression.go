package waifuwarservice

import (
	"context"
	"errors"
	"strings"

	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
)

// CollapseRound resolves every division of the guild's votable bracket. The
// final round produces a champion; any earlier round produces the next bracket,
// named after the original with suffix, holding the winners in division order.
// Ties are decided by a coin flip.
func (s *WaifuWarService) CollapseRound(ctx context.Context, guildID sharedtypes.GuildID, suffix string) (*waifuwartypes.CollapseResult, error) {
	return execute(s, ctx, "CollapseRound", string(guildID), func(ctx context.Context, db bun.IDB) (CollapseOutcome, error) {
		return s.collapseRoundLogic(ctx, db, guildID, 0, strings.TrimSpace(suffix))
	})
}

// CollapseRoundAt is CollapseRound pinned to bracketID. It fails with a
// StaleCollapseError when bracketID is no longer the guild's votable bracket
// by the time the bracket row is locked.
func (s *WaifuWarService) CollapseRoundAt(ctx context.Context, guildID sharedtypes.GuildID, bracketID int64, suffix string) (*waifuwartypes.CollapseResult, error) {
	return execute(s, ctx, "CollapseRoundAt", string(guildID), func(ctx context.Context, db bun.IDB) (CollapseOutcome, error) {
		return s.collapseRoundLogic(ctx, db, guildID, bracketID, strings.TrimSpace(suffix))
	})
}

// collapseRoundLogic collapses the votable bracket. A non-zero expectedID must
// match it.
func (s *WaifuWarService) collapseRoundLogic(ctx context.Context, db bun.IDB, guildID sharedtypes.GuildID, expectedID int64, suffix string) (CollapseOutcome, error) {
	bracket, err := s.findVotable(ctx, db, guildID, true)
	if err != nil {
		if expectedID != 0 && errors.Is(err, ErrNoVotableBracket) {
			return failure[*waifuwartypes.CollapseResult](&StaleCollapseError{BracketID: expectedID})
		}
		return propagate[*waifuwartypes.CollapseResult](err)
	}
	if expectedID != 0 && bracket.ID != expectedID {
		return failure[*waifuwartypes.CollapseResult](&StaleCollapseError{BracketID: expectedID, VotableID: bracket.ID})
	}

	entries, err := s.repo.ListRoster(ctx, db, bracket.ID)
	if err != nil {
		return fault[*waifuwartypes.CollapseResult]("failed to list roster: %w", err)
	}
	tallies, err := s.repo.TallyBracket(ctx, db, bracket.ID)
	if err != nil {
		return fault[*waifuwartypes.CollapseResult]("failed to tally bracket: %w", err)
	}
	divisions := pairDivisions(bracket.ID, entries, tallies)
	if len(divisions) == 0 {
		return failure[*waifuwartypes.CollapseResult](&DivisionOutOfRangeError{Requested: 1, Highest: 0})
	}

	outcomes := make([]waifuwartypes.DivisionOutcome, len(divisions))
	for i, d := range divisions {
		outcomes[i] = s.decide(ctx, d)
		if outcomes[i].WasTie && s.metrics != nil {
			s.metrics.RecordTieBreak(ctx, string(guildID))
		}
	}

	result := &waifuwartypes.CollapseResult{Divisions: outcomes}

	if len(outcomes) == 1 {
		final := outcomes[0]
		if err := s.setStatus(ctx, db, bracket, waifuwartypes.StatusClosed); err != nil {
			return propagate[*waifuwartypes.CollapseResult](err)
		}
		result.Closed = bracket.ToDomain()
		result.Champion = &waifuwartypes.ChampionAnnouncement{
			BracketID:   bracket.ID,
			BracketName: baseName(bracket.Name),
			Name:        final.Winner.Entrant.Name,
			Description: final.Winner.Entrant.Description,
			Group:       final.Winner.Entrant.Group,
			ImageRef:    final.Winner.Entrant.ImageRef,
			Votes:       final.WinnerVotes,
			WasTie:      final.WasTie,
		}
	} else {
		if suffix == "" {
			return failure[*waifuwartypes.CollapseResult](ErrEmptyName)
		}

		// Create first: a name collision must fail before anything is written.
		created, err := s.createBracketLogic(ctx, db, baseName(bracket.Name)+" ("+suffix+")", bracket.GuildID)
		if err != nil || created.IsFailure() {
			if err != nil {
				return fault[*waifuwartypes.CollapseResult]("failed to create next bracket: %w", err)
			}
			return failure[*waifuwartypes.CollapseResult](*created.Failure)
		}
		next := &waifuwardb.Bracket{ID: (*created.Success).ID, Name: (*created.Success).Name, Status: waifuwartypes.StatusOpen, GuildID: bracket.GuildID}

		if err := s.setStatus(ctx, db, bracket, waifuwartypes.StatusClosed); err != nil {
			return propagate[*waifuwartypes.CollapseResult](err)
		}

		winners := make([]string, len(outcomes))
		for i, o := range outcomes {
			winners[i] = o.Winner.Entrant.Name
		}
		if err := s.repo.ReplaceRoster(ctx, db, next.ID, winners); err != nil {
			return fault[*waifuwartypes.CollapseResult]("failed to seed next bracket: %w", err)
		}
		if err := s.setStatus(ctx, db, next, waifuwartypes.StatusVotable); err != nil {
			return propagate[*waifuwartypes.CollapseResult](err)
		}
		if _, err := s.repo.DeleteBracketVotes(ctx, db, bracket.ID); err != nil {
			return fault[*waifuwartypes.CollapseResult]("failed to clear votes: %w", err)
		}

		nextBracket := next.ToDomain()
		nextBracket.CreatedAt = (*created.Success).CreatedAt
		result.Closed = bracket.ToDomain()
		result.Next = &nextBracket
	}

	if s.metrics != nil {
		s.metrics.RecordRoundCollapsed(ctx, string(guildID), len(outcomes))
	}
	s.logger.InfoContext(ctx, "Round collapsed",
		attr.ExtractCorrelationID(ctx),
		attr.GuildID(string(guildID)),
		attr.BracketID(bracket.ID),
		attr.Int("divisions", len(outcomes)),
		attr.Bool("champion", result.Champion != nil),
	)
	return success(result)
}

// decide picks the winner of one division.
func (s *WaifuWarService) decide(ctx context.Context, d waifuwartypes.Division) waifuwartypes.DivisionOutcome {
	outcome := waifuwartypes.DivisionOutcome{Division: d.Number}
	rightWins := d.RightVotes > d.LeftVotes
	if d.LeftVotes == d.RightVotes {
		outcome.WasTie = true
		rightWins = s.rng.Coin()
		s.logger.InfoContext(ctx, "Division tied, decided by coin flip",
			attr.ExtractCorrelationID(ctx),
			attr.BracketID(d.BracketID),
			attr.Int("division", d.Number),
			attr.Int("votes", d.LeftVotes),
		)
	}
	if rightWins {
		outcome.Winner, outcome.Loser = d.Right, d.Left
		outcome.WinnerVotes, outcome.LoserVotes = d.RightVotes, d.LeftVotes
	} else {
		outcome.Winner, outcome.Loser = d.Left, d.Right
		outcome.WinnerVotes, outcome.LoserVotes = d.LeftVotes, d.RightVotes
	}
	return outcome
}

// baseName drops a trailing round label: everything from the first "(".
func baseName(name string) string {
	head, _, _ := strings.Cut(name, "(")
	return strings.TrimSpace(head)
}
