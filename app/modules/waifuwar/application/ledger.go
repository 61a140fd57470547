package waifuwarservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	"github.com/Black-And-White-Club/waifu-bot/pkg/results"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
)

// TallyResult is the result of counting one division.
type TallyResult = results.OperationResult[waifuwardb.Tally, error]

// CastVote records userID's ballot for the entrant named by idOrName in the
// guild's votable bracket. The entrant's position decides the division and side.
func (s *WaifuWarService) CastVote(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, idOrName string) (*waifuwartypes.VoteReceipt, error) {
	return execute(s, ctx, "CastVote", string(userID), func(ctx context.Context, db bun.IDB) (ReceiptResult, error) {
		bracket, err := s.findVotable(ctx, db, guildID, true)
		if err != nil {
			return s.rejectVote(ctx, guildID, err)
		}
		entry, err := s.findRosterEntry(ctx, db, bracket.ID, idOrName)
		if err != nil {
			return s.rejectVote(ctx, guildID, err)
		}
		return s.castVoteLogic(ctx, db, bracket, entry, userID)
	})
}

// CastVoteAt records a ballot for an explicit roster position, as sent by a
// reaction on a division message.
func (s *WaifuWarService) CastVoteAt(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, bracketID int64, position int) (*waifuwartypes.VoteReceipt, error) {
	return execute(s, ctx, "CastVoteAt", string(userID), func(ctx context.Context, db bun.IDB) (ReceiptResult, error) {
		bracket, entry, err := s.ballotTarget(ctx, db, guildID, bracketID, position)
		if err != nil {
			return s.rejectVote(ctx, guildID, err)
		}
		return s.castVoteLogic(ctx, db, bracket, entry, userID)
	})
}

// ballotTarget locks a bracket addressed directly and checks that the caller
// may vote on it.
func (s *WaifuWarService) ballotTarget(ctx context.Context, db bun.IDB, guildID sharedtypes.GuildID, bracketID int64, position int) (*waifuwardb.Bracket, *waifuwardb.RosterEntry, error) {
	bracket, err := s.loadBracket(ctx, db, bracketID, true)
	if err != nil {
		return nil, nil, err
	}
	if bracket.GuildID != guildID {
		return nil, nil, &WrongScopeError{BracketID: bracket.ID, BracketGuild: bracket.GuildID, CallerGuild: guildID}
	}
	if bracket.Status != waifuwartypes.StatusVotable {
		return nil, nil, &BracketNotVotableError{BracketID: bracket.ID, Status: bracket.Status}
	}
	entries, err := s.repo.GetRosterEntries(ctx, db, bracketID, position)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get roster entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil, &NotFoundError{Kind: "roster entry", Key: strconv.Itoa(position)}
	}
	return bracket, &entries[0], nil
}

func (s *WaifuWarService) castVoteLogic(ctx context.Context, db bun.IDB, bracket *waifuwardb.Bracket, entry *waifuwardb.RosterEntry, userID sharedtypes.DiscordID) (ReceiptResult, error) {
	division := DivisionOf(entry.Position)
	side := SideOf(entry.Position)
	attempted := entry.ToDomain()

	existing, err := s.repo.GetVote(ctx, db, userID, bracket.ID, division)
	switch {
	case err == nil:
		return s.alreadyVoted(ctx, db, bracket, existing, attempted)
	case !errors.Is(err, waifuwardb.ErrNotFound):
		return fault[*waifuwartypes.VoteReceipt]("failed to get vote: %w", err)
	}

	vote := &waifuwardb.Vote{UserID: userID, BracketID: bracket.ID, Division: division, Choice: bool(side)}
	if err := s.repo.InsertVote(ctx, db, vote); err != nil {
		if !errors.Is(err, waifuwardb.ErrDuplicate) {
			return fault[*waifuwartypes.VoteReceipt]("failed to insert vote: %w", err)
		}
		// Lost a race with another ballot of the same user.
		existing, err := s.repo.GetVote(ctx, db, userID, bracket.ID, division)
		if err != nil {
			return fault[*waifuwartypes.VoteReceipt]("failed to get vote: %w", err)
		}
		return s.alreadyVoted(ctx, db, bracket, existing, attempted)
	}

	if s.metrics != nil {
		s.metrics.RecordVoteCast(ctx, string(bracket.GuildID))
	}
	return success(&waifuwartypes.VoteReceipt{BracketID: bracket.ID, Division: division, Side: side, Slot: attempted})
}

func (s *WaifuWarService) alreadyVoted(ctx context.Context, db bun.IDB, bracket *waifuwardb.Bracket, existing *waifuwardb.Vote, attempted waifuwartypes.RosterSlot) (ReceiptResult, error) {
	choice := waifuwartypes.Side(existing.Choice)
	alreadyErr := &AlreadyVotedError{BracketID: bracket.ID, Division: existing.Division, ExistingChoice: choice, Attempted: attempted}

	position := PositionOf(existing.Division, choice)
	entries, err := s.repo.GetRosterEntries(ctx, db, bracket.ID, position)
	if err != nil {
		return fault[*waifuwartypes.VoteReceipt]("failed to get voted entrant: %w", err)
	}
	if len(entries) > 0 {
		alreadyErr.Existing = entries[0].ToDomain()
	} else {
		alreadyErr.Existing = waifuwartypes.RosterSlot{Position: position}
	}
	return s.rejectVote(ctx, bracket.GuildID, alreadyErr)
}

// rejectVote records a rejected ballot and routes err like propagate does.
func (s *WaifuWarService) rejectVote(ctx context.Context, guildID sharedtypes.GuildID, err error) (ReceiptResult, error) {
	if s.metrics != nil && IsDomainError(err) {
		s.metrics.RecordVoteRejected(ctx, string(guildID), voteRejectReason(err))
	}
	return propagate[*waifuwartypes.VoteReceipt](err)
}

func voteRejectReason(err error) string {
	var (
		alreadyVoted *AlreadyVotedError
		wrongScope   *WrongScopeError
		notVotable   *BracketNotVotableError
		notFound     *NotFoundError
		multiple     *MultipleMatchesError
	)
	switch {
	case errors.As(err, &alreadyVoted):
		return "already_voted"
	case errors.As(err, &wrongScope):
		return "wrong_scope"
	case errors.As(err, &notVotable), errors.Is(err, ErrNoVotableBracket):
		return "not_votable"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &multiple):
		return "ambiguous"
	default:
		return "other"
	}
}

// RetractVote removes userID's ballot for the entrant named by idOrName in the
// guild's votable bracket. Retracting a ballot that does not exist succeeds.
func (s *WaifuWarService) RetractVote(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, idOrName string) (*waifuwartypes.VoteReceipt, error) {
	return execute(s, ctx, "RetractVote", string(userID), func(ctx context.Context, db bun.IDB) (ReceiptResult, error) {
		bracket, err := s.findVotable(ctx, db, guildID, true)
		if err != nil {
			return propagate[*waifuwartypes.VoteReceipt](err)
		}
		entry, err := s.findRosterEntry(ctx, db, bracket.ID, idOrName)
		if err != nil {
			return propagate[*waifuwartypes.VoteReceipt](err)
		}
		return s.retractVoteLogic(ctx, db, bracket, entry, userID)
	})
}

// RetractVoteAt removes a ballot for an explicit roster position.
func (s *WaifuWarService) RetractVoteAt(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, bracketID int64, position int) (*waifuwartypes.VoteReceipt, error) {
	return execute(s, ctx, "RetractVoteAt", string(userID), func(ctx context.Context, db bun.IDB) (ReceiptResult, error) {
		bracket, entry, err := s.ballotTarget(ctx, db, guildID, bracketID, position)
		if err != nil {
			return propagate[*waifuwartypes.VoteReceipt](err)
		}
		return s.retractVoteLogic(ctx, db, bracket, entry, userID)
	})
}

func (s *WaifuWarService) retractVoteLogic(ctx context.Context, db bun.IDB, bracket *waifuwardb.Bracket, entry *waifuwardb.RosterEntry, userID sharedtypes.DiscordID) (ReceiptResult, error) {
	division := DivisionOf(entry.Position)
	side := SideOf(entry.Position)

	removed, err := s.repo.DeleteVote(ctx, db, userID, bracket.ID, division, bool(side))
	if err != nil {
		return fault[*waifuwartypes.VoteReceipt]("failed to delete vote: %w", err)
	}
	if removed > 0 && s.metrics != nil {
		s.metrics.RecordVoteRetracted(ctx, string(bracket.GuildID))
	}
	return success(&waifuwartypes.VoteReceipt{BracketID: bracket.ID, Division: division, Side: side, Slot: entry.ToDomain()})
}

// Tally returns the vote counts of division d.
func (s *WaifuWarService) Tally(ctx context.Context, bracketID int64, division int) (int, int, error) {
	identifier := fmt.Sprintf("%d/%d", bracketID, division)
	tally, err := execute(s, ctx, "Tally", identifier, func(ctx context.Context, db bun.IDB) (TallyResult, error) {
		if _, err := s.loadBracket(ctx, db, bracketID, false); err != nil {
			return propagate[waifuwardb.Tally](err)
		}
		size, err := s.repo.CountRoster(ctx, db, bracketID)
		if err != nil {
			return fault[waifuwardb.Tally]("failed to count roster: %w", err)
		}
		if highest := MaxDivision(size); division < 1 || division > highest {
			return failure[waifuwardb.Tally](&DivisionOutOfRangeError{Requested: division, Highest: highest})
		}
		t, err := s.repo.TallyDivision(ctx, db, bracketID, division)
		if err != nil {
			return fault[waifuwardb.Tally]("failed to tally division: %w", err)
		}
		return success(t)
	})
	return tally.Left, tally.Right, err
}

// UserVotes returns userID's ballots in the bracket ordered by division.
func (s *WaifuWarService) UserVotes(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) ([]waifuwartypes.Ballot, error) {
	return execute(s, ctx, "UserVotes", string(userID), func(ctx context.Context, db bun.IDB) (BallotsResult, error) {
		if _, err := s.loadBracket(ctx, db, bracketID, false); err != nil {
			return propagate[[]waifuwartypes.Ballot](err)
		}
		votes, err := s.repo.ListUserVotes(ctx, db, bracketID, userID)
		if err != nil {
			return fault[[]waifuwartypes.Ballot]("failed to list votes: %w", err)
		}
		if len(votes) == 0 {
			return success([]waifuwartypes.Ballot{})
		}

		positions := make([]int, len(votes))
		for i, v := range votes {
			positions[i] = PositionOf(v.Division, waifuwartypes.Side(v.Choice))
		}
		entries, err := s.repo.GetRosterEntries(ctx, db, bracketID, positions...)
		if err != nil {
			return fault[[]waifuwartypes.Ballot]("failed to load voted entrants: %w", err)
		}
		byPosition := make(map[int]waifuwartypes.RosterSlot, len(entries))
		for i := range entries {
			byPosition[entries[i].Position] = entries[i].ToDomain()
		}

		ballots := make([]waifuwartypes.Ballot, len(votes))
		for i, v := range votes {
			slot, ok := byPosition[positions[i]]
			if !ok {
				slot = waifuwartypes.RosterSlot{Position: positions[i]}
			}
			ballots[i] = waifuwartypes.Ballot{Division: v.Division, Side: waifuwartypes.Side(v.Choice), Slot: slot}
		}
		return success(ballots)
	})
}

// MissingDivisions returns, in order, the divisions userID has not voted in.
func (s *WaifuWarService) MissingDivisions(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) ([]int, error) {
	return execute(s, ctx, "MissingDivisions", string(userID), func(ctx context.Context, db bun.IDB) (IntsResult, error) {
		if _, err := s.loadBracket(ctx, db, bracketID, false); err != nil {
			return propagate[[]int](err)
		}
		size, err := s.repo.CountRoster(ctx, db, bracketID)
		if err != nil {
			return fault[[]int]("failed to count roster: %w", err)
		}
		votes, err := s.repo.ListUserVotes(ctx, db, bracketID, userID)
		if err != nil {
			return fault[[]int]("failed to list votes: %w", err)
		}
		voted := make(map[int]struct{}, len(votes))
		for _, v := range votes {
			voted[v.Division] = struct{}{}
		}
		missing := []int{}
		for d := 1; d <= MaxDivision(size); d++ {
			if _, ok := voted[d]; !ok {
				missing = append(missing, d)
			}
		}
		return success(missing)
	})
}

// Voters lists who voted for the entrant named by idOrName in its division.
func (s *WaifuWarService) Voters(ctx context.Context, bracketID int64, idOrName string) (*waifuwartypes.EntrantVoters, error) {
	return execute(s, ctx, "Voters", idOrName, func(ctx context.Context, db bun.IDB) (VotersResult, error) {
		if _, err := s.loadBracket(ctx, db, bracketID, false); err != nil {
			return propagate[*waifuwartypes.EntrantVoters](err)
		}
		entry, err := s.findRosterEntry(ctx, db, bracketID, idOrName)
		if err != nil {
			return propagate[*waifuwartypes.EntrantVoters](err)
		}
		division := DivisionOf(entry.Position)
		voters, err := s.repo.ListVoters(ctx, db, bracketID, division, bool(SideOf(entry.Position)))
		if err != nil {
			return fault[*waifuwartypes.EntrantVoters]("failed to list voters: %w", err)
		}
		return success(&waifuwartypes.EntrantVoters{Slot: entry.ToDomain(), Division: division, Voters: voters})
	})
}

// LastDivision returns the highest division userID voted in, or 0 when the
// user has not voted in the bracket.
func (s *WaifuWarService) LastDivision(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (int, error) {
	return execute(s, ctx, "LastDivision", string(userID), func(ctx context.Context, db bun.IDB) (IntResult, error) {
		if _, err := s.loadBracket(ctx, db, bracketID, false); err != nil {
			return propagate[int](err)
		}
		votes, err := s.repo.ListUserVotes(ctx, db, bracketID, userID)
		if err != nil {
			return fault[int]("failed to list votes: %w", err)
		}
		last := 0
		for _, v := range votes {
			last = max(last, v.Division)
		}
		return success(last)
	})
}

// HasVoted reports whether userID has any ballot in the bracket.
func (s *WaifuWarService) HasVoted(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (bool, error) {
	return execute(s, ctx, "HasVoted", string(userID), func(ctx context.Context, db bun.IDB) (BoolResult, error) {
		n, err := s.repo.CountUserVotes(ctx, db, bracketID, userID)
		if err != nil {
			return fault[bool]("failed to count votes: %w", err)
		}
		return success(n > 0)
	})
}
