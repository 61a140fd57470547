package waifuwarservice

import (
	"context"
	"fmt"
	"math/bits"
	"strconv"

	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
)

// LeftPosition is the odd roster position of division d.
func LeftPosition(d int) int { return 2*d - 1 }

// RightPosition is the even roster position of division d.
func RightPosition(d int) int { return 2 * d }

// DivisionOf is the division that roster position p belongs to.
func DivisionOf(p int) int { return (p + 1) / 2 }

// SideOf is the side of its division that roster position p occupies.
func SideOf(p int) waifuwartypes.Side { return waifuwartypes.Side(p%2 == 0) }

// PositionOf is the roster position on side of division d.
func PositionOf(d int, side waifuwartypes.Side) int {
	if side == waifuwartypes.Right {
		return RightPosition(d)
	}
	return LeftPosition(d)
}

// MaxDivision is the number of divisions of a roster of size n.
func MaxDivision(n int) int { return n / 2 }

// IsPowerOfTwo reports whether n is a playable roster size.
func IsPowerOfTwo(n int) bool { return n >= 2 && n&(n-1) == 0 }

// PowerOfTwoBounds returns the playable roster sizes around n: the largest
// power of two below n and the smallest one above it. Sizes under two are
// bounded by 2 on both sides.
func PowerOfTwoBounds(n int) (lower, upper int) {
	if n < 2 {
		return 2, 2
	}
	lower = 1 << (bits.Len(uint(n)) - 1)
	if lower == n {
		return n, n
	}
	return lower, lower << 1
}

// GetDivision returns the two entrants of division d with their current tally.
// Asking for the division just past the last one returns ErrBracketComplete.
func (s *WaifuWarService) GetDivision(ctx context.Context, bracketID int64, division int) (*waifuwartypes.Division, error) {
	identifier := fmt.Sprintf("%d/%d", bracketID, division)
	return execute(s, ctx, "GetDivision", identifier, func(ctx context.Context, db bun.IDB) (DivisionResult, error) {
		if _, err := s.loadBracket(ctx, db, bracketID, false); err != nil {
			return propagate[*waifuwartypes.Division](err)
		}
		d, err := s.loadDivision(ctx, db, bracketID, division)
		if err != nil {
			return propagate[*waifuwartypes.Division](err)
		}
		return success(d)
	})
}

func (s *WaifuWarService) loadDivision(ctx context.Context, db bun.IDB, bracketID int64, division int) (*waifuwartypes.Division, error) {
	size, err := s.repo.CountRoster(ctx, db, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to count roster: %w", err)
	}
	highest := MaxDivision(size)
	switch {
	case division == highest+1:
		return nil, ErrBracketComplete
	case division < 1 || division > highest:
		return nil, &DivisionOutOfRangeError{Requested: division, Highest: highest}
	}

	entries, err := s.repo.GetRosterEntries(ctx, db, bracketID, LeftPosition(division), RightPosition(division))
	if err != nil {
		return nil, fmt.Errorf("failed to load division entrants: %w", err)
	}
	tally, err := s.repo.TallyDivision(ctx, db, bracketID, division)
	if err != nil {
		return nil, fmt.Errorf("failed to tally division: %w", err)
	}

	d := &waifuwartypes.Division{BracketID: bracketID, Number: division, LeftVotes: tally.Left, RightVotes: tally.Right}
	for i := range entries {
		switch entries[i].Position {
		case LeftPosition(division):
			d.Left = entries[i].ToDomain()
		case RightPosition(division):
			d.Right = entries[i].ToDomain()
		}
	}
	return d, nil
}

// ListDivisions returns every division of the bracket's current round.
func (s *WaifuWarService) ListDivisions(ctx context.Context, bracketID int64) ([]waifuwartypes.Division, error) {
	return execute(s, ctx, "ListDivisions", strconv.FormatInt(bracketID, 10), func(ctx context.Context, db bun.IDB) (DivisionsResult, error) {
		if _, err := s.loadBracket(ctx, db, bracketID, false); err != nil {
			return propagate[[]waifuwartypes.Division](err)
		}
		entries, err := s.repo.ListRoster(ctx, db, bracketID)
		if err != nil {
			return fault[[]waifuwartypes.Division]("failed to list roster: %w", err)
		}
		tallies, err := s.repo.TallyBracket(ctx, db, bracketID)
		if err != nil {
			return fault[[]waifuwartypes.Division]("failed to tally bracket: %w", err)
		}
		return success(pairDivisions(bracketID, entries, tallies))
	})
}

// pairDivisions groups a position-ordered roster into divisions.
func pairDivisions(bracketID int64, entries []waifuwardb.RosterEntry, tallies map[int]waifuwardb.Tally) []waifuwartypes.Division {
	divisions := make([]waifuwartypes.Division, MaxDivision(len(entries)))
	for i := range divisions {
		divisions[i] = waifuwartypes.Division{BracketID: bracketID, Number: i + 1}
	}
	for i := range entries {
		d := DivisionOf(entries[i].Position)
		if d < 1 || d > len(divisions) {
			continue
		}
		if SideOf(entries[i].Position) == waifuwartypes.Right {
			divisions[d-1].Right = entries[i].ToDomain()
		} else {
			divisions[d-1].Left = entries[i].ToDomain()
		}
	}
	for d, t := range tallies {
		if d >= 1 && d <= len(divisions) {
			divisions[d-1].LeftVotes = t.Left
			divisions[d-1].RightVotes = t.Right
		}
	}
	return divisions
}
