package waifuwarservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
)

// AddToRoster appends a catalog entrant to an OPEN bracket. name may be a
// catalog id, an exact name or an alias.
func (s *WaifuWarService) AddToRoster(ctx context.Context, bracketID int64, name string) (*waifuwartypes.RosterSlot, error) {
	return execute(s, ctx, "AddToRoster", name, func(ctx context.Context, db bun.IDB) (SlotResult, error) {
		bracket, err := s.loadBracket(ctx, db, bracketID, true)
		if err != nil {
			return propagate[*waifuwartypes.RosterSlot](err)
		}
		if bracket.Status != waifuwartypes.StatusOpen {
			return failure[*waifuwartypes.RosterSlot](&BracketNotOpenError{BracketID: bracket.ID, Status: bracket.Status})
		}

		entrant, err := s.resolveCatalogEntrant(ctx, db, name)
		if err != nil {
			return propagate[*waifuwartypes.RosterSlot](err)
		}

		position, err := s.repo.AppendRosterEntry(ctx, db, bracketID, entrant.Name)
		if err != nil {
			switch {
			case errors.Is(err, waifuwardb.ErrDuplicate):
				return failure[*waifuwartypes.RosterSlot](&DuplicateNameError{Kind: "roster entry", Name: entrant.Name})
			case errors.Is(err, waifuwardb.ErrNotFound):
				return failure[*waifuwartypes.RosterSlot](&NotFoundError{Kind: "entrant", Key: entrant.Name})
			}
			return fault[*waifuwartypes.RosterSlot]("failed to add to roster: %w", err)
		}

		return success(&waifuwartypes.RosterSlot{Position: position, Entrant: entrant.ToDomain()})
	})
}

// resolveCatalogEntrant finds the catalog row named by an id, an exact name or
// an alias, in that order.
func (s *WaifuWarService) resolveCatalogEntrant(ctx context.Context, db bun.IDB, idOrName string) (*waifuwardb.Entrant, error) {
	query := strings.TrimSpace(idOrName)
	if query == "" {
		return nil, ErrEmptyName
	}

	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		row, err := s.repo.GetEntrantByID(ctx, db, id)
		if err == nil {
			return row, nil
		}
		if !errors.Is(err, waifuwardb.ErrNotFound) {
			return nil, fmt.Errorf("failed to get entrant: %w", err)
		}
	}

	row, err := s.repo.GetEntrantByName(ctx, db, query)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, waifuwardb.ErrNotFound) {
		return nil, fmt.Errorf("failed to get entrant: %w", err)
	}

	alias, err := s.repo.GetAlias(ctx, db, query)
	if err != nil {
		if errors.Is(err, waifuwardb.ErrNotFound) {
			return nil, &NotFoundError{Kind: "entrant", Key: query}
		}
		return nil, fmt.Errorf("failed to resolve alias: %w", err)
	}
	row, err = s.repo.GetEntrantByName(ctx, db, alias.Name)
	if err != nil {
		if errors.Is(err, waifuwardb.ErrNotFound) {
			return nil, &NotFoundError{Kind: "entrant", Key: query}
		}
		return nil, fmt.Errorf("failed to get entrant: %w", err)
	}
	return row, nil
}

// RemoveFromRoster deletes a position of an OPEN bracket. Later positions move
// down by one.
func (s *WaifuWarService) RemoveFromRoster(ctx context.Context, bracketID int64, position int) error {
	identifier := fmt.Sprintf("%d/%d", bracketID, position)
	_, err := execute(s, ctx, "RemoveFromRoster", identifier, func(ctx context.Context, db bun.IDB) (EmptyResult, error) {
		bracket, err := s.loadBracket(ctx, db, bracketID, true)
		if err != nil {
			return propagate[struct{}](err)
		}
		if bracket.Status != waifuwartypes.StatusOpen {
			return failure[struct{}](&BracketNotOpenError{BracketID: bracket.ID, Status: bracket.Status})
		}
		if err := s.repo.DeleteRosterEntry(ctx, db, bracketID, position); err != nil {
			if errors.Is(err, waifuwardb.ErrNotFound) {
				return failure[struct{}](&NotFoundError{Kind: "roster position", Key: strconv.Itoa(position)})
			}
			return fault[struct{}]("failed to remove from roster: %w", err)
		}
		return success(struct{}{})
	})
	return err
}

// ListRoster returns the bracket and its roster in position order.
func (s *WaifuWarService) ListRoster(ctx context.Context, bracketID int64) (*waifuwartypes.BracketRoster, error) {
	return execute(s, ctx, "ListRoster", strconv.FormatInt(bracketID, 10), func(ctx context.Context, db bun.IDB) (RosterResult, error) {
		bracket, err := s.loadBracket(ctx, db, bracketID, false)
		if err != nil {
			return propagate[*waifuwartypes.BracketRoster](err)
		}
		entries, err := s.repo.ListRoster(ctx, db, bracketID)
		if err != nil {
			return fault[*waifuwartypes.BracketRoster]("failed to list roster: %w", err)
		}
		roster := &waifuwartypes.BracketRoster{Bracket: bracket.ToDomain(), Slots: make([]waifuwartypes.RosterSlot, len(entries))}
		for i := range entries {
			roster.Slots[i] = entries[i].ToDomain()
		}
		return success(roster)
	})
}

// FindRosterEntry looks up a roster slot by position, or by substring of the
// entrant's name or of one of its aliases.
func (s *WaifuWarService) FindRosterEntry(ctx context.Context, bracketID int64, idOrName string) (*waifuwartypes.RosterSlot, error) {
	return execute(s, ctx, "FindRosterEntry", idOrName, func(ctx context.Context, db bun.IDB) (SlotResult, error) {
		if _, err := s.loadBracket(ctx, db, bracketID, false); err != nil {
			return propagate[*waifuwartypes.RosterSlot](err)
		}
		entry, err := s.findRosterEntry(ctx, db, bracketID, idOrName)
		if err != nil {
			return propagate[*waifuwartypes.RosterSlot](err)
		}
		slot := entry.ToDomain()
		return success(&slot)
	})
}

func (s *WaifuWarService) findRosterEntry(ctx context.Context, db bun.IDB, bracketID int64, idOrName string) (*waifuwardb.RosterEntry, error) {
	query := strings.TrimSpace(idOrName)
	if query == "" {
		return nil, ErrEmptyName
	}

	if position, err := strconv.Atoi(query); err == nil {
		entries, err := s.repo.GetRosterEntries(ctx, db, bracketID, position)
		if err != nil {
			return nil, fmt.Errorf("failed to get roster entry: %w", err)
		}
		if len(entries) == 0 {
			return nil, &NotFoundError{Kind: "roster entry", Key: query}
		}
		return &entries[0], nil
	}

	entries, err := s.repo.SearchRoster(ctx, db, bracketID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search roster: %w", err)
	}
	entries = dedupeRoster(entries)
	switch len(entries) {
	case 0:
		return nil, &NotFoundError{Kind: "roster entry", Key: query}
	case 1:
		return &entries[0], nil
	default:
		candidates := make([]Candidate, len(entries))
		for i, e := range entries {
			candidates[i] = Candidate{ID: int64(e.Position), Name: e.Name}
		}
		return nil, &MultipleMatchesError{Query: query, Candidates: candidates}
	}
}

// dedupeRoster keeps the first entry of each position.
func dedupeRoster(entries []waifuwardb.RosterEntry) []waifuwardb.RosterEntry {
	seen := make(map[int]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if _, ok := seen[e.Position]; ok {
			continue
		}
		seen[e.Position] = struct{}{}
		out = append(out, e)
	}
	return out
}

// StartVote shuffles an OPEN bracket's roster and opens it for voting. Only
// the guild owning the bracket may start it.
func (s *WaifuWarService) StartVote(ctx context.Context, bracketID int64, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error) {
	return execute(s, ctx, "StartVote", strconv.FormatInt(bracketID, 10), func(ctx context.Context, db bun.IDB) (BracketResult, error) {
		bracket, err := s.loadBracket(ctx, db, bracketID, true)
		if err != nil {
			return propagate[*waifuwartypes.Bracket](err)
		}

		if bracket.GuildID != guildID {
			return failure[*waifuwartypes.Bracket](&WrongScopeError{BracketID: bracketID, BracketGuild: bracket.GuildID, CallerGuild: guildID})
		}

		other, err := s.repo.FindVotableBracket(ctx, db, guildID)
		switch {
		case err == nil && other.ID != bracketID:
			return failure[*waifuwartypes.Bracket](&AnotherBracketVotableError{BracketID: bracketID, OtherID: other.ID})
		case err != nil && !errors.Is(err, waifuwardb.ErrNotFound):
			return fault[*waifuwartypes.Bracket]("failed to find votable bracket: %w", err)
		}

		if bracket.Status != waifuwartypes.StatusOpen {
			return failure[*waifuwartypes.Bracket](&BracketNotOpenError{BracketID: bracket.ID, Status: bracket.Status})
		}

		entries, err := s.repo.ListRoster(ctx, db, bracketID)
		if err != nil {
			return fault[*waifuwartypes.Bracket]("failed to list roster: %w", err)
		}
		if !IsPowerOfTwo(len(entries)) {
			lower, upper := PowerOfTwoBounds(len(entries))
			return failure[*waifuwartypes.Bracket](&NotPowerOfTwoError{Size: len(entries), Lower: lower, Upper: upper})
		}

		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		s.rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })

		if err := s.repo.ReplaceRoster(ctx, db, bracketID, names); err != nil {
			return fault[*waifuwartypes.Bracket]("failed to shuffle roster: %w", err)
		}
		if err := s.setStatus(ctx, db, bracket, waifuwartypes.StatusVotable); err != nil {
			return propagate[*waifuwartypes.Bracket](err)
		}

		result := bracket.ToDomain()
		return success(&result)
	})
}
