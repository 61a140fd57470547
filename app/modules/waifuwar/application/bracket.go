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

// loadBracket fetches a bracket, locking its row when lock is set. A missing
// bracket is returned as a *NotFoundError.
func (s *WaifuWarService) loadBracket(ctx context.Context, db bun.IDB, bracketID int64, lock bool) (*waifuwardb.Bracket, error) {
	var (
		row *waifuwardb.Bracket
		err error
	)
	if lock {
		row, err = s.repo.GetBracketForUpdate(ctx, db, bracketID)
	} else {
		row, err = s.repo.GetBracket(ctx, db, bracketID)
	}
	if err != nil {
		if errors.Is(err, waifuwardb.ErrNotFound) {
			return nil, &NotFoundError{Kind: "bracket", Key: strconv.FormatInt(bracketID, 10)}
		}
		return nil, fmt.Errorf("failed to load bracket %d: %w", bracketID, err)
	}
	return row, nil
}

// votableConflict builds the error for an attempt to make a second bracket
// votable in a guild.
func (s *WaifuWarService) votableConflict(ctx context.Context, db bun.IDB, bracketID int64, guildID sharedtypes.GuildID) error {
	other, err := s.repo.FindVotableBracket(ctx, db, guildID)
	if err != nil {
		if errors.Is(err, waifuwardb.ErrNotFound) {
			return &AnotherBracketVotableError{BracketID: bracketID}
		}
		return fmt.Errorf("failed to find votable bracket: %w", err)
	}
	return &AnotherBracketVotableError{BracketID: bracketID, OtherID: other.ID}
}

// CreateBracket creates an OPEN bracket owned by guildID.
func (s *WaifuWarService) CreateBracket(ctx context.Context, name string, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error) {
	return execute(s, ctx, "CreateBracket", name, func(ctx context.Context, db bun.IDB) (BracketResult, error) {
		return s.createBracketLogic(ctx, db, name, guildID)
	})
}

func (s *WaifuWarService) createBracketLogic(ctx context.Context, db bun.IDB, name string, guildID sharedtypes.GuildID) (BracketResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return failure[*waifuwartypes.Bracket](ErrEmptyName)
	}

	row := &waifuwardb.Bracket{Name: name, Status: waifuwartypes.StatusOpen, GuildID: guildID}
	if err := s.repo.CreateBracket(ctx, db, row); err != nil {
		if errors.Is(err, waifuwardb.ErrDuplicate) {
			dup := &DuplicateNameError{Kind: "bracket", Name: name}
			if existing, lookupErr := s.repo.GetBracketByName(ctx, db, name); lookupErr == nil {
				dup.ExistingID = existing.ID
			}
			return failure[*waifuwartypes.Bracket](dup)
		}
		return fault[*waifuwartypes.Bracket]("failed to create bracket: %w", err)
	}

	bracket := row.ToDomain()
	return success(&bracket)
}

// GetBracket returns a bracket by id.
func (s *WaifuWarService) GetBracket(ctx context.Context, bracketID int64) (*waifuwartypes.Bracket, error) {
	return execute(s, ctx, "GetBracket", strconv.FormatInt(bracketID, 10), func(ctx context.Context, db bun.IDB) (BracketResult, error) {
		row, err := s.loadBracket(ctx, db, bracketID, false)
		if err != nil {
			return propagate[*waifuwartypes.Bracket](err)
		}
		bracket := row.ToDomain()
		return success(&bracket)
	})
}

// SetStatus moves a bracket to status. Making a bracket VOTABLE while another
// bracket of its guild is votable fails with AnotherBracketVotableError.
func (s *WaifuWarService) SetStatus(ctx context.Context, bracketID int64, status waifuwartypes.BracketStatus) (*waifuwartypes.Bracket, error) {
	return execute(s, ctx, "SetStatus", strconv.FormatInt(bracketID, 10), func(ctx context.Context, db bun.IDB) (BracketResult, error) {
		if !status.Valid() {
			return failure[*waifuwartypes.Bracket](&InvalidStatusError{Raw: status.String()})
		}
		row, err := s.loadBracket(ctx, db, bracketID, true)
		if err != nil {
			return propagate[*waifuwartypes.Bracket](err)
		}
		if err := s.setStatus(ctx, db, row, status); err != nil {
			return propagate[*waifuwartypes.Bracket](err)
		}
		bracket := row.ToDomain()
		return success(&bracket)
	})
}

// setStatus updates row in place after the store accepts the change.
func (s *WaifuWarService) setStatus(ctx context.Context, db bun.IDB, row *waifuwardb.Bracket, status waifuwartypes.BracketStatus) error {
	if err := s.repo.UpdateBracketStatus(ctx, db, row.ID, status); err != nil {
		if errors.Is(err, waifuwardb.ErrDuplicate) {
			return s.votableConflict(ctx, db, row.ID, row.GuildID)
		}
		return fmt.Errorf("failed to update bracket status: %w", err)
	}
	row.Status = status
	return nil
}

// LockBracket freezes an OPEN bracket so its roster can no longer change.
func (s *WaifuWarService) LockBracket(ctx context.Context, bracketID int64) (*waifuwartypes.Bracket, error) {
	return execute(s, ctx, "LockBracket", strconv.FormatInt(bracketID, 10), func(ctx context.Context, db bun.IDB) (BracketResult, error) {
		row, err := s.loadBracket(ctx, db, bracketID, true)
		if err != nil {
			return propagate[*waifuwartypes.Bracket](err)
		}
		if row.Status != waifuwartypes.StatusOpen {
			return failure[*waifuwartypes.Bracket](&BracketNotOpenError{BracketID: row.ID, Status: row.Status})
		}
		if err := s.setStatus(ctx, db, row, waifuwartypes.StatusLocked); err != nil {
			return propagate[*waifuwartypes.Bracket](err)
		}
		bracket := row.ToDomain()
		return success(&bracket)
	})
}

// FindVotable returns the guild's bracket in voting, or ErrNoVotableBracket.
func (s *WaifuWarService) FindVotable(ctx context.Context, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error) {
	return execute(s, ctx, "FindVotable", string(guildID), func(ctx context.Context, db bun.IDB) (BracketResult, error) {
		row, err := s.findVotable(ctx, db, guildID, false)
		if err != nil {
			return propagate[*waifuwartypes.Bracket](err)
		}
		bracket := row.ToDomain()
		return success(&bracket)
	})
}

// findVotable resolves the guild's votable bracket, optionally locking it.
func (s *WaifuWarService) findVotable(ctx context.Context, db bun.IDB, guildID sharedtypes.GuildID, lock bool) (*waifuwardb.Bracket, error) {
	row, err := s.repo.FindVotableBracket(ctx, db, guildID)
	if err != nil {
		if errors.Is(err, waifuwardb.ErrNotFound) {
			return nil, ErrNoVotableBracket
		}
		return nil, fmt.Errorf("failed to find votable bracket: %w", err)
	}
	if !lock {
		return row, nil
	}
	locked, err := s.loadBracket(ctx, db, row.ID, true)
	if err != nil {
		return nil, err
	}
	// A concurrent collapse may have closed it between the two reads.
	if locked.Status != waifuwartypes.StatusVotable {
		return nil, ErrNoVotableBracket
	}
	return locked, nil
}

// ListBrackets returns a guild's brackets in status, or all of them for StatusAll.
func (s *WaifuWarService) ListBrackets(ctx context.Context, guildID sharedtypes.GuildID, status waifuwartypes.BracketStatus) ([]waifuwartypes.Bracket, error) {
	return execute(s, ctx, "ListBrackets", string(guildID), func(ctx context.Context, db bun.IDB) (BracketsResult, error) {
		if status != waifuwartypes.StatusAll && !status.Valid() {
			return failure[[]waifuwartypes.Bracket](&InvalidStatusError{Raw: status.String()})
		}
		rows, err := s.repo.ListBrackets(ctx, db, guildID, status)
		if err != nil {
			return fault[[]waifuwartypes.Bracket]("failed to list brackets: %w", err)
		}
		brackets := make([]waifuwartypes.Bracket, len(rows))
		for i := range rows {
			brackets[i] = rows[i].ToDomain()
		}
		return success(brackets)
	})
}

// DuplicateBracket copies a bracket's roster, in order, into a new OPEN bracket.
func (s *WaifuWarService) DuplicateBracket(ctx context.Context, bracketID int64, newName string, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error) {
	return execute(s, ctx, "DuplicateBracket", strconv.FormatInt(bracketID, 10), func(ctx context.Context, db bun.IDB) (BracketResult, error) {
		if _, err := s.loadBracket(ctx, db, bracketID, false); err != nil {
			return propagate[*waifuwartypes.Bracket](err)
		}

		created, err := s.createBracketLogic(ctx, db, newName, guildID)
		if err != nil || created.IsFailure() {
			return created, err
		}

		entries, err := s.repo.ListRoster(ctx, db, bracketID)
		if err != nil {
			return fault[*waifuwartypes.Bracket]("failed to list roster: %w", err)
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		if err := s.repo.ReplaceRoster(ctx, db, (*created.Success).ID, names); err != nil {
			return fault[*waifuwartypes.Bracket]("failed to copy roster: %w", err)
		}
		return created, nil
	})
}
