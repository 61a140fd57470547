package waifuwarservice

import (
	"context"
	"errors"
	"strconv"
	"strings"

	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
)

// AddEntrant adds a character to the global catalog.
func (s *WaifuWarService) AddEntrant(ctx context.Context, input AddEntrantInput) (*waifuwartypes.Entrant, error) {
	return execute(s, ctx, "AddEntrant", input.Name, func(ctx context.Context, db bun.IDB) (EntrantResult, error) {
		return s.addEntrantLogic(ctx, db, input)
	})
}

func (s *WaifuWarService) addEntrantLogic(ctx context.Context, db bun.IDB, input AddEntrantInput) (EntrantResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return failure[*waifuwartypes.Entrant](ErrEmptyName)
	}

	row := &waifuwardb.Entrant{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Group:       strings.TrimSpace(input.Group),
		ImageRef:    strings.TrimSpace(input.ImageRef),
	}
	if err := s.repo.CreateEntrant(ctx, db, row); err != nil {
		if errors.Is(err, waifuwardb.ErrDuplicate) {
			dup := &DuplicateNameError{Kind: "entrant", Name: name}
			if existing, lookupErr := s.repo.GetEntrantByName(ctx, db, name); lookupErr == nil {
				dup.ExistingID = existing.ID
			}
			return failure[*waifuwartypes.Entrant](dup)
		}
		return fault[*waifuwartypes.Entrant]("failed to add entrant: %w", err)
	}

	entrant := row.ToDomain()
	return success(&entrant)
}

// FindEntrant looks an entrant up by catalog id, or by substring of its name
// or of one of its aliases.
func (s *WaifuWarService) FindEntrant(ctx context.Context, idOrName string) (*waifuwartypes.Entrant, error) {
	return execute(s, ctx, "FindEntrant", idOrName, func(ctx context.Context, db bun.IDB) (EntrantResult, error) {
		return s.findEntrantLogic(ctx, db, idOrName)
	})
}

func (s *WaifuWarService) findEntrantLogic(ctx context.Context, db bun.IDB, idOrName string) (EntrantResult, error) {
	query := strings.TrimSpace(idOrName)
	if query == "" {
		return failure[*waifuwartypes.Entrant](ErrEmptyName)
	}

	var row *waifuwardb.Entrant
	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		row, err = s.repo.GetEntrantByID(ctx, db, id)
		if err != nil {
			if errors.Is(err, waifuwardb.ErrNotFound) {
				return failure[*waifuwartypes.Entrant](&NotFoundError{Kind: "entrant", Key: query})
			}
			return fault[*waifuwartypes.Entrant]("failed to get entrant: %w", err)
		}
	} else {
		matches, err := s.repo.SearchEntrants(ctx, db, query)
		if err != nil {
			return fault[*waifuwartypes.Entrant]("failed to search entrants: %w", err)
		}
		matches = dedupeEntrants(matches)
		switch len(matches) {
		case 0:
			return failure[*waifuwartypes.Entrant](&NotFoundError{Kind: "entrant", Key: query})
		case 1:
			row = &matches[0]
		default:
			candidates := make([]Candidate, len(matches))
			for i, m := range matches {
				candidates[i] = Candidate{ID: m.ID, Name: m.Name}
			}
			return failure[*waifuwartypes.Entrant](&MultipleMatchesError{Query: query, Candidates: candidates})
		}
	}

	entrant := row.ToDomain()
	aliases, err := s.repo.ListAliasesFor(ctx, db, entrant.Name)
	if err != nil {
		return fault[*waifuwartypes.Entrant]("failed to list aliases: %w", err)
	}
	entrant.Aliases = aliases
	return success(&entrant)
}

// ListEntrants returns the whole catalog.
func (s *WaifuWarService) ListEntrants(ctx context.Context) ([]waifuwartypes.Entrant, error) {
	return execute(s, ctx, "ListEntrants", "", func(ctx context.Context, db bun.IDB) (EntrantsResult, error) {
		rows, err := s.repo.ListEntrants(ctx, db)
		if err != nil {
			return fault[[]waifuwartypes.Entrant]("failed to list entrants: %w", err)
		}
		entrants := make([]waifuwartypes.Entrant, len(rows))
		for i := range rows {
			entrants[i] = rows[i].ToDomain()
		}
		return success(entrants)
	})
}

// ListGroups returns the distinct groups of the catalog, or of a bracket's
// roster when bracketID is non-zero.
func (s *WaifuWarService) ListGroups(ctx context.Context, bracketID int64) ([]string, error) {
	return execute(s, ctx, "ListGroups", strconv.FormatInt(bracketID, 10), func(ctx context.Context, db bun.IDB) (StringsResult, error) {
		if bracketID != 0 {
			if _, err := s.loadBracket(ctx, db, bracketID, false); err != nil {
				return propagate[[]string](err)
			}
		}
		groups, err := s.repo.ListGroups(ctx, db, bracketID)
		if err != nil {
			return fault[[]string]("failed to list groups: %w", err)
		}
		return success(groups)
	})
}

// FindGroup resolves a group by substring of its label or of an alias of it
// and lists its members.
func (s *WaifuWarService) FindGroup(ctx context.Context, name string) (*waifuwartypes.GroupListing, error) {
	return execute(s, ctx, "FindGroup", name, func(ctx context.Context, db bun.IDB) (GroupResult, error) {
		query := strings.TrimSpace(name)
		if query == "" {
			return failure[*waifuwartypes.GroupListing](ErrEmptyName)
		}

		groups, err := s.repo.SearchGroups(ctx, db, query)
		if err != nil {
			return fault[*waifuwartypes.GroupListing]("failed to search groups: %w", err)
		}
		switch len(groups) {
		case 0:
			return failure[*waifuwartypes.GroupListing](&NotFoundError{Kind: "group", Key: query})
		case 1:
		default:
			candidates := make([]Candidate, len(groups))
			for i, g := range groups {
				candidates[i] = Candidate{Name: g}
			}
			return failure[*waifuwartypes.GroupListing](&MultipleMatchesError{Query: query, Candidates: candidates})
		}

		rows, err := s.repo.ListEntrantsByGroup(ctx, db, groups[0])
		if err != nil {
			return fault[*waifuwartypes.GroupListing]("failed to list group members: %w", err)
		}
		aliases, err := s.repo.ListAliasesFor(ctx, db, groups[0])
		if err != nil {
			return fault[*waifuwartypes.GroupListing]("failed to list aliases: %w", err)
		}

		listing := &waifuwartypes.GroupListing{Name: groups[0], Aliases: aliases}
		for i := range rows {
			listing.Entrants = append(listing.Entrants, rows[i].ToDomain())
		}
		return success(listing)
	})
}

// dedupeEntrants keeps the first row of each id.
func dedupeEntrants(rows []waifuwardb.Entrant) []waifuwardb.Entrant {
	seen := make(map[int64]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
