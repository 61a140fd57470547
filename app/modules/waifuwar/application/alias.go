package waifuwarservice

import (
	"context"
	"errors"
	"strings"

	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
)

// AddAliases maps each alias to canonical, an entrant name or a group label.
// Aliases are independent: one that already exists is reported in its outcome
// and does not stop the others.
func (s *WaifuWarService) AddAliases(ctx context.Context, canonical string, aliases ...string) ([]waifuwartypes.AliasOutcome, error) {
	return execute(s, ctx, "AddAliases", canonical, func(ctx context.Context, db bun.IDB) (AliasOutcomesResult, error) {
		canonical = strings.TrimSpace(canonical)
		if canonical == "" {
			return failure[[]waifuwartypes.AliasOutcome](ErrEmptyName)
		}
		if len(aliases) == 0 {
			return failure[[]waifuwartypes.AliasOutcome](ErrNoAliases)
		}

		outcomes := make([]waifuwartypes.AliasOutcome, 0, len(aliases))
		for _, alias := range aliases {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			err := s.repo.CreateAlias(ctx, db, &waifuwardb.Alias{Alias: alias, Name: canonical})
			switch {
			case err == nil:
				outcomes = append(outcomes, waifuwartypes.AliasOutcome{Alias: alias, Added: true, Canonical: canonical})
			case errors.Is(err, waifuwardb.ErrDuplicate):
				existing, lookupErr := s.repo.GetAlias(ctx, db, alias)
				if lookupErr != nil {
					return fault[[]waifuwartypes.AliasOutcome]("failed to get existing alias: %w", lookupErr)
				}
				outcomes = append(outcomes, waifuwartypes.AliasOutcome{
					Alias:     alias,
					Canonical: existing.Name,
					Err:       &DuplicateAliasError{Alias: alias, Canonical: existing.Name},
				})
			default:
				return fault[[]waifuwartypes.AliasOutcome]("failed to add alias: %w", err)
			}
		}
		if len(outcomes) == 0 {
			return failure[[]waifuwartypes.AliasOutcome](ErrNoAliases)
		}
		return success(outcomes)
	})
}

// ResolveAlias returns the canonical name an alias points at.
func (s *WaifuWarService) ResolveAlias(ctx context.Context, alias string) (string, error) {
	return execute(s, ctx, "ResolveAlias", alias, func(ctx context.Context, db bun.IDB) (StringResult, error) {
		alias = strings.TrimSpace(alias)
		row, err := s.repo.GetAlias(ctx, db, alias)
		if err != nil {
			if errors.Is(err, waifuwardb.ErrNotFound) {
				return failure[string](&NotFoundError{Kind: "alias", Key: alias})
			}
			return fault[string]("failed to get alias: %w", err)
		}
		return success(row.Name)
	})
}
