package waifuwardb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new waifu war repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// conflictToDuplicate turns an insert that hit ON CONFLICT DO NOTHING into
// ErrDuplicate. Skipping the row keeps the surrounding transaction usable,
// unlike a raised unique violation.
func conflictToDuplicate(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDuplicate
	}
	return nil
}

// insertOutcome maps the result of an ON CONFLICT DO NOTHING insert. A
// RETURNING insert that skipped its row may surface as sql.ErrNoRows.
func insertOutcome(result sql.Result, err error, what string) error {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return conflictToDuplicate(result)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere, with s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// =============================================================================
// Catalog
// =============================================================================

func (r *Impl) CreateEntrant(ctx context.Context, db bun.IDB, entrant *Entrant) error {
	db = r.resolveDB(db)
	result, err := db.NewInsert().
		Model(entrant).
		On("CONFLICT (name) DO NOTHING").
		Returning("*").
		Exec(ctx)
	return insertOutcome(result, err, "create entrant")
}

func (r *Impl) GetEntrantByID(ctx context.Context, db bun.IDB, id int64) (*Entrant, error) {
	db = r.resolveDB(db)
	entrant := new(Entrant)
	err := db.NewSelect().
		Model(entrant).
		Where("e.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entrant by id: %w", err)
	}
	return entrant, nil
}

func (r *Impl) GetEntrantByName(ctx context.Context, db bun.IDB, name string) (*Entrant, error) {
	db = r.resolveDB(db)
	entrant := new(Entrant)
	err := db.NewSelect().
		Model(entrant).
		Where("e.name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entrant by name: %w", err)
	}
	return entrant, nil
}

func (r *Impl) SearchEntrants(ctx context.Context, db bun.IDB, pattern string) ([]Entrant, error) {
	db = r.resolveDB(db)
	like := containsPattern(pattern)
	var entrants []Entrant
	err := db.NewSelect().
		Model(&entrants).
		Where("e.name LIKE ?", like).
		WhereOr("e.name IN (SELECT a.name FROM aliases AS a WHERE a.alias LIKE ?)", like).
		OrderExpr("e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search entrants: %w", err)
	}
	return entrants, nil
}

func (r *Impl) ListEntrants(ctx context.Context, db bun.IDB) ([]Entrant, error) {
	db = r.resolveDB(db)
	var entrants []Entrant
	err := db.NewSelect().
		Model(&entrants).
		OrderExpr("e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entrants: %w", err)
	}
	return entrants, nil
}

func (r *Impl) ListGroups(ctx context.Context, db bun.IDB, bracketID int64) ([]string, error) {
	db = r.resolveDB(db)
	var groups []string
	q := db.NewSelect().
		Model((*Entrant)(nil)).
		DistinctOn("lower(e.grp)").
		ColumnExpr("e.grp").
		OrderExpr("lower(e.grp) ASC, e.grp ASC")
	if bracketID != 0 {
		q = q.Join("JOIN roster AS r ON r.name = e.name").
			Where("r.bracket_id = ?", bracketID)
	}
	if err := q.Scan(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

func (r *Impl) SearchGroups(ctx context.Context, db bun.IDB, pattern string) ([]string, error) {
	db = r.resolveDB(db)
	like := containsPattern(pattern)
	var groups []string
	err := db.NewSelect().
		Model((*Entrant)(nil)).
		DistinctOn("lower(e.grp)").
		ColumnExpr("e.grp").
		Where("e.grp ILIKE ?", like).
		WhereOr("lower(e.grp) IN (SELECT lower(a.name) FROM aliases AS a WHERE a.alias ILIKE ?)", like).
		OrderExpr("lower(e.grp) ASC, e.grp ASC").
		Scan(ctx, &groups)
	if err != nil {
		return nil, fmt.Errorf("failed to search groups: %w", err)
	}
	return groups, nil
}

func (r *Impl) ListEntrantsByGroup(ctx context.Context, db bun.IDB, group string) ([]Entrant, error) {
	db = r.resolveDB(db)
	var entrants []Entrant
	err := db.NewSelect().
		Model(&entrants).
		Where("lower(e.grp) = lower(?)", group).
		OrderExpr("e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entrants by group: %w", err)
	}
	return entrants, nil
}

// =============================================================================
// Aliases
// =============================================================================

func (r *Impl) CreateAlias(ctx context.Context, db bun.IDB, alias *Alias) error {
	db = r.resolveDB(db)
	result, err := db.NewInsert().
		Model(alias).
		On("CONFLICT (alias) DO NOTHING").
		Exec(ctx)
	return insertOutcome(result, err, "create alias")
}

func (r *Impl) GetAlias(ctx context.Context, db bun.IDB, alias string) (*Alias, error) {
	db = r.resolveDB(db)
	row := new(Alias)
	err := db.NewSelect().
		Model(row).
		Where("a.alias = ?", alias).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}
	return row, nil
}

func (r *Impl) ListAliasesFor(ctx context.Context, db bun.IDB, name string) ([]string, error) {
	db = r.resolveDB(db)
	var aliases []string
	err := db.NewSelect().
		Model((*Alias)(nil)).
		ColumnExpr("a.alias").
		Where("a.name = ?", name).
		OrderExpr("a.alias ASC").
		Scan(ctx, &aliases)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	return aliases, nil
}

// =============================================================================
// Brackets
// =============================================================================

func (r *Impl) CreateBracket(ctx context.Context, db bun.IDB, bracket *Bracket) error {
	db = r.resolveDB(db)
	now := time.Now()
	bracket.CreatedAt = now
	bracket.UpdatedAt = now
	result, err := db.NewInsert().
		Model(bracket).
		On("CONFLICT (name) DO NOTHING").
		Returning("*").
		Exec(ctx)
	return insertOutcome(result, err, "create bracket")
}

func (r *Impl) GetBracket(ctx context.Context, db bun.IDB, id int64) (*Bracket, error) {
	return r.getBracket(ctx, r.resolveDB(db), id, false)
}

func (r *Impl) GetBracketForUpdate(ctx context.Context, db bun.IDB, id int64) (*Bracket, error) {
	return r.getBracket(ctx, r.resolveDB(db), id, true)
}

func (r *Impl) getBracket(ctx context.Context, db bun.IDB, id int64, lock bool) (*Bracket, error) {
	bracket := new(Bracket)
	q := db.NewSelect().
		Model(bracket).
		Where("b.id = ?", id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bracket: %w", err)
	}
	return bracket, nil
}

func (r *Impl) GetBracketByName(ctx context.Context, db bun.IDB, name string) (*Bracket, error) {
	db = r.resolveDB(db)
	bracket := new(Bracket)
	err := db.NewSelect().
		Model(bracket).
		Where("b.name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bracket by name: %w", err)
	}
	return bracket, nil
}

func (r *Impl) UpdateBracketStatus(ctx context.Context, db bun.IDB, id int64, status waifuwartypes.BracketStatus) error {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Bracket)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update bracket status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Impl) FindVotableBracket(ctx context.Context, db bun.IDB, guildID sharedtypes.GuildID) (*Bracket, error) {
	db = r.resolveDB(db)
	bracket := new(Bracket)
	err := db.NewSelect().
		Model(bracket).
		Where("b.guild_id = ?", guildID).
		Where("b.status = ?", waifuwartypes.StatusVotable).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find votable bracket: %w", err)
	}
	return bracket, nil
}

func (r *Impl) ListBrackets(ctx context.Context, db bun.IDB, guildID sharedtypes.GuildID, status waifuwartypes.BracketStatus) ([]Bracket, error) {
	db = r.resolveDB(db)
	var brackets []Bracket
	q := db.NewSelect().
		Model(&brackets).
		Where("b.guild_id = ?", guildID)
	if status != waifuwartypes.StatusAll {
		q = q.Where("b.status = ?", status)
	}
	if err := q.OrderExpr("b.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list brackets: %w", err)
	}
	return brackets, nil
}

// =============================================================================
// Roster
// =============================================================================

func (r *Impl) ListRoster(ctx context.Context, db bun.IDB, bracketID int64) ([]RosterEntry, error) {
	db = r.resolveDB(db)
	var entries []RosterEntry
	err := db.NewSelect().
		Model(&entries).
		Relation("Entrant").
		Where("r.bracket_id = ?", bracketID).
		OrderExpr("r.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}
	return entries, nil
}

func (r *Impl) CountRoster(ctx context.Context, db bun.IDB, bracketID int64) (int, error) {
	db = r.resolveDB(db)
	count, err := db.NewSelect().
		Model((*RosterEntry)(nil)).
		Where("r.bracket_id = ?", bracketID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count roster: %w", err)
	}
	return count, nil
}

func (r *Impl) GetRosterEntries(ctx context.Context, db bun.IDB, bracketID int64, positions ...int) ([]RosterEntry, error) {
	if len(positions) == 0 {
		return nil, nil
	}
	db = r.resolveDB(db)
	var entries []RosterEntry
	err := db.NewSelect().
		Model(&entries).
		Relation("Entrant").
		Where("r.bracket_id = ?", bracketID).
		Where("r.position IN (?)", bun.In(positions)).
		OrderExpr("r.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster entries: %w", err)
	}
	return entries, nil
}

func (r *Impl) SearchRoster(ctx context.Context, db bun.IDB, bracketID int64, pattern string) ([]RosterEntry, error) {
	db = r.resolveDB(db)
	like := containsPattern(pattern)
	var entries []RosterEntry
	err := db.NewSelect().
		Model(&entries).
		Relation("Entrant").
		Where("r.bracket_id = ?", bracketID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("r.name LIKE ?", like).
				WhereOr("r.name IN (SELECT a.name FROM aliases AS a WHERE a.alias LIKE ?)", like)
		}).
		OrderExpr("r.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search roster: %w", err)
	}
	return entries, nil
}

func (r *Impl) AppendRosterEntry(ctx context.Context, db bun.IDB, bracketID int64, name string) (int, error) {
	db = r.resolveDB(db)
	var position int
	err := db.NewRaw(
		`INSERT INTO roster (bracket_id, position, name)
		SELECT ?, COALESCE(MAX(position), 0) + 1, ? FROM roster WHERE bracket_id = ?
		ON CONFLICT DO NOTHING
		RETURNING position`,
		bracketID, name, bracketID,
	).Scan(ctx, &position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrDuplicate
		}
		if IsForeignKeyViolation(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to append roster entry: %w", err)
	}
	return position, nil
}

func (r *Impl) DeleteRosterEntry(ctx context.Context, db bun.IDB, bracketID int64, position int) error {
	db = r.resolveDB(db)
	result, err := db.NewDelete().
		Model((*RosterEntry)(nil)).
		Where("bracket_id = ?", bracketID).
		Where("position = ?", position).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete roster entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	// Position is part of the primary key, so shift through negative values to
	// avoid colliding with rows not yet moved.
	if _, err := db.NewUpdate().
		Model((*RosterEntry)(nil)).
		Set("position = -(position - 1)").
		Where("bracket_id = ?", bracketID).
		Where("position > ?", position).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to shift roster positions: %w", err)
	}
	if _, err := db.NewUpdate().
		Model((*RosterEntry)(nil)).
		Set("position = -position").
		Where("bracket_id = ?", bracketID).
		Where("position < 0").
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to restore roster positions: %w", err)
	}
	return nil
}

func (r *Impl) ReplaceRoster(ctx context.Context, db bun.IDB, bracketID int64, names []string) error {
	db = r.resolveDB(db)
	if _, err := db.NewDelete().
		Model((*RosterEntry)(nil)).
		Where("bracket_id = ?", bracketID).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear roster: %w", err)
	}
	if len(names) == 0 {
		return nil
	}

	entries := make([]RosterEntry, len(names))
	for i, name := range names {
		entries[i] = RosterEntry{BracketID: bracketID, Position: i + 1, Name: name}
	}
	if _, err := db.NewInsert().Model(&entries).Exec(ctx); err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert roster: %w", err)
	}
	return nil
}

// =============================================================================
// Votes
// =============================================================================

func (r *Impl) InsertVote(ctx context.Context, db bun.IDB, vote *Vote) error {
	db = r.resolveDB(db)
	vote.CreatedAt = time.Now()
	result, err := db.NewInsert().
		Model(vote).
		On("CONFLICT (user_id, bracket_id, division) DO NOTHING").
		Returning("id").
		Exec(ctx)
	return insertOutcome(result, err, "insert vote")
}

func (r *Impl) GetVote(ctx context.Context, db bun.IDB, userID sharedtypes.DiscordID, bracketID int64, division int) (*Vote, error) {
	db = r.resolveDB(db)
	vote := new(Vote)
	err := db.NewSelect().
		Model(vote).
		Where("v.user_id = ?", userID).
		Where("v.bracket_id = ?", bracketID).
		Where("v.division = ?", division).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return vote, nil
}

func (r *Impl) DeleteVote(ctx context.Context, db bun.IDB, userID sharedtypes.DiscordID, bracketID int64, division int, choice bool) (int64, error) {
	db = r.resolveDB(db)
	result, err := db.NewDelete().
		Model((*Vote)(nil)).
		Where("user_id = ?", userID).
		Where("bracket_id = ?", bracketID).
		Where("division = ?", division).
		Where("choice = ?", choice).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vote: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

func (r *Impl) DeleteDivisionVote(ctx context.Context, db bun.IDB, userID sharedtypes.DiscordID, bracketID int64, division int) error {
	db = r.resolveDB(db)
	_, err := db.NewDelete().
		Model((*Vote)(nil)).
		Where("user_id = ?", userID).
		Where("bracket_id = ?", bracketID).
		Where("division = ?", division).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete division vote: %w", err)
	}
	return nil
}

func (r *Impl) DeleteBracketVotes(ctx context.Context, db bun.IDB, bracketID int64) (int64, error) {
	db = r.resolveDB(db)
	result, err := db.NewDelete().
		Model((*Vote)(nil)).
		Where("bracket_id = ?", bracketID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bracket votes: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

func (r *Impl) TallyDivision(ctx context.Context, db bun.IDB, bracketID int64, division int) (Tally, error) {
	db = r.resolveDB(db)
	tally := Tally{Division: division}
	err := db.NewSelect().
		Model((*Vote)(nil)).
		ColumnExpr("count(*) FILTER (WHERE NOT v.choice) AS left_votes").
		ColumnExpr("count(*) FILTER (WHERE v.choice) AS right_votes").
		Where("v.bracket_id = ?", bracketID).
		Where("v.division = ?", division).
		Scan(ctx, &tally.Left, &tally.Right)
	if err != nil {
		return Tally{}, fmt.Errorf("failed to tally division: %w", err)
	}
	return tally, nil
}

func (r *Impl) TallyBracket(ctx context.Context, db bun.IDB, bracketID int64) (map[int]Tally, error) {
	db = r.resolveDB(db)
	var tallies []Tally
	err := db.NewSelect().
		Model((*Vote)(nil)).
		ColumnExpr("v.division").
		ColumnExpr("count(*) FILTER (WHERE NOT v.choice) AS left_votes").
		ColumnExpr("count(*) FILTER (WHERE v.choice) AS right_votes").
		Where("v.bracket_id = ?", bracketID).
		GroupExpr("v.division").
		OrderExpr("v.division ASC").
		Scan(ctx, &tallies)
	if err != nil {
		return nil, fmt.Errorf("failed to tally bracket: %w", err)
	}
	byDivision := make(map[int]Tally, len(tallies))
	for _, t := range tallies {
		byDivision[t.Division] = t
	}
	return byDivision, nil
}

func (r *Impl) ListUserVotes(ctx context.Context, db bun.IDB, bracketID int64, userID sharedtypes.DiscordID) ([]Vote, error) {
	db = r.resolveDB(db)
	var votes []Vote
	err := db.NewSelect().
		Model(&votes).
		Where("v.bracket_id = ?", bracketID).
		Where("v.user_id = ?", userID).
		OrderExpr("v.division ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list user votes: %w", err)
	}
	return votes, nil
}

func (r *Impl) CountUserVotes(ctx context.Context, db bun.IDB, bracketID int64, userID sharedtypes.DiscordID) (int, error) {
	db = r.resolveDB(db)
	count, err := db.NewSelect().
		Model((*Vote)(nil)).
		Where("v.bracket_id = ?", bracketID).
		Where("v.user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count user votes: %w", err)
	}
	return count, nil
}

func (r *Impl) ListVoters(ctx context.Context, db bun.IDB, bracketID int64, division int, choice bool) ([]sharedtypes.DiscordID, error) {
	db = r.resolveDB(db)
	var voters []sharedtypes.DiscordID
	err := db.NewSelect().
		Model((*Vote)(nil)).
		ColumnExpr("v.user_id").
		Where("v.bracket_id = ?", bracketID).
		Where("v.division = ?", division).
		Where("v.choice = ?", choice).
		OrderExpr("v.created_at ASC, v.id ASC").
		Scan(ctx, &voters)
	if err != nil {
		return nil, fmt.Errorf("failed to list voters: %w", err)
	}
	return voters, nil
}
