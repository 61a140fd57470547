package waifuwardb

import (
	"context"

	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
)

// Repository defines the contract for waifu war persistence. Every method
// takes the bun.IDB to run against so the service can compose them inside a
// transaction; a nil db falls back to the repository's connection.
type Repository interface {
	// --- Catalog ---

	// CreateEntrant inserts a catalog row. Returns ErrDuplicate if the name exists.
	CreateEntrant(ctx context.Context, db bun.IDB, entrant *Entrant) error
	// GetEntrantByID retrieves an entrant by id.
	GetEntrantByID(ctx context.Context, db bun.IDB, id int64) (*Entrant, error)
	// GetEntrantByName retrieves an entrant by exact name.
	GetEntrantByName(ctx context.Context, db bun.IDB, name string) (*Entrant, error)
	// SearchEntrants returns entrants whose name, or an alias of whose name,
	// contains pattern. Each entrant appears once.
	SearchEntrants(ctx context.Context, db bun.IDB, pattern string) ([]Entrant, error)
	// ListEntrants returns the whole catalog ordered by id.
	ListEntrants(ctx context.Context, db bun.IDB) ([]Entrant, error)
	// ListGroups returns distinct group labels, case-insensitively deduplicated.
	// A non-zero bracketID restricts the result to groups present in its roster.
	ListGroups(ctx context.Context, db bun.IDB, bracketID int64) ([]string, error)
	// SearchGroups returns distinct group labels containing pattern, directly or
	// through an alias of the group.
	SearchGroups(ctx context.Context, db bun.IDB, pattern string) ([]string, error)
	// ListEntrantsByGroup returns entrants whose group equals group, ignoring case.
	ListEntrantsByGroup(ctx context.Context, db bun.IDB, group string) ([]Entrant, error)

	// --- Aliases ---

	// CreateAlias inserts an alias. Returns ErrDuplicate if the alias exists.
	CreateAlias(ctx context.Context, db bun.IDB, alias *Alias) error
	// GetAlias retrieves an alias by exact text.
	GetAlias(ctx context.Context, db bun.IDB, alias string) (*Alias, error)
	// ListAliasesFor returns the aliases pointing at name.
	ListAliasesFor(ctx context.Context, db bun.IDB, name string) ([]string, error)

	// --- Brackets ---

	// CreateBracket inserts a bracket. Returns ErrDuplicate if the name exists,
	// or if it would be a second VOTABLE bracket in its guild.
	CreateBracket(ctx context.Context, db bun.IDB, bracket *Bracket) error
	// GetBracket retrieves a bracket by id.
	GetBracket(ctx context.Context, db bun.IDB, id int64) (*Bracket, error)
	// GetBracketForUpdate retrieves a bracket by id and locks its row until the
	// surrounding transaction ends.
	GetBracketForUpdate(ctx context.Context, db bun.IDB, id int64) (*Bracket, error)
	// GetBracketByName retrieves a bracket by exact name.
	GetBracketByName(ctx context.Context, db bun.IDB, name string) (*Bracket, error)
	// UpdateBracketStatus sets the status of a bracket. Returns ErrDuplicate when
	// it would make a second VOTABLE bracket in the guild.
	UpdateBracketStatus(ctx context.Context, db bun.IDB, id int64, status waifuwartypes.BracketStatus) error
	// FindVotableBracket returns the VOTABLE bracket of a guild, or ErrNotFound.
	FindVotableBracket(ctx context.Context, db bun.IDB, guildID sharedtypes.GuildID) (*Bracket, error)
	// ListBrackets returns a guild's brackets with status, or all of them for StatusAll.
	ListBrackets(ctx context.Context, db bun.IDB, guildID sharedtypes.GuildID, status waifuwartypes.BracketStatus) ([]Bracket, error)

	// --- Roster ---

	// ListRoster returns the roster ordered by position with entrants loaded.
	ListRoster(ctx context.Context, db bun.IDB, bracketID int64) ([]RosterEntry, error)
	// CountRoster returns the roster size.
	CountRoster(ctx context.Context, db bun.IDB, bracketID int64) (int, error)
	// GetRosterEntries returns the entries at the given positions with entrants loaded.
	GetRosterEntries(ctx context.Context, db bun.IDB, bracketID int64, positions ...int) ([]RosterEntry, error)
	// SearchRoster returns roster entries whose name, or an alias of it, contains pattern.
	SearchRoster(ctx context.Context, db bun.IDB, bracketID int64, pattern string) ([]RosterEntry, error)
	// AppendRosterEntry adds name after the last position and returns its position.
	// Returns ErrDuplicate if name is already on the roster.
	AppendRosterEntry(ctx context.Context, db bun.IDB, bracketID int64, name string) (int, error)
	// DeleteRosterEntry removes a position and closes the gap it leaves.
	DeleteRosterEntry(ctx context.Context, db bun.IDB, bracketID int64, position int) error
	// ReplaceRoster deletes the roster and inserts names at positions 1..N.
	ReplaceRoster(ctx context.Context, db bun.IDB, bracketID int64, names []string) error

	// --- Votes ---

	// InsertVote records a ballot. Returns ErrDuplicate if the user already voted
	// in that division.
	InsertVote(ctx context.Context, db bun.IDB, vote *Vote) error
	// GetVote returns a user's ballot for a division.
	GetVote(ctx context.Context, db bun.IDB, userID sharedtypes.DiscordID, bracketID int64, division int) (*Vote, error)
	// DeleteVote removes the exact ballot and reports how many rows were removed.
	DeleteVote(ctx context.Context, db bun.IDB, userID sharedtypes.DiscordID, bracketID int64, division int, choice bool) (int64, error)
	// DeleteDivisionVote removes a user's ballot for a division whatever its choice.
	DeleteDivisionVote(ctx context.Context, db bun.IDB, userID sharedtypes.DiscordID, bracketID int64, division int) error
	// DeleteBracketVotes removes every ballot of a bracket.
	DeleteBracketVotes(ctx context.Context, db bun.IDB, bracketID int64) (int64, error)
	// TallyDivision counts the ballots of one division.
	TallyDivision(ctx context.Context, db bun.IDB, bracketID int64, division int) (Tally, error)
	// TallyBracket counts the ballots of every division that has any, keyed by division.
	TallyBracket(ctx context.Context, db bun.IDB, bracketID int64) (map[int]Tally, error)
	// ListUserVotes returns a user's ballots ordered by division.
	ListUserVotes(ctx context.Context, db bun.IDB, bracketID int64, userID sharedtypes.DiscordID) ([]Vote, error)
	// CountUserVotes counts a user's ballots in a bracket.
	CountUserVotes(ctx context.Context, db bun.IDB, bracketID int64, userID sharedtypes.DiscordID) (int, error)
	// ListVoters returns the users that chose side choice of a division.
	ListVoters(ctx context.Context, db bun.IDB, bracketID int64, division int, choice bool) ([]sharedtypes.DiscordID, error)
}
