package waifuwarservice

import (
	"context"
	"time"

	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/results"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

// Service defines the waifu war operations. Domain failures are returned as the
// typed errors of errors.go; any other error is an infrastructure fault.
type Service interface {
	// Catalog
	AddEntrant(ctx context.Context, input AddEntrantInput) (*waifuwartypes.Entrant, error)
	FindEntrant(ctx context.Context, idOrName string) (*waifuwartypes.Entrant, error)
	ListEntrants(ctx context.Context) ([]waifuwartypes.Entrant, error)
	ListGroups(ctx context.Context, bracketID int64) ([]string, error)
	FindGroup(ctx context.Context, name string) (*waifuwartypes.GroupListing, error)

	// Aliases
	AddAliases(ctx context.Context, canonical string, aliases ...string) ([]waifuwartypes.AliasOutcome, error)
	ResolveAlias(ctx context.Context, alias string) (string, error)

	// Bracket registry
	CreateBracket(ctx context.Context, name string, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error)
	GetBracket(ctx context.Context, bracketID int64) (*waifuwartypes.Bracket, error)
	SetStatus(ctx context.Context, bracketID int64, status waifuwartypes.BracketStatus) (*waifuwartypes.Bracket, error)
	LockBracket(ctx context.Context, bracketID int64) (*waifuwartypes.Bracket, error)
	FindVotable(ctx context.Context, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error)
	ListBrackets(ctx context.Context, guildID sharedtypes.GuildID, status waifuwartypes.BracketStatus) ([]waifuwartypes.Bracket, error)
	DuplicateBracket(ctx context.Context, bracketID int64, newName string, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error)

	// Roster
	AddToRoster(ctx context.Context, bracketID int64, name string) (*waifuwartypes.RosterSlot, error)
	RemoveFromRoster(ctx context.Context, bracketID int64, position int) error
	ListRoster(ctx context.Context, bracketID int64) (*waifuwartypes.BracketRoster, error)
	FindRosterEntry(ctx context.Context, bracketID int64, idOrName string) (*waifuwartypes.RosterSlot, error)
	StartVote(ctx context.Context, bracketID int64, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error)

	// Divisions
	GetDivision(ctx context.Context, bracketID int64, division int) (*waifuwartypes.Division, error)
	ListDivisions(ctx context.Context, bracketID int64) ([]waifuwartypes.Division, error)

	// Vote ledger
	CastVote(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, idOrName string) (*waifuwartypes.VoteReceipt, error)
	CastVoteAt(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, bracketID int64, position int) (*waifuwartypes.VoteReceipt, error)
	RetractVote(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, idOrName string) (*waifuwartypes.VoteReceipt, error)
	RetractVoteAt(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, bracketID int64, position int) (*waifuwartypes.VoteReceipt, error)
	Tally(ctx context.Context, bracketID int64, division int) (left int, right int, err error)
	UserVotes(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) ([]waifuwartypes.Ballot, error)
	MissingDivisions(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) ([]int, error)
	Voters(ctx context.Context, bracketID int64, idOrName string) (*waifuwartypes.EntrantVoters, error)
	LastDivision(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (int, error)
	HasVoted(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (bool, error)

	// Progression
	CollapseRound(ctx context.Context, guildID sharedtypes.GuildID, suffix string) (*waifuwartypes.CollapseResult, error)
	CollapseRoundAt(ctx context.Context, guildID sharedtypes.GuildID, bracketID int64, suffix string) (*waifuwartypes.CollapseResult, error)
	ScheduleCollapse(ctx context.Context, req ScheduleCollapseRequest) (*ScheduledCollapse, error)

	// Guided onboarding
	ShouldOfferGuide(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (bool, error)
	BeginGuide(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID) (*waifuwartypes.Bracket, error)
	AdvanceGuide(ctx context.Context, userID sharedtypes.DiscordID, event waifuwartypes.GuideEvent) (waifuwartypes.GuideStep, error)
}

// AddEntrantInput carries the fields of a new catalog entrant.
type AddEntrantInput struct {
	Name        string
	Description string
	Group       string
	ImageRef    string
}

// ScheduleCollapseRequest asks for a round collapse at a natural-language time
// such as "tomorrow at 6pm" or "in 2 hours".
type ScheduleCollapseRequest struct {
	GuildID     sharedtypes.GuildID
	ChannelID   sharedtypes.ChannelID
	RequestedBy sharedtypes.DiscordID
	Suffix      string
	When        string
}

// ScheduledCollapse confirms a scheduled collapse.
type ScheduledCollapse struct {
	BracketID int64
	At        time.Time
}

// CollapseScheduler enqueues a collapse request to be published at a later time.
type CollapseScheduler interface {
	ScheduleCollapse(ctx context.Context, payload waifuwarevents.RoundCollapseRequestedPayloadV1, at time.Time) error
}

// SessionStore holds each user's guide step. Implementations must be safe for
// concurrent use across users.
type SessionStore interface {
	Get(ctx context.Context, userID sharedtypes.DiscordID) (waifuwartypes.GuideStep, error)
	Set(ctx context.Context, userID sharedtypes.DiscordID, step waifuwartypes.GuideStep) error
	Clear(ctx context.Context, userID sharedtypes.DiscordID) error
	Snapshot(ctx context.Context) (map[sharedtypes.DiscordID]waifuwartypes.GuideStep, error)
	Restore(ctx context.Context, steps map[sharedtypes.DiscordID]waifuwartypes.GuideStep) error
}

// Randomizer is the source of the two random decisions the game makes.
type Randomizer interface {
	// Shuffle permutes n elements uniformly using swap.
	Shuffle(n int, swap func(i, j int))
	// Coin returns an unbiased two-way choice.
	Coin() bool
}

// Result aliases reduce generic verbosity in the logic functions.
type (
	EntrantResult       = results.OperationResult[*waifuwartypes.Entrant, error]
	EntrantsResult      = results.OperationResult[[]waifuwartypes.Entrant, error]
	GroupResult         = results.OperationResult[*waifuwartypes.GroupListing, error]
	AliasOutcomesResult = results.OperationResult[[]waifuwartypes.AliasOutcome, error]
	BracketResult       = results.OperationResult[*waifuwartypes.Bracket, error]
	BracketsResult      = results.OperationResult[[]waifuwartypes.Bracket, error]
	SlotResult          = results.OperationResult[*waifuwartypes.RosterSlot, error]
	RosterResult        = results.OperationResult[*waifuwartypes.BracketRoster, error]
	DivisionResult      = results.OperationResult[*waifuwartypes.Division, error]
	DivisionsResult     = results.OperationResult[[]waifuwartypes.Division, error]
	ReceiptResult       = results.OperationResult[*waifuwartypes.VoteReceipt, error]
	BallotsResult       = results.OperationResult[[]waifuwartypes.Ballot, error]
	VotersResult        = results.OperationResult[*waifuwartypes.EntrantVoters, error]
	CollapseOutcome     = results.OperationResult[*waifuwartypes.CollapseResult, error]
	ScheduleResult      = results.OperationResult[*ScheduledCollapse, error]
	GuideStepResult     = results.OperationResult[waifuwartypes.GuideStep, error]
	StringResult        = results.OperationResult[string, error]
	StringsResult       = results.OperationResult[[]string, error]
	IntResult           = results.OperationResult[int, error]
	IntsResult          = results.OperationResult[[]int, error]
	BoolResult          = results.OperationResult[bool, error]
	EmptyResult         = results.OperationResult[struct{}, error]
)
