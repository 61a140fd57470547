package waifuwarhandlers

import (
	"context"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

// ------------------------
// Fake Waifu War Service
// ------------------------

type FakeWaifuWarService struct {
	trace []string

	AddEntrantFunc       func(ctx context.Context, input waifuwarservice.AddEntrantInput) (*waifuwartypes.Entrant, error)
	FindEntrantFunc      func(ctx context.Context, idOrName string) (*waifuwartypes.Entrant, error)
	ListEntrantsFunc     func(ctx context.Context) ([]waifuwartypes.Entrant, error)
	ListGroupsFunc       func(ctx context.Context, bracketID int64) ([]string, error)
	FindGroupFunc        func(ctx context.Context, name string) (*waifuwartypes.GroupListing, error)
	AddAliasesFunc       func(ctx context.Context, canonical string, aliases ...string) ([]waifuwartypes.AliasOutcome, error)
	ResolveAliasFunc     func(ctx context.Context, alias string) (string, error)
	CreateBracketFunc    func(ctx context.Context, name string, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error)
	GetBracketFunc       func(ctx context.Context, bracketID int64) (*waifuwartypes.Bracket, error)
	SetStatusFunc        func(ctx context.Context, bracketID int64, status waifuwartypes.BracketStatus) (*waifuwartypes.Bracket, error)
	LockBracketFunc      func(ctx context.Context, bracketID int64) (*waifuwartypes.Bracket, error)
	FindVotableFunc      func(ctx context.Context, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error)
	ListBracketsFunc     func(ctx context.Context, guildID sharedtypes.GuildID, status waifuwartypes.BracketStatus) ([]waifuwartypes.Bracket, error)
	DuplicateBracketFunc func(ctx context.Context, bracketID int64, newName string, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error)
	AddToRosterFunc      func(ctx context.Context, bracketID int64, name string) (*waifuwartypes.RosterSlot, error)
	RemoveFromRosterFunc func(ctx context.Context, bracketID int64, position int) error
	ListRosterFunc       func(ctx context.Context, bracketID int64) (*waifuwartypes.BracketRoster, error)
	FindRosterEntryFunc  func(ctx context.Context, bracketID int64, idOrName string) (*waifuwartypes.RosterSlot, error)
	StartVoteFunc        func(ctx context.Context, bracketID int64, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error)
	GetDivisionFunc      func(ctx context.Context, bracketID int64, division int) (*waifuwartypes.Division, error)
	ListDivisionsFunc    func(ctx context.Context, bracketID int64) ([]waifuwartypes.Division, error)
	CastVoteFunc         func(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, idOrName string) (*waifuwartypes.VoteReceipt, error)
	CastVoteAtFunc       func(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, bracketID int64, position int) (*waifuwartypes.VoteReceipt, error)
	RetractVoteFunc      func(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, idOrName string) (*waifuwartypes.VoteReceipt, error)
	RetractVoteAtFunc    func(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, bracketID int64, position int) (*waifuwartypes.VoteReceipt, error)
	TallyFunc            func(ctx context.Context, bracketID int64, division int) (left int, right int, err error)
	UserVotesFunc        func(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) ([]waifuwartypes.Ballot, error)
	MissingDivisionsFunc func(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) ([]int, error)
	VotersFunc           func(ctx context.Context, bracketID int64, idOrName string) (*waifuwartypes.EntrantVoters, error)
	LastDivisionFunc     func(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (int, error)
	HasVotedFunc         func(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (bool, error)
	CollapseRoundFunc    func(ctx context.Context, guildID sharedtypes.GuildID, suffix string) (*waifuwartypes.CollapseResult, error)
	CollapseRoundAtFunc  func(ctx context.Context, guildID sharedtypes.GuildID, bracketID int64, suffix string) (*waifuwartypes.CollapseResult, error)
	ScheduleCollapseFunc func(ctx context.Context, req waifuwarservice.ScheduleCollapseRequest) (*waifuwarservice.ScheduledCollapse, error)
	ShouldOfferGuideFunc func(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (bool, error)
	BeginGuideFunc       func(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID) (*waifuwartypes.Bracket, error)
	AdvanceGuideFunc     func(ctx context.Context, userID sharedtypes.DiscordID, event waifuwartypes.GuideEvent) (waifuwartypes.GuideStep, error)
}

func NewFakeWaifuWarService() *FakeWaifuWarService {
	return &FakeWaifuWarService{
		trace: []string{},
	}
}

func (f *FakeWaifuWarService) record(step string) {
	f.trace = append(f.trace, step)
}

// --- Service Interface Implementation ---

func (f *FakeWaifuWarService) AddEntrant(ctx context.Context, input waifuwarservice.AddEntrantInput) (*waifuwartypes.Entrant, error) {
	f.record("AddEntrant")
	if f.AddEntrantFunc != nil {
		return f.AddEntrantFunc(ctx, input)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) FindEntrant(ctx context.Context, idOrName string) (*waifuwartypes.Entrant, error) {
	f.record("FindEntrant")
	if f.FindEntrantFunc != nil {
		return f.FindEntrantFunc(ctx, idOrName)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) ListEntrants(ctx context.Context) ([]waifuwartypes.Entrant, error) {
	f.record("ListEntrants")
	if f.ListEntrantsFunc != nil {
		return f.ListEntrantsFunc(ctx)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) ListGroups(ctx context.Context, bracketID int64) ([]string, error) {
	f.record("ListGroups")
	if f.ListGroupsFunc != nil {
		return f.ListGroupsFunc(ctx, bracketID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) FindGroup(ctx context.Context, name string) (*waifuwartypes.GroupListing, error) {
	f.record("FindGroup")
	if f.FindGroupFunc != nil {
		return f.FindGroupFunc(ctx, name)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) AddAliases(ctx context.Context, canonical string, aliases ...string) ([]waifuwartypes.AliasOutcome, error) {
	f.record("AddAliases")
	if f.AddAliasesFunc != nil {
		return f.AddAliasesFunc(ctx, canonical, aliases...)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) ResolveAlias(ctx context.Context, alias string) (string, error) {
	f.record("ResolveAlias")
	if f.ResolveAliasFunc != nil {
		return f.ResolveAliasFunc(ctx, alias)
	}
	return "", nil
}

func (f *FakeWaifuWarService) CreateBracket(ctx context.Context, name string, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error) {
	f.record("CreateBracket")
	if f.CreateBracketFunc != nil {
		return f.CreateBracketFunc(ctx, name, guildID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) GetBracket(ctx context.Context, bracketID int64) (*waifuwartypes.Bracket, error) {
	f.record("GetBracket")
	if f.GetBracketFunc != nil {
		return f.GetBracketFunc(ctx, bracketID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) SetStatus(ctx context.Context, bracketID int64, status waifuwartypes.BracketStatus) (*waifuwartypes.Bracket, error) {
	f.record("SetStatus")
	if f.SetStatusFunc != nil {
		return f.SetStatusFunc(ctx, bracketID, status)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) LockBracket(ctx context.Context, bracketID int64) (*waifuwartypes.Bracket, error) {
	f.record("LockBracket")
	if f.LockBracketFunc != nil {
		return f.LockBracketFunc(ctx, bracketID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) FindVotable(ctx context.Context, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error) {
	f.record("FindVotable")
	if f.FindVotableFunc != nil {
		return f.FindVotableFunc(ctx, guildID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) ListBrackets(ctx context.Context, guildID sharedtypes.GuildID, status waifuwartypes.BracketStatus) ([]waifuwartypes.Bracket, error) {
	f.record("ListBrackets")
	if f.ListBracketsFunc != nil {
		return f.ListBracketsFunc(ctx, guildID, status)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) DuplicateBracket(ctx context.Context, bracketID int64, newName string, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error) {
	f.record("DuplicateBracket")
	if f.DuplicateBracketFunc != nil {
		return f.DuplicateBracketFunc(ctx, bracketID, newName, guildID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) AddToRoster(ctx context.Context, bracketID int64, name string) (*waifuwartypes.RosterSlot, error) {
	f.record("AddToRoster")
	if f.AddToRosterFunc != nil {
		return f.AddToRosterFunc(ctx, bracketID, name)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) RemoveFromRoster(ctx context.Context, bracketID int64, position int) error {
	f.record("RemoveFromRoster")
	if f.RemoveFromRosterFunc != nil {
		return f.RemoveFromRosterFunc(ctx, bracketID, position)
	}
	return nil
}

func (f *FakeWaifuWarService) ListRoster(ctx context.Context, bracketID int64) (*waifuwartypes.BracketRoster, error) {
	f.record("ListRoster")
	if f.ListRosterFunc != nil {
		return f.ListRosterFunc(ctx, bracketID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) FindRosterEntry(ctx context.Context, bracketID int64, idOrName string) (*waifuwartypes.RosterSlot, error) {
	f.record("FindRosterEntry")
	if f.FindRosterEntryFunc != nil {
		return f.FindRosterEntryFunc(ctx, bracketID, idOrName)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) StartVote(ctx context.Context, bracketID int64, guildID sharedtypes.GuildID) (*waifuwartypes.Bracket, error) {
	f.record("StartVote")
	if f.StartVoteFunc != nil {
		return f.StartVoteFunc(ctx, bracketID, guildID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) GetDivision(ctx context.Context, bracketID int64, division int) (*waifuwartypes.Division, error) {
	f.record("GetDivision")
	if f.GetDivisionFunc != nil {
		return f.GetDivisionFunc(ctx, bracketID, division)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) ListDivisions(ctx context.Context, bracketID int64) ([]waifuwartypes.Division, error) {
	f.record("ListDivisions")
	if f.ListDivisionsFunc != nil {
		return f.ListDivisionsFunc(ctx, bracketID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) CastVote(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, idOrName string) (*waifuwartypes.VoteReceipt, error) {
	f.record("CastVote")
	if f.CastVoteFunc != nil {
		return f.CastVoteFunc(ctx, guildID, userID, idOrName)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) CastVoteAt(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, bracketID int64, position int) (*waifuwartypes.VoteReceipt, error) {
	f.record("CastVoteAt")
	if f.CastVoteAtFunc != nil {
		return f.CastVoteAtFunc(ctx, guildID, userID, bracketID, position)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) RetractVote(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, idOrName string) (*waifuwartypes.VoteReceipt, error) {
	f.record("RetractVote")
	if f.RetractVoteFunc != nil {
		return f.RetractVoteFunc(ctx, guildID, userID, idOrName)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) RetractVoteAt(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID, bracketID int64, position int) (*waifuwartypes.VoteReceipt, error) {
	f.record("RetractVoteAt")
	if f.RetractVoteAtFunc != nil {
		return f.RetractVoteAtFunc(ctx, guildID, userID, bracketID, position)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) Tally(ctx context.Context, bracketID int64, division int) (left int, right int, err error) {
	f.record("Tally")
	if f.TallyFunc != nil {
		return f.TallyFunc(ctx, bracketID, division)
	}
	return 0, 0, nil
}

func (f *FakeWaifuWarService) UserVotes(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) ([]waifuwartypes.Ballot, error) {
	f.record("UserVotes")
	if f.UserVotesFunc != nil {
		return f.UserVotesFunc(ctx, bracketID, userID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) MissingDivisions(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) ([]int, error) {
	f.record("MissingDivisions")
	if f.MissingDivisionsFunc != nil {
		return f.MissingDivisionsFunc(ctx, bracketID, userID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) Voters(ctx context.Context, bracketID int64, idOrName string) (*waifuwartypes.EntrantVoters, error) {
	f.record("Voters")
	if f.VotersFunc != nil {
		return f.VotersFunc(ctx, bracketID, idOrName)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) LastDivision(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (int, error) {
	f.record("LastDivision")
	if f.LastDivisionFunc != nil {
		return f.LastDivisionFunc(ctx, bracketID, userID)
	}
	return 0, nil
}

func (f *FakeWaifuWarService) HasVoted(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (bool, error) {
	f.record("HasVoted")
	if f.HasVotedFunc != nil {
		return f.HasVotedFunc(ctx, bracketID, userID)
	}
	return false, nil
}

func (f *FakeWaifuWarService) CollapseRound(ctx context.Context, guildID sharedtypes.GuildID, suffix string) (*waifuwartypes.CollapseResult, error) {
	f.record("CollapseRound")
	if f.CollapseRoundFunc != nil {
		return f.CollapseRoundFunc(ctx, guildID, suffix)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) CollapseRoundAt(ctx context.Context, guildID sharedtypes.GuildID, bracketID int64, suffix string) (*waifuwartypes.CollapseResult, error) {
	f.record("CollapseRoundAt")
	if f.CollapseRoundAtFunc != nil {
		return f.CollapseRoundAtFunc(ctx, guildID, bracketID, suffix)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) ScheduleCollapse(ctx context.Context, req waifuwarservice.ScheduleCollapseRequest) (*waifuwarservice.ScheduledCollapse, error) {
	f.record("ScheduleCollapse")
	if f.ScheduleCollapseFunc != nil {
		return f.ScheduleCollapseFunc(ctx, req)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) ShouldOfferGuide(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (bool, error) {
	f.record("ShouldOfferGuide")
	if f.ShouldOfferGuideFunc != nil {
		return f.ShouldOfferGuideFunc(ctx, bracketID, userID)
	}
	return false, nil
}

func (f *FakeWaifuWarService) BeginGuide(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID) (*waifuwartypes.Bracket, error) {
	f.record("BeginGuide")
	if f.BeginGuideFunc != nil {
		return f.BeginGuideFunc(ctx, guildID, userID)
	}
	return nil, nil
}

func (f *FakeWaifuWarService) AdvanceGuide(ctx context.Context, userID sharedtypes.DiscordID, event waifuwartypes.GuideEvent) (waifuwartypes.GuideStep, error) {
	f.record("AdvanceGuide")
	if f.AdvanceGuideFunc != nil {
		return f.AdvanceGuideFunc(ctx, userID, event)
	}
	return waifuwartypes.GuideStepNone, nil
}

// --- Accessors for assertions ---

func (f *FakeWaifuWarService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Ensure the fake actually satisfies the interface
var _ waifuwarservice.Service = (*FakeWaifuWarService)(nil)
