package waifuwarservice

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	waifuwarmetrics "github.com/Black-And-White-Club/waifu-bot/pkg/observability/metrics/waifuwar"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"
)

// ------------------------
// Fake Repo
// ------------------------

// FakeRepo is an in-memory Repository. Each XxxFunc, when set, replaces the
// in-memory behavior of its method so tests can inject failures.
type FakeRepo struct {
	mu    sync.Mutex
	trace []string

	entrants      []waifuwardb.Entrant
	aliases       map[string]string
	brackets      map[int64]*waifuwardb.Bracket
	roster        map[int64][]string
	votes         []waifuwardb.Vote
	nextEntrantID int64
	nextBracketID int64
	nextVoteID    int64

	CreateEntrantFunc       func(ctx context.Context, entrant *waifuwardb.Entrant) error
	GetBracketFunc          func(ctx context.Context, id int64) (*waifuwardb.Bracket, error)
	UpdateBracketStatusFunc func(ctx context.Context, id int64, status waifuwartypes.BracketStatus) error
	InsertVoteFunc          func(ctx context.Context, vote *waifuwardb.Vote) error
	TallyBracketFunc        func(ctx context.Context, bracketID int64) (map[int]waifuwardb.Tally, error)
	ListUserVotesFunc       func(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) ([]waifuwardb.Vote, error)
}

var _ waifuwardb.Repository = (*FakeRepo)(nil)

// NewFakeRepo creates an empty in-memory repository.
func NewFakeRepo() *FakeRepo {
	return &FakeRepo{
		trace:    []string{},
		aliases:  map[string]string{},
		brackets: map[int64]*waifuwardb.Bracket{},
		roster:   map[int64][]string{},
	}
}

// record appends a trace entry
func (f *FakeRepo) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the methods called so far, in order.
func (f *FakeRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *FakeRepo) entrantByName(name string) (waifuwardb.Entrant, bool) {
	for _, e := range f.entrants {
		if e.Name == name {
			return e, true
		}
	}
	return waifuwardb.Entrant{}, false
}

func (f *FakeRepo) aliasMatches(pattern string, fold bool) map[string]struct{} {
	names := map[string]struct{}{}
	for alias, name := range f.aliases {
		a, p, n := alias, pattern, name
		if fold {
			a, p, n = strings.ToLower(a), strings.ToLower(p), strings.ToLower(n)
		}
		if strings.Contains(a, p) {
			names[n] = struct{}{}
		}
	}
	return names
}

func (f *FakeRepo) rosterEntry(bracketID int64, position int) waifuwardb.RosterEntry {
	name := f.roster[bracketID][position-1]
	entry := waifuwardb.RosterEntry{BracketID: bracketID, Position: position, Name: name}
	if e, ok := f.entrantByName(name); ok {
		entry.Entrant = &e
	}
	return entry
}

// --- Catalog ---

func (f *FakeRepo) CreateEntrant(ctx context.Context, _ bun.IDB, entrant *waifuwardb.Entrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateEntrant")
	if f.CreateEntrantFunc != nil {
		return f.CreateEntrantFunc(ctx, entrant)
	}
	if _, ok := f.entrantByName(entrant.Name); ok {
		return waifuwardb.ErrDuplicate
	}
	f.nextEntrantID++
	entrant.ID = f.nextEntrantID
	entrant.CreatedAt = time.Now()
	f.entrants = append(f.entrants, *entrant)
	return nil
}

func (f *FakeRepo) GetEntrantByID(_ context.Context, _ bun.IDB, id int64) (*waifuwardb.Entrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetEntrantByID")
	for _, e := range f.entrants {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, waifuwardb.ErrNotFound
}

func (f *FakeRepo) GetEntrantByName(_ context.Context, _ bun.IDB, name string) (*waifuwardb.Entrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetEntrantByName")
	if e, ok := f.entrantByName(name); ok {
		return &e, nil
	}
	return nil, waifuwardb.ErrNotFound
}

func (f *FakeRepo) SearchEntrants(_ context.Context, _ bun.IDB, pattern string) ([]waifuwardb.Entrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SearchEntrants")
	viaAlias := f.aliasMatches(pattern, false)
	var out []waifuwardb.Entrant
	for _, e := range f.entrants {
		_, aliased := viaAlias[e.Name]
		if strings.Contains(e.Name, pattern) || aliased {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *FakeRepo) ListEntrants(_ context.Context, _ bun.IDB) ([]waifuwardb.Entrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListEntrants")
	return append([]waifuwardb.Entrant(nil), f.entrants...), nil
}

func (f *FakeRepo) ListGroups(_ context.Context, _ bun.IDB, bracketID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListGroups")
	include := func(waifuwardb.Entrant) bool { return true }
	if bracketID != 0 {
		names := map[string]struct{}{}
		for _, n := range f.roster[bracketID] {
			names[n] = struct{}{}
		}
		include = func(e waifuwardb.Entrant) bool {
			_, ok := names[e.Name]
			return ok
		}
	}
	return f.distinctGroups(include), nil
}

func (f *FakeRepo) distinctGroups(include func(waifuwardb.Entrant) bool) []string {
	byKey := map[string]string{}
	for _, e := range f.entrants {
		if !include(e) {
			continue
		}
		key := strings.ToLower(e.Group)
		if existing, ok := byKey[key]; !ok || e.Group < existing {
			byKey[key] = e.Group
		}
	}
	groups := make([]string, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return strings.ToLower(groups[i]) < strings.ToLower(groups[j]) })
	return groups
}

func (f *FakeRepo) SearchGroups(_ context.Context, _ bun.IDB, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SearchGroups")
	viaAlias := f.aliasMatches(pattern, true)
	lower := strings.ToLower(pattern)
	return f.distinctGroups(func(e waifuwardb.Entrant) bool {
		_, aliased := viaAlias[strings.ToLower(e.Group)]
		return strings.Contains(strings.ToLower(e.Group), lower) || aliased
	}), nil
}

func (f *FakeRepo) ListEntrantsByGroup(_ context.Context, _ bun.IDB, group string) ([]waifuwardb.Entrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListEntrantsByGroup")
	var out []waifuwardb.Entrant
	for _, e := range f.entrants {
		if strings.EqualFold(e.Group, group) {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- Aliases ---

func (f *FakeRepo) CreateAlias(_ context.Context, _ bun.IDB, alias *waifuwardb.Alias) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateAlias")
	if _, ok := f.aliases[alias.Alias]; ok {
		return waifuwardb.ErrDuplicate
	}
	f.aliases[alias.Alias] = alias.Name
	return nil
}

func (f *FakeRepo) GetAlias(_ context.Context, _ bun.IDB, alias string) (*waifuwardb.Alias, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetAlias")
	name, ok := f.aliases[alias]
	if !ok {
		return nil, waifuwardb.ErrNotFound
	}
	return &waifuwardb.Alias{Alias: alias, Name: name}, nil
}

func (f *FakeRepo) ListAliasesFor(_ context.Context, _ bun.IDB, name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListAliasesFor")
	var out []string
	for alias, canonical := range f.aliases {
		if canonical == name {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- Brackets ---

func (f *FakeRepo) votableConflict(id int64, guildID sharedtypes.GuildID) bool {
	for _, b := range f.brackets {
		if b.ID != id && b.GuildID == guildID && b.Status == waifuwartypes.StatusVotable {
			return true
		}
	}
	return false
}

func (f *FakeRepo) CreateBracket(_ context.Context, _ bun.IDB, bracket *waifuwardb.Bracket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateBracket")
	for _, b := range f.brackets {
		if b.Name == bracket.Name {
			return waifuwardb.ErrDuplicate
		}
	}
	if bracket.Status == waifuwartypes.StatusVotable && f.votableConflict(0, bracket.GuildID) {
		return waifuwardb.ErrDuplicate
	}
	f.nextBracketID++
	bracket.ID = f.nextBracketID
	bracket.CreatedAt = time.Now()
	bracket.UpdatedAt = bracket.CreatedAt
	stored := *bracket
	f.brackets[bracket.ID] = &stored
	return nil
}

func (f *FakeRepo) GetBracket(ctx context.Context, _ bun.IDB, id int64) (*waifuwardb.Bracket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetBracket")
	return f.getBracket(ctx, id)
}

func (f *FakeRepo) GetBracketForUpdate(ctx context.Context, _ bun.IDB, id int64) (*waifuwardb.Bracket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetBracketForUpdate")
	return f.getBracket(ctx, id)
}

func (f *FakeRepo) getBracket(ctx context.Context, id int64) (*waifuwardb.Bracket, error) {
	if f.GetBracketFunc != nil {
		return f.GetBracketFunc(ctx, id)
	}
	b, ok := f.brackets[id]
	if !ok {
		return nil, waifuwardb.ErrNotFound
	}
	out := *b
	return &out, nil
}

func (f *FakeRepo) GetBracketByName(_ context.Context, _ bun.IDB, name string) (*waifuwardb.Bracket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetBracketByName")
	for _, b := range f.brackets {
		if b.Name == name {
			out := *b
			return &out, nil
		}
	}
	return nil, waifuwardb.ErrNotFound
}

func (f *FakeRepo) UpdateBracketStatus(ctx context.Context, _ bun.IDB, id int64, status waifuwartypes.BracketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateBracketStatus")
	if f.UpdateBracketStatusFunc != nil {
		return f.UpdateBracketStatusFunc(ctx, id, status)
	}
	b, ok := f.brackets[id]
	if !ok {
		return waifuwardb.ErrNotFound
	}
	if status == waifuwartypes.StatusVotable && f.votableConflict(id, b.GuildID) {
		return waifuwardb.ErrDuplicate
	}
	b.Status = status
	return nil
}

func (f *FakeRepo) FindVotableBracket(_ context.Context, _ bun.IDB, guildID sharedtypes.GuildID) (*waifuwardb.Bracket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FindVotableBracket")
	for _, b := range f.brackets {
		if b.GuildID == guildID && b.Status == waifuwartypes.StatusVotable {
			out := *b
			return &out, nil
		}
	}
	return nil, waifuwardb.ErrNotFound
}

func (f *FakeRepo) ListBrackets(_ context.Context, _ bun.IDB, guildID sharedtypes.GuildID, status waifuwartypes.BracketStatus) ([]waifuwardb.Bracket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListBrackets")
	var out []waifuwardb.Bracket
	for _, b := range f.brackets {
		if b.GuildID == guildID && (status == waifuwartypes.StatusAll || b.Status == status) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Roster ---

func (f *FakeRepo) ListRoster(_ context.Context, _ bun.IDB, bracketID int64) ([]waifuwardb.RosterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListRoster")
	out := make([]waifuwardb.RosterEntry, len(f.roster[bracketID]))
	for i := range out {
		out[i] = f.rosterEntry(bracketID, i+1)
	}
	return out, nil
}

func (f *FakeRepo) CountRoster(_ context.Context, _ bun.IDB, bracketID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountRoster")
	return len(f.roster[bracketID]), nil
}

func (f *FakeRepo) GetRosterEntries(_ context.Context, _ bun.IDB, bracketID int64, positions ...int) ([]waifuwardb.RosterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetRosterEntries")
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	var out []waifuwardb.RosterEntry
	for i, p := range sorted {
		if i > 0 && sorted[i-1] == p {
			continue
		}
		if p >= 1 && p <= len(f.roster[bracketID]) {
			out = append(out, f.rosterEntry(bracketID, p))
		}
	}
	return out, nil
}

func (f *FakeRepo) SearchRoster(_ context.Context, _ bun.IDB, bracketID int64, pattern string) ([]waifuwardb.RosterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SearchRoster")
	viaAlias := f.aliasMatches(pattern, false)
	var out []waifuwardb.RosterEntry
	for i, name := range f.roster[bracketID] {
		_, aliased := viaAlias[name]
		if strings.Contains(name, pattern) || aliased {
			out = append(out, f.rosterEntry(bracketID, i+1))
		}
	}
	return out, nil
}

func (f *FakeRepo) AppendRosterEntry(_ context.Context, _ bun.IDB, bracketID int64, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AppendRosterEntry")
	for _, n := range f.roster[bracketID] {
		if n == name {
			return 0, waifuwardb.ErrDuplicate
		}
	}
	if _, ok := f.entrantByName(name); !ok {
		return 0, waifuwardb.ErrNotFound
	}
	f.roster[bracketID] = append(f.roster[bracketID], name)
	return len(f.roster[bracketID]), nil
}

func (f *FakeRepo) DeleteRosterEntry(_ context.Context, _ bun.IDB, bracketID int64, position int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteRosterEntry")
	names := f.roster[bracketID]
	if position < 1 || position > len(names) {
		return waifuwardb.ErrNotFound
	}
	f.roster[bracketID] = append(names[:position-1:position-1], names[position:]...)
	return nil
}

func (f *FakeRepo) ReplaceRoster(_ context.Context, _ bun.IDB, bracketID int64, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReplaceRoster")
	f.roster[bracketID] = append([]string(nil), names...)
	return nil
}

// SetRoster seeds a bracket's roster directly.
func (f *FakeRepo) SetRoster(bracketID int64, names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roster[bracketID] = append([]string(nil), names...)
}

// RosterNames returns a bracket's roster in position order.
func (f *FakeRepo) RosterNames(bracketID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.roster[bracketID]...)
}

// BracketStatus returns the stored status of a bracket.
func (f *FakeRepo) BracketStatus(bracketID int64) waifuwartypes.BracketStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.brackets[bracketID]; ok {
		return b.Status
	}
	return waifuwartypes.StatusAll
}

// --- Votes ---

func (f *FakeRepo) InsertVote(ctx context.Context, _ bun.IDB, vote *waifuwardb.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertVote")
	if f.InsertVoteFunc != nil {
		return f.InsertVoteFunc(ctx, vote)
	}
	for _, v := range f.votes {
		if v.UserID == vote.UserID && v.BracketID == vote.BracketID && v.Division == vote.Division {
			return waifuwardb.ErrDuplicate
		}
	}
	f.nextVoteID++
	vote.ID = f.nextVoteID
	f.votes = append(f.votes, *vote)
	return nil
}

func (f *FakeRepo) GetVote(_ context.Context, _ bun.IDB, userID sharedtypes.DiscordID, bracketID int64, division int) (*waifuwardb.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetVote")
	for _, v := range f.votes {
		if v.UserID == userID && v.BracketID == bracketID && v.Division == division {
			return &v, nil
		}
	}
	return nil, waifuwardb.ErrNotFound
}

func (f *FakeRepo) removeVotes(keep func(waifuwardb.Vote) bool) int64 {
	var removed int64
	kept := f.votes[:0]
	for _, v := range f.votes {
		if keep(v) {
			kept = append(kept, v)
		} else {
			removed++
		}
	}
	f.votes = kept
	return removed
}

func (f *FakeRepo) DeleteVote(_ context.Context, _ bun.IDB, userID sharedtypes.DiscordID, bracketID int64, division int, choice bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteVote")
	return f.removeVotes(func(v waifuwardb.Vote) bool {
		return !(v.UserID == userID && v.BracketID == bracketID && v.Division == division && v.Choice == choice)
	}), nil
}

func (f *FakeRepo) DeleteDivisionVote(_ context.Context, _ bun.IDB, userID sharedtypes.DiscordID, bracketID int64, division int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteDivisionVote")
	f.removeVotes(func(v waifuwardb.Vote) bool {
		return !(v.UserID == userID && v.BracketID == bracketID && v.Division == division)
	})
	return nil
}

func (f *FakeRepo) DeleteBracketVotes(_ context.Context, _ bun.IDB, bracketID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteBracketVotes")
	return f.removeVotes(func(v waifuwardb.Vote) bool { return v.BracketID != bracketID }), nil
}

func (f *FakeRepo) tally(bracketID int64) map[int]waifuwardb.Tally {
	out := map[int]waifuwardb.Tally{}
	for _, v := range f.votes {
		if v.BracketID != bracketID {
			continue
		}
		t := out[v.Division]
		t.Division = v.Division
		if v.Choice {
			t.Right++
		} else {
			t.Left++
		}
		out[v.Division] = t
	}
	return out
}

func (f *FakeRepo) TallyDivision(_ context.Context, _ bun.IDB, bracketID int64, division int) (waifuwardb.Tally, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TallyDivision")
	t := f.tally(bracketID)[division]
	t.Division = division
	return t, nil
}

func (f *FakeRepo) TallyBracket(ctx context.Context, _ bun.IDB, bracketID int64) (map[int]waifuwardb.Tally, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TallyBracket")
	if f.TallyBracketFunc != nil {
		return f.TallyBracketFunc(ctx, bracketID)
	}
	return f.tally(bracketID), nil
}

func (f *FakeRepo) ListUserVotes(ctx context.Context, _ bun.IDB, bracketID int64, userID sharedtypes.DiscordID) ([]waifuwardb.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListUserVotes")
	if f.ListUserVotesFunc != nil {
		return f.ListUserVotesFunc(ctx, bracketID, userID)
	}
	var out []waifuwardb.Vote
	for _, v := range f.votes {
		if v.BracketID == bracketID && v.UserID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Division < out[j].Division })
	return out, nil
}

func (f *FakeRepo) CountUserVotes(_ context.Context, _ bun.IDB, bracketID int64, userID sharedtypes.DiscordID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountUserVotes")
	n := 0
	for _, v := range f.votes {
		if v.BracketID == bracketID && v.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *FakeRepo) ListVoters(_ context.Context, _ bun.IDB, bracketID int64, division int, choice bool) ([]sharedtypes.DiscordID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListVoters")
	var out []sharedtypes.DiscordID
	for _, v := range f.votes {
		if v.BracketID == bracketID && v.Division == division && v.Choice == choice {
			out = append(out, v.UserID)
		}
	}
	return out, nil
}

// VoteCount returns the number of stored ballots of a bracket.
func (f *FakeRepo) VoteCount(bracketID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.votes {
		if v.BracketID == bracketID {
			n++
		}
	}
	return n
}

// ------------------------
// Fake Session Store
// ------------------------

type FakeSessions struct {
	mu    sync.Mutex
	steps map[sharedtypes.DiscordID]waifuwartypes.GuideStep

	GetFunc func(ctx context.Context, userID sharedtypes.DiscordID) (waifuwartypes.GuideStep, error)
}

func NewFakeSessions() *FakeSessions {
	return &FakeSessions{steps: map[sharedtypes.DiscordID]waifuwartypes.GuideStep{}}
}

func (f *FakeSessions) Get(ctx context.Context, userID sharedtypes.DiscordID) (waifuwartypes.GuideStep, error) {
	if f.GetFunc != nil {
		return f.GetFunc(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.steps[userID], nil
}

func (f *FakeSessions) Set(_ context.Context, userID sharedtypes.DiscordID, step waifuwartypes.GuideStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[userID] = step
	return nil
}

func (f *FakeSessions) Clear(_ context.Context, userID sharedtypes.DiscordID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.steps, userID)
	return nil
}

func (f *FakeSessions) Snapshot(context.Context) (map[sharedtypes.DiscordID]waifuwartypes.GuideStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[sharedtypes.DiscordID]waifuwartypes.GuideStep, len(f.steps))
	for k, v := range f.steps {
		out[k] = v
	}
	return out, nil
}

func (f *FakeSessions) Restore(_ context.Context, steps map[sharedtypes.DiscordID]waifuwartypes.GuideStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range steps {
		f.steps[k] = v
	}
	return nil
}

// ------------------------
// Fake Scheduler
// ------------------------

type FakeScheduler struct {
	calls []scheduledCall

	ScheduleCollapseFunc func(ctx context.Context, payload waifuwarevents.RoundCollapseRequestedPayloadV1, at time.Time) error
}

type scheduledCall struct {
	Payload waifuwarevents.RoundCollapseRequestedPayloadV1
	At      time.Time
}

func (f *FakeScheduler) ScheduleCollapse(ctx context.Context, payload waifuwarevents.RoundCollapseRequestedPayloadV1, at time.Time) error {
	f.calls = append(f.calls, scheduledCall{Payload: payload, At: at})
	if f.ScheduleCollapseFunc != nil {
		return f.ScheduleCollapseFunc(ctx, payload, at)
	}
	return nil
}

// ------------------------
// Deterministic Randomizer
// ------------------------

// stubRandomizer leaves shuffles as the identity unless ShuffleFunc is set and
// answers coin flips from Coins in order, defaulting to false (left).
type stubRandomizer struct {
	ShuffleFunc func(n int, swap func(i, j int))
	Coins       []bool
	flips       int
}

func (r *stubRandomizer) Shuffle(n int, swap func(i, j int)) {
	if r.ShuffleFunc != nil {
		r.ShuffleFunc(n, swap)
	}
}

func (r *stubRandomizer) Coin() bool {
	defer func() { r.flips++ }()
	if r.flips < len(r.Coins) {
		return r.Coins[r.flips]
	}
	return false
}

// reverseShuffle is a visible, deterministic permutation.
func reverseShuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

// ------------------------
// Service Harness
// ------------------------

type testHarness struct {
	svc      *WaifuWarService
	repo     *FakeRepo
	sessions *FakeSessions
	rng      *stubRandomizer
}

func newHarness(opts ...Option) *testHarness {
	h := &testHarness{
		repo:     NewFakeRepo(),
		sessions: NewFakeSessions(),
		rng:      &stubRandomizer{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	all := append([]Option{WithRandomizer(h.rng)}, opts...)
	h.svc = NewWaifuWarService(
		h.repo,
		h.sessions,
		logger,
		waifuwarmetrics.NewNoop(),
		noop.NewTracerProvider().Tracer("test"),
		nil,
		all...,
	)
	return h
}
