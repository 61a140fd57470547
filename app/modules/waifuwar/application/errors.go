package waifuwarservice

import (
	"errors"
	"fmt"
	"strings"

	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

// Domain failures. Handlers translate every one of them into a user-facing
// message and ack; anything else is an infrastructure error.
var (
	// ErrBracketComplete is not a fault: it is returned when the caller asks for
	// the division one past the last, meaning the user has been through them all.
	ErrBracketComplete = errors.New("bracket complete")

	// ErrNoVotableBracket means the guild has no bracket in voting.
	ErrNoVotableBracket = errors.New("no bracket is open for voting")

	// ErrNoAliases means an alias command carried no aliases.
	ErrNoAliases = errors.New("no aliases specified")

	// ErrEmptyName rejects blank names for entrants, brackets and searches.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrSchedulingUnavailable means no collapse scheduler is configured.
	ErrSchedulingUnavailable = errors.New("collapse scheduling is not available")
)

// NotFoundError reports a missing bracket, entrant, roster entry, alias or group.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// DuplicateNameError reports a name that is already taken. ExistingID is set
// when the existing row could be identified.
type DuplicateNameError struct {
	Kind       string
	Name       string
	ExistingID int64
}

func (e *DuplicateNameError) Error() string {
	if e.ExistingID != 0 {
		return fmt.Sprintf("%s %q already exists with id %d", e.Kind, e.Name, e.ExistingID)
	}
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

// DuplicateAliasError reports an alias that already points at Canonical.
type DuplicateAliasError struct {
	Alias     string
	Canonical string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("alias %q already exists for %q", e.Alias, e.Canonical)
}

// Candidate is one of several matches of an ambiguous search. ID is the
// catalog id, or the roster position for bracket-local searches.
type Candidate struct {
	ID   int64
	Name string
}

// MultipleMatchesError reports an ambiguous search.
type MultipleMatchesError struct {
	Query      string
	Candidates []Candidate
}

func (e *MultipleMatchesError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = c.Name
	}
	return fmt.Sprintf("%q matches %d entries: %s", e.Query, len(e.Candidates), strings.Join(names, ", "))
}

// BracketNotOpenError rejects roster edits and activation outside OPEN.
type BracketNotOpenError struct {
	BracketID int64
	Status    waifuwartypes.BracketStatus
}

func (e *BracketNotOpenError) Error() string {
	return fmt.Sprintf("bracket %d is %s, not OPEN", e.BracketID, e.Status)
}

// NotPowerOfTwoError rejects activation of a roster whose size is not a power
// of two. Lower and Upper are the nearest valid sizes around Size.
type NotPowerOfTwoError struct {
	Size  int
	Lower int
	Upper int
}

func (e *NotPowerOfTwoError) Error() string {
	return fmt.Sprintf("roster size %d is not a power of two (nearest: %d or %d)", e.Size, e.Lower, e.Upper)
}

// AnotherBracketVotableError rejects activation while another bracket of the
// same guild is in voting.
type AnotherBracketVotableError struct {
	BracketID int64
	OtherID   int64
}

func (e *AnotherBracketVotableError) Error() string {
	return fmt.Sprintf("bracket %d cannot start voting: bracket %d is already votable", e.BracketID, e.OtherID)
}

// DivisionOutOfRangeError reports a division outside 1..Highest.
type DivisionOutOfRangeError struct {
	Requested int
	Highest   int
}

func (e *DivisionOutOfRangeError) Error() string {
	return fmt.Sprintf("division %d is out of range 1..%d", e.Requested, e.Highest)
}

// AlreadyVotedError carries the ballot the user already cast in the division.
type AlreadyVotedError struct {
	BracketID      int64
	Division       int
	ExistingChoice waifuwartypes.Side
	Existing       waifuwartypes.RosterSlot
	Attempted      waifuwartypes.RosterSlot
}

func (e *AlreadyVotedError) Error() string {
	return fmt.Sprintf("already voted %s (%s) in division %d", e.ExistingChoice, e.Existing.Entrant.Name, e.Division)
}

// WrongScopeError rejects ballots on a bracket owned by another guild.
type WrongScopeError struct {
	BracketID    int64
	BracketGuild sharedtypes.GuildID
	CallerGuild  sharedtypes.GuildID
}

func (e *WrongScopeError) Error() string {
	return fmt.Sprintf("bracket %d belongs to guild %s, not %s", e.BracketID, e.BracketGuild, e.CallerGuild)
}

// BracketNotVotableError rejects ballots on a bracket that is not in voting.
type BracketNotVotableError struct {
	BracketID int64
	Status    waifuwartypes.BracketStatus
}

func (e *BracketNotVotableError) Error() string {
	return fmt.Sprintf("bracket %d is %s, not VOTABLE", e.BracketID, e.Status)
}

// StaleCollapseError rejects a collapse pinned to a bracket that is no longer
// the votable one. VotableID is zero when nothing is votable.
type StaleCollapseError struct {
	BracketID int64
	VotableID int64
}

func (e *StaleCollapseError) Error() string {
	if e.VotableID == 0 {
		return fmt.Sprintf("bracket %d is no longer votable", e.BracketID)
	}
	return fmt.Sprintf("bracket %d is no longer votable: bracket %d is", e.BracketID, e.VotableID)
}

// InvalidStatusError rejects an unknown bracket status.
type InvalidStatusError struct {
	Raw string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid bracket status %q", e.Raw)
}

// InvalidScheduleError rejects a collapse time that cannot be parsed or is not in the future.
type InvalidScheduleError struct {
	Input  string
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("cannot schedule collapse at %q: %s", e.Input, e.Reason)
}

// IsDomainError reports whether err is one of the failures above, as opposed
// to an infrastructure error.
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range []error{ErrBracketComplete, ErrNoVotableBracket, ErrNoAliases, ErrEmptyName, ErrSchedulingUnavailable} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	var (
		notFound     *NotFoundError
		dupName      *DuplicateNameError
		multiple     *MultipleMatchesError
		notOpen      *BracketNotOpenError
		notPow2      *NotPowerOfTwoError
		anotherVote  *AnotherBracketVotableError
		outOfRange   *DivisionOutOfRangeError
		alreadyVoted *AlreadyVotedError
		wrongScope   *WrongScopeError
		notVotable   *BracketNotVotableError
		badStatus    *InvalidStatusError
		badSchedule  *InvalidScheduleError
		stale        *StaleCollapseError
		dupAlias     *DuplicateAliasError
	)
	return errors.As(err, &notFound) || errors.As(err, &dupName) ||
		errors.As(err, &multiple) || errors.As(err, &notOpen) || errors.As(err, &notPow2) ||
		errors.As(err, &anotherVote) || errors.As(err, &outOfRange) || errors.As(err, &alreadyVoted) ||
		errors.As(err, &wrongScope) || errors.As(err, &notVotable) || errors.As(err, &badStatus) ||
		errors.As(err, &badSchedule) || errors.As(err, &stale) ||
		errors.As(err, &dupAlias)
}
