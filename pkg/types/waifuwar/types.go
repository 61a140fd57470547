// Package waifuwartypes defines the domain types of the bracket voting game
// shared by the service, its handlers and the event payloads.
package waifuwartypes

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
)

// BracketStatus is the lifecycle state of a bracket.
type BracketStatus int

const (
	// StatusAll is a pseudo status used only to list brackets in every state.
	StatusAll     BracketStatus = 0
	StatusOpen    BracketStatus = 1
	StatusVotable BracketStatus = 2
	StatusClosed  BracketStatus = 3
	StatusLocked  BracketStatus = 4
)

var statusNames = map[BracketStatus]string{
	StatusAll:     "ALL",
	StatusOpen:    "OPEN",
	StatusVotable: "VOTABLE",
	StatusClosed:  "CLOSED",
	StatusLocked:  "LOCKED",
}

// ListableStatuses are the values accepted when listing brackets, in display order.
var ListableStatuses = []BracketStatus{StatusAll, StatusOpen, StatusVotable, StatusClosed, StatusLocked}

func (s BracketStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("BracketStatus(%d)", int(s))
}

// Valid reports whether s is a real (storable) status.
func (s BracketStatus) Valid() bool {
	return s >= StatusOpen && s <= StatusLocked
}

// ParseBracketStatus accepts either the numeric value or the name (any case).
func ParseBracketStatus(raw string) (BracketStatus, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		s := BracketStatus(n)
		if _, ok := statusNames[s]; ok {
			return s, nil
		}
		return 0, fmt.Errorf("invalid bracket status %q", raw)
	}
	for s, name := range statusNames {
		if strings.EqualFold(name, raw) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("invalid bracket status %q", raw)
}

// Side is the half of a division an entrant occupies. It is stored as the
// vote choice: false for the left (odd) position, true for the right (even).
type Side bool

const (
	Left  Side = false
	Right Side = true
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Entrant is a catalog character.
type Entrant struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Group       string   `json:"group"`
	ImageRef    string   `json:"image_ref"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Bracket is one single-elimination tournament.
type Bracket struct {
	ID        int64               `json:"id"`
	Name      string              `json:"name"`
	Status    BracketStatus       `json:"status"`
	GuildID   sharedtypes.GuildID `json:"guild_id"`
	CreatedAt time.Time           `json:"created_at"`
}

// RosterSlot is an entrant at a position of a bracket's current roster.
type RosterSlot struct {
	Position int     `json:"position"`
	Entrant  Entrant `json:"entrant"`
}

// Division is one pairwise matchup with its current tally.
type Division struct {
	BracketID  int64      `json:"bracket_id"`
	Number     int        `json:"number"`
	Left       RosterSlot `json:"left"`
	Right      RosterSlot `json:"right"`
	LeftVotes  int        `json:"left_votes"`
	RightVotes int        `json:"right_votes"`
}

// Ballot is a recorded vote as seen by its voter.
type Ballot struct {
	Division int        `json:"division"`
	Side     Side       `json:"side"`
	Slot     RosterSlot `json:"slot"`
}

// VoteReceipt describes a vote that was cast or retracted.
type VoteReceipt struct {
	BracketID int64      `json:"bracket_id"`
	Division  int        `json:"division"`
	Side      Side       `json:"side"`
	Slot      RosterSlot `json:"slot"`
}

// DivisionOutcome is the resolved result of one division during a collapse.
type DivisionOutcome struct {
	Division    int        `json:"division"`
	Winner      RosterSlot `json:"winner"`
	Loser       RosterSlot `json:"loser"`
	WinnerVotes int        `json:"winner_votes"`
	LoserVotes  int        `json:"loser_votes"`
	WasTie      bool       `json:"was_tie"`
}

// ChampionAnnouncement is emitted when the final division is collapsed.
type ChampionAnnouncement struct {
	BracketID   int64  `json:"bracket_id"`
	BracketName string `json:"bracket_name"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Group       string `json:"group"`
	ImageRef    string `json:"image_ref"`
	Votes       int    `json:"votes"`
	WasTie      bool   `json:"was_tie"`
}

// CollapseResult is the outcome of collapsing a round. Exactly one of
// Champion and Next is set.
type CollapseResult struct {
	Closed    Bracket               `json:"closed"`
	Champion  *ChampionAnnouncement `json:"champion,omitempty"`
	Next      *Bracket              `json:"next,omitempty"`
	Divisions []DivisionOutcome     `json:"divisions"`
}

// EntrantVoters lists who voted for an entrant in its current division.
type EntrantVoters struct {
	Slot     RosterSlot              `json:"slot"`
	Division int                     `json:"division"`
	Voters   []sharedtypes.DiscordID `json:"voters"`
}

// GuideStep is a user's position in the voting guide. GuideStepNone means the
// user is not in the guide.
type GuideStep int

const (
	GuideStepNone GuideStep = iota
	// GuideStepSummon explains how to summon a division.
	GuideStepSummon
	// GuideStepVote explains the five voting reactions.
	GuideStepVote
	// GuideStepUndo explains continue and undo after a vote.
	GuideStepUndo
	// GuideStepContinue explains continuing after a retraction.
	GuideStepContinue
	// GuideStepDone explains resuming later; the session is cleared after it.
	GuideStepDone
)

// Active reports whether the step belongs to an in-progress guide.
func (s GuideStep) Active() bool {
	return s >= GuideStepSummon && s <= GuideStepContinue
}

// GuideEvent is a ledger or navigation event observed by the guide.
type GuideEvent int

const (
	GuideEventDivisionShown GuideEvent = iota + 1
	GuideEventVoteCast
	GuideEventVoteRetracted
)

func (e GuideEvent) String() string {
	switch e {
	case GuideEventDivisionShown:
		return "division_shown"
	case GuideEventVoteCast:
		return "vote_cast"
	case GuideEventVoteRetracted:
		return "vote_retracted"
	default:
		return fmt.Sprintf("GuideEvent(%d)", int(e))
	}
}

// BracketRoster is a bracket together with its current roster.
type BracketRoster struct {
	Bracket Bracket      `json:"bracket"`
	Slots   []RosterSlot `json:"slots"`
}

// GroupListing is a group label with its aliases and catalog members.
type GroupListing struct {
	Name     string    `json:"name"`
	Aliases  []string  `json:"aliases,omitempty"`
	Entrants []Entrant `json:"entrants"`
}

// AliasOutcome is the result of adding one alias. Err explains why an alias
// was not added.
type AliasOutcome struct {
	Alias     string `json:"alias"`
	Added     bool   `json:"added"`
	Canonical string `json:"canonical"`
	Err       error  `json:"-"`
}
