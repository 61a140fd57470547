package waifuwarhandlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

var notFoundTitles = map[string]string{
	"bracket":         "Bracket Does Not Exist",
	"entrant":         "Waifu Does Not Exist",
	"roster entry":    "Waifu Does Not Exist",
	"roster position": "Waifu Does Not Exist",
	"group":           "Anime Does Not Exist",
	"alias":           "Alias Does Not Exist",
}

// explain translates a domain error into the message shown to the user.
func (h *WaifuWarHandlers) explain(err error) (reply, bool) {
	var (
		notFound     *waifuwarservice.NotFoundError
		dupName      *waifuwarservice.DuplicateNameError
		multiple     *waifuwarservice.MultipleMatchesError
		notOpen      *waifuwarservice.BracketNotOpenError
		notPow2      *waifuwarservice.NotPowerOfTwoError
		anotherVote  *waifuwarservice.AnotherBracketVotableError
		outOfRange   *waifuwarservice.DivisionOutOfRangeError
		alreadyVoted *waifuwarservice.AlreadyVotedError
		wrongScope   *waifuwarservice.WrongScopeError
		notVotable   *waifuwarservice.BracketNotVotableError
		badStatus    *waifuwarservice.InvalidStatusError
		badSchedule  *waifuwarservice.InvalidScheduleError
		stale        *waifuwarservice.StaleCollapseError
		dupAlias     *waifuwarservice.DuplicateAliasError
	)

	switch {
	case errors.Is(err, waifuwarservice.ErrNoVotableBracket):
		return problem("No Voting Bracket Yet", "No brackets are marked as Votable. Wait for a bracket to be marked as votable."), true
	case errors.Is(err, waifuwarservice.ErrBracketComplete):
		return completeReply(), true
	case errors.Is(err, waifuwarservice.ErrNoAliases):
		return problem("No Aliases Specified", "An alias needs to be specified."), true
	case errors.Is(err, waifuwarservice.ErrEmptyName):
		return problem("Name Needed", "A name needs to be specified."), true
	case errors.Is(err, waifuwarservice.ErrSchedulingUnavailable):
		return problem("Scheduling Unavailable", "Collapses cannot be scheduled right now. Collapse the round manually instead."), true

	case errors.As(err, &notFound):
		title, ok := notFoundTitles[notFound.Kind]
		if !ok {
			title = "Not Found"
		}
		return problem(title, fmt.Sprintf("Nothing matched %q.", notFound.Key)), true

	case errors.As(err, &dupName):
		switch dupName.Kind {
		case "bracket":
			rp := problem("Bracket Exists", "The bracket already exists.")
			if dupName.ExistingID != 0 {
				rp.fields = append(rp.fields, field("Existing Bracket ID", dupName.ExistingID))
			}
			return rp, true
		case "roster entry":
			return problem("Waifu Already In Bracket", fmt.Sprintf("**%s** is already in the bracket.", dupName.Name)), true
		default:
			rp := problem("Waifu Exists", fmt.Sprintf("A waifu named **%s** already exists.", dupName.Name))
			if dupName.ExistingID != 0 {
				rp.fields = append(rp.fields, field("Global Waifu ID", dupName.ExistingID))
			}
			return rp, true
		}

	case errors.As(err, &multiple):
		lines := make([]string, len(multiple.Candidates))
		for i, c := range multiple.Candidates {
			lines[i] = fmt.Sprintf("**%d**: %s", c.ID, c.Name)
		}
		return problem("Duplicate Named Waifus",
			"There are multiple waifus with the same name. Use an ID instead of a name.",
			block("IDs", strings.Join(lines, "\n"))), true

	case errors.As(err, &notOpen):
		return problem("Bracket Not Open", fmt.Sprintf(
			"Bracket %d is %s. A bracket has to be open to change its waifus or start voting. Use %s to obtain a new open copy.",
			notOpen.BracketID, statusTitle(notOpen.Status), h.usage(fmt.Sprintf("bracket duplicate %d <name>", notOpen.BracketID)))), true

	case errors.As(err, &notPow2):
		return problem("Not a Power of Two",
			"A bracket must be a power of two before starting voting. Add or delete enough waifus to get the bracket to a power of two.",
			field("Waifus", notPow2.Size), field("Lower Power of Two", notPow2.Lower), field("Upper Power of Two", notPow2.Upper)), true

	case errors.As(err, &anotherVote):
		return problem("Another Bracket Already In Voting",
			"Another bracket is already going through a vote. Wait for that bracket to finish.",
			field("Votable Bracket ID", anotherVote.OtherID)), true

	case errors.As(err, &outOfRange):
		return problem("Division too high", fmt.Sprintf(
			"The specified division is outside the possible divisions. Use %s to see them.", h.usage("division list")),
			field("Highest Division", outOfRange.Highest), field("Requested Division", outOfRange.Requested)), true

	case errors.As(err, &alreadyVoted):
		rp := problem("Already Voted", "You have already voted for this division. Click the "+EmojiSkip+" to remove your existing vote.",
			field("Bracket Division", alreadyVoted.Division),
			field("Voted For", fmt.Sprintf("%s (Waifu ID **%d**)", alreadyVoted.Existing.Entrant.Name, alreadyVoted.Existing.Position)))
		rp.reactions = []string{EmojiSkip}
		rp.token = &Token{
			Kind:      TokenAlreadyVoted,
			BracketID: alreadyVoted.BracketID,
			Division:  alreadyVoted.Division,
			Position:  alreadyVoted.Existing.Position,
		}
		return rp, true

	case errors.As(err, &wrongScope):
		return problem("Can Only Vote on Brackets in the Guild",
			"This bracket was not made in the current guild. To ensure that brackets are fair, you cannot vote on brackets from other guilds."), true

	case errors.As(err, &notVotable):
		return problem("Bracket Not Votable", fmt.Sprintf("Bracket %d is %s.", notVotable.BracketID, statusTitle(notVotable.Status))), true

	case errors.As(err, &dupAlias):
		return problem("Alias Already Exists", fmt.Sprintf("**%s** is already an alias of **%s**.", dupAlias.Alias, dupAlias.Canonical)), true

	case errors.As(err, &stale):
		return problem("Round Already Collapsed", fmt.Sprintf("Bracket %d is no longer in voting.", stale.BracketID)), true

	case errors.As(err, &badStatus):
		names := make([]string, 0, len(waifuwartypes.ListableStatuses))
		for _, s := range waifuwartypes.ListableStatuses {
			names = append(names, fmt.Sprintf("%d (%s)", int(s), statusTitle(s)))
		}
		return problem("Invalid State", "The provided state was invalid.", block("Valid States", strings.Join(names, "\n"))), true

	case errors.As(err, &badSchedule):
		return problem("Invalid Time", fmt.Sprintf("Cannot schedule the collapse at %q: %s.", badSchedule.Input, badSchedule.Reason)), true
	}
	return reply{}, false
}

// respond answers a failed operation. Domain errors become user messages; any
// other error is logged, reported to the operator and acked.
func (h *WaifuWarHandlers) respond(ctx context.Context, req request, operation string, err error) []handlerwrapper.Result {
	if rp, ok := h.explain(err); ok {
		return req.send(rp)
	}
	return h.unexpected(ctx, req, operation, err)
}

func (h *WaifuWarHandlers) unexpected(ctx context.Context, req request, operation string, err error) []handlerwrapper.Result {
	h.logger.ErrorContext(ctx, "Unexpected error handling waifu war request",
		attr.ExtractCorrelationID(ctx),
		attr.GuildID(string(req.GuildID)),
		attr.UserID(string(req.UserID)),
		attr.String("operation", operation),
		attr.Error(err),
	)
	out := req.send(problem("Something Went Wrong", "The request could not be completed. The bot operator has been notified."))
	return append(out, handlerwrapper.Result{
		Topic: waifuwarevents.OperatorAlertV1,
		Payload: &waifuwarevents.OperatorAlertPayloadV1{
			GuildID:   req.GuildID,
			ChannelID: req.ChannelID,
			UserID:    req.UserID,
			Operation: operation,
			Error:     err.Error(),
		},
	})
}
