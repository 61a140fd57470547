package waifuwarhandlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Black-And-White-Club/waifu-bot/pkg/embedpager"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

// showDivision renders division d of a bracket. When offerGuide is set and the
// user has never voted, the first division is replaced by the guide prompt.
func (h *WaifuWarHandlers) showDivision(ctx context.Context, req request, bracketID int64, d int, offerGuide bool) ([]reply, error) {
	if offerGuide && d == 1 {
		offer, err := h.service.ShouldOfferGuide(ctx, bracketID, req.UserID)
		if err != nil {
			return nil, err
		}
		if offer {
			return []reply{startGuideReply(bracketID, d)}, nil
		}
	}

	division, err := h.service.GetDivision(ctx, bracketID, d)
	if err != nil {
		return nil, err
	}
	return append([]reply{divisionReply(division)}, h.advanceGuide(ctx, req, waifuwartypes.GuideEventDivisionShown)...), nil
}

// advanceGuide returns the guide explanation the event unlocks, if any. A
// guide failure never fails the request it explains.
func (h *WaifuWarHandlers) advanceGuide(ctx context.Context, req request, event waifuwartypes.GuideEvent) []reply {
	step, err := h.service.AdvanceGuide(ctx, req.UserID, event)
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to advance guide",
			attr.ExtractCorrelationID(ctx),
			attr.UserID(string(req.UserID)),
			attr.String("event", event.String()),
			attr.Error(err),
		)
		return nil
	}
	if rp, ok := h.guideReply(step); ok {
		return []reply{rp}
	}
	return nil
}

func (h *WaifuWarHandlers) showDivisionCommand(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	const usage = "division show [bracket id] <division>"
	var (
		bracketID int64
		raw       string
		err       error
	)
	switch len(cmd.args) {
	case 1:
		raw = cmd.args[0]
		b, err := h.service.FindVotable(ctx, cmd.GuildID)
		if err != nil {
			return nil, err
		}
		bracketID = b.ID
	case 2:
		if bracketID, err = parseID(cmd.args[0], usage); err != nil {
			return nil, err
		}
		raw = cmd.args[1]
	default:
		return nil, &usageError{usage: usage}
	}
	d, err := parseNumber(raw, usage)
	if err != nil {
		return nil, err
	}
	replies, err := h.showDivision(ctx, cmd.request, bracketID, d, true)
	if err != nil {
		return nil, err
	}
	return cmd.send(replies...), nil
}

func (h *WaifuWarHandlers) listDivisions(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	id, err := h.bracketArg(ctx, cmd, 0, "division list [bracket id]")
	if err != nil {
		return nil, err
	}
	divisions, err := h.service.ListDivisions(ctx, id)
	if err != nil {
		return nil, err
	}
	rp := notice("Divisions", fmt.Sprintf("The divisions of bracket %d.", id))
	rp.fields = []embedpager.Field{block("Divisions", orNone(divisionLines(divisions)))}
	return cmd.send(rp), nil
}

func divisionLines(divisions []waifuwartypes.Division) string {
	lines := make([]string, len(divisions))
	for i, d := range divisions {
		lines[i] = fmt.Sprintf("Division **%d**: %s (Waifu ID **%d**) ***v.*** %s (Waifu ID **%d**)",
			d.Number, contender(d.Left.Entrant), d.Left.Position, contender(d.Right.Entrant), d.Right.Position)
	}
	return strings.Join(lines, "\n")
}

func (h *WaifuWarHandlers) castVote(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	target := cmd.rest(0)
	if target == "" {
		return nil, &usageError{usage: "vote cast <waifu>"}
	}
	receipt, err := h.service.CastVote(ctx, cmd.GuildID, cmd.UserID, target)
	if err != nil {
		return nil, err
	}
	return cmd.send(h.voted(ctx, cmd.request, receipt)...), nil
}

func (h *WaifuWarHandlers) voted(ctx context.Context, req request, receipt *waifuwartypes.VoteReceipt) []reply {
	return append([]reply{votedReply(receipt)}, h.advanceGuide(ctx, req, waifuwartypes.GuideEventVoteCast)...)
}

func (h *WaifuWarHandlers) retractVote(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	target := cmd.rest(0)
	if target == "" {
		return nil, &usageError{usage: "vote retract <waifu>"}
	}
	receipt, err := h.service.RetractVote(ctx, cmd.GuildID, cmd.UserID, target)
	if err != nil {
		return nil, err
	}
	return cmd.send(h.retracted(ctx, cmd.request, receipt)...), nil
}

func (h *WaifuWarHandlers) retracted(ctx context.Context, req request, receipt *waifuwartypes.VoteReceipt) []reply {
	return append([]reply{voteRemovedReply(receipt)}, h.advanceGuide(ctx, req, waifuwartypes.GuideEventVoteRetracted)...)
}

// showVotes lists a mentioned user's ballots, or the voters of a waifu.
func (h *WaifuWarHandlers) showVotes(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	b, err := h.service.FindVotable(ctx, cmd.GuildID)
	if err != nil {
		return nil, err
	}

	if cmd.mention != nil {
		ballots, err := h.service.UserVotes(ctx, b.ID, *cmd.mention)
		if err != nil {
			return nil, err
		}
		lines := make([]string, len(ballots))
		for i, bl := range ballots {
			lines[i] = fmt.Sprintf("Division **%d**: %s (Waifu ID **%d**)", bl.Division, contender(bl.Slot.Entrant), bl.Slot.Position)
		}
		rp := notice("Votes", "These are the votes of a specific user.")
		rp.fields = []embedpager.Field{field("User", mention(*cmd.mention)), field("Waifu Bracket", b.ID), block("Votes", orNone(strings.Join(lines, "\n")))}
		return cmd.send(rp), nil
	}

	target := cmd.rest(0)
	if target == "" {
		return nil, &usageError{usage: "vote show <@user|waifu>"}
	}
	voters, err := h.service.Voters(ctx, b.ID, target)
	if err != nil {
		return nil, err
	}
	mentions := make([]string, len(voters.Voters))
	for i, v := range voters.Voters {
		mentions[i] = mention(v)
	}
	rp := notice("Votes", "These are the people who voted for a specific character.")
	rp.fields = []embedpager.Field{
		field("Waifu Bracket", b.ID),
		field("Bracket Division", voters.Division),
		field("Waifu ID", voters.Slot.Position),
		field("Waifu Name", voters.Slot.Entrant.Name),
		block("Voters", orNone(strings.Join(mentions, "\n"))),
	}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) lastDivision(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	b, err := h.service.FindVotable(ctx, cmd.GuildID)
	if err != nil {
		return nil, err
	}
	d, err := h.service.LastDivision(ctx, b.ID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if d == 0 {
		rp := problem("Never Participated", "You have never participated in the waifu war. Click the emoji below to get started on the guide.")
		rp.reactions = []string{EmojiContinue}
		rp.token = &Token{Kind: TokenNeverParticipated, BracketID: b.ID}
		return cmd.send(rp), nil
	}
	rp := notice("Previous Division", "")
	rp.fields = []embedpager.Field{field("Waifu Bracket", b.ID), field("Waifu Division", d)}
	rp.reactions = []string{EmojiContinue}
	rp.token = &Token{Kind: TokenPreviousDivision, BracketID: b.ID, Division: d}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) missingDivisions(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	user := cmd.UserID
	if cmd.mention != nil {
		user = *cmd.mention
	}
	b, err := h.service.FindVotable(ctx, cmd.GuildID)
	if err != nil {
		return nil, err
	}
	missing, err := h.service.MissingDivisions(ctx, b.ID, user)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		rp := success("No Missed Divisions", "The given user has voted in all divisions.")
		rp.fields = []embedpager.Field{field("User", mention(user)), field("Waifu Bracket", b.ID)}
		return cmd.send(rp), nil
	}

	divisions, err := h.service.ListDivisions(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	wanted := make(map[int]bool, len(missing))
	for _, d := range missing {
		wanted[d] = true
	}
	var missed []waifuwartypes.Division
	for _, d := range divisions {
		if wanted[d.Number] {
			missed = append(missed, d)
		}
	}
	rp := problem("Missed Divisions", "The given user has not voted in all divisions.",
		field("User", mention(user)), field("Waifu Bracket", b.ID), block("Divisions", orNone(divisionLines(missed))))
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) guide(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	if _, err := h.service.FindVotable(ctx, cmd.GuildID); err != nil {
		return nil, err
	}
	return cmd.send(h.guideIntro()), nil
}

func (h *WaifuWarHandlers) startVoting(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	b, err := h.service.FindVotable(ctx, cmd.GuildID)
	if err != nil {
		return nil, err
	}
	rp := notice("Start Voting", fmt.Sprintf("In order to vote, type %s. Or, click the check mark below.", h.usage("division show 1")))
	rp.reactions = []string{EmojiContinue}
	rp.token = &Token{Kind: TokenStartVoting, BracketID: b.ID, Division: 1}
	return cmd.send(rp), nil
}
