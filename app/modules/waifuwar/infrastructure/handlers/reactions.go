package waifuwarhandlers

import (
	"context"
	"strconv"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
)

// HandleReaction resumes the flow recorded in the reacted message's token.
// Reactions that mean nothing for the token are ignored.
func (h *WaifuWarHandlers) HandleReaction(ctx context.Context, payload *waifuwarevents.ReactionAddedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "WaifuWarHandlers.HandleReaction")
	defer span.End()

	token, err := DecodeToken(payload.Token)
	if err != nil {
		h.logger.WarnContext(ctx, "Ignoring reaction with invalid token",
			attr.ExtractCorrelationID(ctx),
			attr.GuildID(string(payload.GuildID)),
			attr.String("message_id", payload.MessageID),
			attr.Error(err),
		)
		return nil, nil
	}

	req := request{GuildID: payload.GuildID, ChannelID: payload.ChannelID, UserID: payload.UserID}
	if h.limiter != nil && !h.limiter.Allow(payload.UserID) {
		h.logger.WarnContext(ctx, "Reaction rate limited",
			attr.ExtractCorrelationID(ctx),
			attr.UserID(string(payload.UserID)),
		)
		return nil, nil
	}

	act := h.reactionAction(token, payload.Emoji)
	if act == nil {
		h.logger.DebugContext(ctx, "Reaction has no action",
			attr.ExtractCorrelationID(ctx),
			attr.String("kind", string(token.Kind)),
			attr.String("emoji", payload.Emoji),
		)
		return nil, nil
	}

	replies, err := act(ctx, req)
	if err != nil {
		return h.respond(ctx, req, "reaction "+string(token.Kind), err), nil
	}
	return req.send(replies...), nil
}

type reactionFunc func(ctx context.Context, req request) ([]reply, error)

func (h *WaifuWarHandlers) reactionAction(t Token, emoji string) reactionFunc {
	is := func(want string) bool { return sameEmoji(emoji, want) }

	switch t.Kind {
	case TokenDivision:
		switch {
		case is(EmojiLeft):
			return h.voteAt(t.BracketID, waifuwarservice.LeftPosition(t.Division))
		case is(EmojiRight):
			return h.voteAt(t.BracketID, waifuwarservice.RightPosition(t.Division))
		case is(EmojiInfoLeft):
			return h.infoAt(t.BracketID, waifuwarservice.LeftPosition(t.Division))
		case is(EmojiInfoRight):
			return h.infoAt(t.BracketID, waifuwarservice.RightPosition(t.Division))
		case is(EmojiSkip):
			return h.divisionAt(t.BracketID, t.Division+1, false)
		}
	case TokenVoted:
		switch {
		case is(EmojiSkip):
			return h.retractAt(t.BracketID, t.Position)
		case is(EmojiContinue):
			return h.divisionAt(t.BracketID, t.Division+1, false)
		}
	case TokenVoteRemoved:
		if is(EmojiContinue) {
			return h.divisionAt(t.BracketID, t.Division, false)
		}
	case TokenAlreadyVoted:
		if is(EmojiSkip) {
			return h.retractAt(t.BracketID, t.Position)
		}
	case TokenNeverParticipated, TokenGuide:
		if is(EmojiContinue) {
			return h.beginGuide
		}
	case TokenStartGuide:
		switch {
		case is(EmojiContinue):
			return h.beginGuide
		case is(EmojiSkip):
			return h.divisionAt(t.BracketID, t.Division, false)
		}
	case TokenPreviousDivision:
		if is(EmojiContinue) {
			return h.divisionAt(t.BracketID, t.Division+1, false)
		}
	case TokenGuideStep1, TokenStartVoting:
		if is(EmojiContinue) {
			return h.divisionAt(t.BracketID, 1, true)
		}
	}
	return nil
}

func (h *WaifuWarHandlers) voteAt(bracketID int64, position int) reactionFunc {
	return func(ctx context.Context, req request) ([]reply, error) {
		receipt, err := h.service.CastVoteAt(ctx, req.GuildID, req.UserID, bracketID, position)
		if err != nil {
			return nil, err
		}
		return h.voted(ctx, req, receipt), nil
	}
}

func (h *WaifuWarHandlers) retractAt(bracketID int64, position int) reactionFunc {
	return func(ctx context.Context, req request) ([]reply, error) {
		receipt, err := h.service.RetractVoteAt(ctx, req.GuildID, req.UserID, bracketID, position)
		if err != nil {
			return nil, err
		}
		return h.retracted(ctx, req, receipt), nil
	}
}

func (h *WaifuWarHandlers) infoAt(bracketID int64, position int) reactionFunc {
	return func(ctx context.Context, req request) ([]reply, error) {
		slot, err := h.service.FindRosterEntry(ctx, bracketID, strconv.Itoa(position))
		if err != nil {
			return nil, err
		}
		return []reply{entrantReply(slot.Entrant, bracketID, slot.Position)}, nil
	}
}

func (h *WaifuWarHandlers) divisionAt(bracketID int64, d int, offerGuide bool) reactionFunc {
	return func(ctx context.Context, req request) ([]reply, error) {
		return h.showDivision(ctx, req, bracketID, d, offerGuide)
	}
}

func (h *WaifuWarHandlers) beginGuide(ctx context.Context, req request) ([]reply, error) {
	b, err := h.service.BeginGuide(ctx, req.GuildID, req.UserID)
	if err != nil {
		return nil, err
	}
	return []reply{h.guideSummon(b.ID)}, nil
}
