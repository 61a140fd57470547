package waifuwarhandlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	"github.com/Black-And-White-Club/waifu-bot/pkg/embedpager"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

// HandleRoundCollapseRequested runs a scheduled collapse pinned to the bracket
// it was scheduled for. The request is skipped when that bracket is no longer
// the votable one when its row is locked, so a redelivered request never
// collapses twice. Infrastructure errors are returned for redelivery.
func (h *WaifuWarHandlers) HandleRoundCollapseRequested(ctx context.Context, payload *waifuwarevents.RoundCollapseRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "WaifuWarHandlers.HandleRoundCollapseRequested")
	defer span.End()

	logger := h.logger.With(
		attr.ExtractCorrelationID(ctx),
		attr.GuildID(string(payload.GuildID)),
		attr.BracketID(payload.BracketID),
	)
	req := request{GuildID: payload.GuildID, ChannelID: payload.ChannelID, UserID: payload.RequestedBy}

	result, err := h.service.CollapseRoundAt(ctx, payload.GuildID, payload.BracketID, payload.Suffix)
	var stale *waifuwarservice.StaleCollapseError
	switch {
	case errors.As(err, &stale):
		logger.InfoContext(ctx, "Skipping scheduled collapse: bracket is no longer votable",
			attr.Int64("votable_bracket_id", stale.VotableID),
		)
		return nil, nil
	case err != nil:
		if rp, ok := h.explain(err); ok {
			logger.WarnContext(ctx, "Scheduled collapse rejected", attr.Error(err))
			return req.send(rp), nil
		}
		return nil, fmt.Errorf("failed to collapse round: %w", err)
	}

	logger.InfoContext(ctx, "Scheduled collapse completed",
		attr.Int("divisions", len(result.Divisions)),
		attr.Bool("champion", result.Champion != nil),
	)
	return h.collapsed(req, result), nil
}

// collapsed announces a collapse in the channel and records it on the bus.
func (h *WaifuWarHandlers) collapsed(req request, result *waifuwartypes.CollapseResult) []handlerwrapper.Result {
	var replies []reply

	if result.Champion == nil {
		var ties []string
		for _, o := range result.Divisions {
			if o.WasTie {
				ties = append(ties, fmt.Sprintf("Division **%d**: **%s** and **%s** are tied, so a random choice picked **%s**.",
					o.Division, o.Winner.Entrant.Name, o.Loser.Entrant.Name, o.Winner.Entrant.Name))
			}
		}
		if len(ties) > 0 {
			rp := notice("Tie", "Some divisions ended in a tie.")
			rp.fields = []embedpager.Field{block("Ties", strings.Join(ties, "\n"))}
			replies = append(replies, rp)
		}
	}

	if c := result.Champion; c != nil {
		rp := notice(fmt.Sprintf("Winner for *%s*", c.BracketName), "")
		status := "Clear Winner"
		if c.WasTie {
			status = "Tie"
			rp.embed.Description = "The two finalists have the same amount of votes. A random choice has been used to determine the winner."
		}
		rp.embed.ImageURL = c.ImageRef
		rp.fields = []embedpager.Field{
			field("Status", status),
			field("Waifu Name", c.Name),
			field("Waifu Anime", orNone(c.Group)),
			block("Waifu Description", orNone(c.Description)),
			field("Votes", c.Votes),
		}
		replies = append(replies, rp)
	} else if result.Next != nil {
		rp := success("Finalizing", "The brackets are being finalized.")
		rp.fields = []embedpager.Field{
			field("Old Bracket ID", result.Closed.ID),
			field("New Bracket ID", result.Next.ID),
			field("New Bracket Name", result.Next.Name),
		}
		replies = append(replies, rp)
	}

	out := req.send(replies...)
	out = append(out, handlerwrapper.Result{
		Topic:   waifuwarevents.RoundCollapsedV1,
		Payload: &waifuwarevents.RoundCollapsedPayloadV1{GuildID: req.GuildID, Result: *result},
	})
	if result.Champion != nil {
		out = append(out, handlerwrapper.Result{
			Topic:   waifuwarevents.ChampionAnnouncedV1,
			Payload: &waifuwarevents.ChampionAnnouncedPayloadV1{GuildID: req.GuildID, Champion: *result.Champion},
		})
	}
	return out
}
