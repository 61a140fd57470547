package waifuwarservice

import (
	"context"

	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
)

// ShouldOfferGuide reports whether a user asking for the first division should
// be offered the guide: they have no ballot in the bracket and are not
// already in the guide.
func (s *WaifuWarService) ShouldOfferGuide(ctx context.Context, bracketID int64, userID sharedtypes.DiscordID) (bool, error) {
	return execute(s, ctx, "ShouldOfferGuide", string(userID), func(ctx context.Context, db bun.IDB) (BoolResult, error) {
		step, err := s.sessions.Get(ctx, userID)
		if err != nil {
			return fault[bool]("failed to get guide step: %w", err)
		}
		if step.Active() {
			return success(false)
		}
		n, err := s.repo.CountUserVotes(ctx, db, bracketID, userID)
		if err != nil {
			return fault[bool]("failed to count votes: %w", err)
		}
		return success(n == 0)
	})
}

// BeginGuide starts the guide for userID on the guild's votable bracket. The
// user's first-division ballot is removed so the guide can walk through it.
func (s *WaifuWarService) BeginGuide(ctx context.Context, guildID sharedtypes.GuildID, userID sharedtypes.DiscordID) (*waifuwartypes.Bracket, error) {
	return execute(s, ctx, "BeginGuide", string(userID), func(ctx context.Context, db bun.IDB) (BracketResult, error) {
		row, err := s.findVotable(ctx, db, guildID, false)
		if err != nil {
			return propagate[*waifuwartypes.Bracket](err)
		}
		if err := s.repo.DeleteDivisionVote(ctx, db, userID, row.ID, 1); err != nil {
			return fault[*waifuwartypes.Bracket]("failed to clear first division vote: %w", err)
		}
		if err := s.sessions.Set(ctx, userID, waifuwartypes.GuideStepSummon); err != nil {
			return fault[*waifuwartypes.Bracket]("failed to start guide: %w", err)
		}
		bracket := row.ToDomain()
		return success(&bracket)
	})
}

// AdvanceGuide feeds a ledger or navigation event to userID's guide. It returns
// the step reached when the event moves the guide forward, and GuideStepNone
// when the event means nothing at the user's current step. Reaching
// GuideStepDone ends the guide.
func (s *WaifuWarService) AdvanceGuide(ctx context.Context, userID sharedtypes.DiscordID, event waifuwartypes.GuideEvent) (waifuwartypes.GuideStep, error) {
	return observe(s, ctx, "AdvanceGuide", string(userID), func(ctx context.Context) (GuideStepResult, error) {
		current, err := s.sessions.Get(ctx, userID)
		if err != nil {
			return fault[waifuwartypes.GuideStep]("failed to get guide step: %w", err)
		}

		next := nextGuideStep(current, event)
		if next == waifuwartypes.GuideStepNone {
			return success(waifuwartypes.GuideStepNone)
		}

		if next == waifuwartypes.GuideStepDone {
			err = s.sessions.Clear(ctx, userID)
		} else {
			err = s.sessions.Set(ctx, userID, next)
		}
		if err != nil {
			return fault[waifuwartypes.GuideStep]("failed to store guide step: %w", err)
		}

		s.logger.DebugContext(ctx, "Guide advanced",
			attr.ExtractCorrelationID(ctx),
			attr.UserID(string(userID)),
			attr.String("event", event.String()),
			attr.Int("step", int(next)),
		)
		return success(next)
	})
}

// nextGuideStep is the guide's transition table.
func nextGuideStep(current waifuwartypes.GuideStep, event waifuwartypes.GuideEvent) waifuwartypes.GuideStep {
	switch {
	case current == waifuwartypes.GuideStepSummon && event == waifuwartypes.GuideEventDivisionShown:
		return waifuwartypes.GuideStepVote
	case current == waifuwartypes.GuideStepVote && event == waifuwartypes.GuideEventVoteCast:
		return waifuwartypes.GuideStepUndo
	case current == waifuwartypes.GuideStepUndo && event == waifuwartypes.GuideEventVoteRetracted:
		return waifuwartypes.GuideStepContinue
	case current == waifuwartypes.GuideStepContinue && event == waifuwartypes.GuideEventDivisionShown:
		return waifuwartypes.GuideStepDone
	default:
		return waifuwartypes.GuideStepNone
	}
}
