package waifuwarservice

import (
	"context"
	"regexp"
	"strings"
	"time"

	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
	"github.com/uptrace/bun"
)

var compactClock = regexp.MustCompile(`(\d{1,2})(\d{2})(am|pm)`)

// ParseCollapseTime resolves a natural-language time such as "tomorrow at 6pm"
// or "in 2 hours" relative to now. The result must lie in the future.
func ParseCollapseTime(input string, now time.Time) (time.Time, error) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return time.Time{}, &InvalidScheduleError{Input: input, Reason: "no time given"}
	}
	text = strings.ReplaceAll(text, "today ", "today at ")
	// "932am" -> "9:32 am"
	text = compactClock.ReplaceAllString(text, "$1:$2 $3")

	w := when.New(nil)
	w.Add(en.All...)

	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, &InvalidScheduleError{Input: input, Reason: err.Error()}
	}
	if r == nil {
		return time.Time{}, &InvalidScheduleError{Input: input, Reason: "time not recognized"}
	}

	at := r.Time.Truncate(time.Minute)
	if !at.After(now.Truncate(time.Minute)) {
		return time.Time{}, &InvalidScheduleError{Input: input, Reason: "time must be in the future"}
	}
	return at, nil
}

// ScheduleCollapse enqueues a collapse of the guild's votable bracket at the
// time described by req.When.
func (s *WaifuWarService) ScheduleCollapse(ctx context.Context, req ScheduleCollapseRequest) (*ScheduledCollapse, error) {
	return execute(s, ctx, "ScheduleCollapse", string(req.GuildID), func(ctx context.Context, db bun.IDB) (ScheduleResult, error) {
		if s.scheduler == nil {
			return failure[*ScheduledCollapse](ErrSchedulingUnavailable)
		}

		at, err := ParseCollapseTime(req.When, s.now())
		if err != nil {
			return failure[*ScheduledCollapse](err)
		}

		bracket, err := s.findVotable(ctx, db, req.GuildID, false)
		if err != nil {
			return propagate[*ScheduledCollapse](err)
		}
		suffix := strings.TrimSpace(req.Suffix)
		if suffix == "" {
			size, err := s.repo.CountRoster(ctx, db, bracket.ID)
			if err != nil {
				return fault[*ScheduledCollapse]("failed to count roster: %w", err)
			}
			if MaxDivision(size) > 1 {
				return failure[*ScheduledCollapse](ErrEmptyName)
			}
		}

		payload := waifuwarevents.RoundCollapseRequestedPayloadV1{
			GuildID:     req.GuildID,
			ChannelID:   req.ChannelID,
			RequestedBy: req.RequestedBy,
			BracketID:   bracket.ID,
			Suffix:      suffix,
		}
		if err := s.scheduler.ScheduleCollapse(ctx, payload, at); err != nil {
			return fault[*ScheduledCollapse]("failed to schedule collapse: %w", err)
		}

		s.logger.InfoContext(ctx, "Round collapse scheduled",
			attr.ExtractCorrelationID(ctx),
			attr.GuildID(string(req.GuildID)),
			attr.BracketID(bracket.ID),
			attr.String("at", at.UTC().Format(time.RFC3339)),
		)
		return success(&ScheduledCollapse{BracketID: bracket.ID, At: at})
	})
}
