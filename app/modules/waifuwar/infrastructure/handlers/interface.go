package waifuwarhandlers

import (
	"context"

	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
)

// Handlers defines the interface for waifu war event handlers.
type Handlers interface {
	// HandleCommand runs a user command and answers in the command's channel.
	HandleCommand(ctx context.Context, payload *waifuwarevents.CommandRequestedPayloadV1) ([]handlerwrapper.Result, error)

	// HandleReaction resumes the flow recorded in the reacted message's token.
	HandleReaction(ctx context.Context, payload *waifuwarevents.ReactionAddedPayloadV1) ([]handlerwrapper.Result, error)

	// HandleRoundCollapseRequested runs a scheduled round collapse.
	HandleRoundCollapseRequested(ctx context.Context, payload *waifuwarevents.RoundCollapseRequestedPayloadV1) ([]handlerwrapper.Result, error)
}
