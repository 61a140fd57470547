package waifuwarhandlers

import (
	"fmt"

	"github.com/Black-And-White-Club/waifu-bot/pkg/embedpager"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

func (h *WaifuWarHandlers) usage(command string) string {
	return fmt.Sprintf("`%s %s`", h.prefix, command)
}

func (h *WaifuWarHandlers) guideIntro() reply {
	rp := notice("Guide", "Welcome to the interactive Waifu War guide. This will show you how the various reactions work, "+
		"allowing you to use the Waifu War system to its fullest potential. Click the check mark below to start.")
	rp.fields = []embedpager.Field{block("Note",
		"If you have previously used the Waifu War system, the guide *will* delete the entry for the first division.")}
	rp.reactions = []string{EmojiContinue}
	rp.token = &Token{Kind: TokenGuide}
	return rp
}

func (h *WaifuWarHandlers) guideSummon(bracketID int64) reply {
	rp := notice("Step 1: Summoning a Division", fmt.Sprintf(
		"To get the information for a division, type %s. To bring up the first division, try typing %s.",
		h.usage("division show <number>"), h.usage("division show 1")))
	rp.fields = []embedpager.Field{block("Note",
		"For the purposes of the guide, clicking the check mark below will do the same thing as typing "+h.usage("division show 1")+".")}
	rp.reactions = []string{EmojiContinue}
	rp.token = &Token{Kind: TokenGuideStep1, BracketID: bracketID, Division: 1, Step: int(waifuwartypes.GuideStepSummon)}
	return rp
}

func guideVote() reply {
	rp := notice("Step 2: Using a Division",
		"The division data will contain 5 emojis. Read how each emoji works. Note that you can click a button more than "+
			"once, and have the same action repeat. When you're done reading, please vote on a waifu to continue. If you "+
			"would rather not vote in this division, use the *skip* button and find a division where you would like to vote.")
	rp.fields = []embedpager.Field{
		block(EmojiLeft, "Votes for the left waifu: the one with the **odd** Waifu ID, listed first."),
		block(EmojiRight, "Votes for the right waifu: the one with the **even** Waifu ID, listed second."),
		block(EmojiInfoLeft, "Shows the left waifu."),
		block(EmojiInfoRight, "Shows the right waifu."),
		block(EmojiSkip, "Skips to the next division without voting. You can still go back and vote on this one later."),
	}
	return rp
}

func guideUndo() reply {
	rp := notice("Step 3: Using a Vote Result",
		"The vote result will contain two emojis. Read how each emoji works. For the purposes of this guide, please click the **"+EmojiSkip+"** emoji.")
	rp.fields = []embedpager.Field{
		block(EmojiContinue, "The continue button. Brings up the next division, where you can get info and vote again."),
		block(EmojiSkip, "The undo vote button. If you voted for the wrong waifu, click this button to undo your vote."),
	}
	return rp
}

func guideContinue() reply {
	rp := notice("Step 4: Using an Undo Vote Result",
		"The unvote result will contain one emoji. Read how it works and then click it to continue the guide. You're almost done, one more step to go!")
	rp.fields = []embedpager.Field{block(EmojiContinue,
		"The continue button. Brings up the division of the waifu you removed your vote for, where you can vote again.")}
	return rp
}

func (h *WaifuWarHandlers) guideDone() reply {
	return notice("Final Step: Resuming the War", fmt.Sprintf(
		"If you are unable to complete the entire Waifu War in a single session, type %s to bring up the last division you voted for. "+
			"It will carry a single check mark, which opens the next division. Now go out there and vote for your waifu!",
		h.usage("vote last")))
}

// guideReply is the explanation appended when the guide advanced to step.
func (h *WaifuWarHandlers) guideReply(step waifuwartypes.GuideStep) (reply, bool) {
	switch step {
	case waifuwartypes.GuideStepVote:
		return guideVote(), true
	case waifuwartypes.GuideStepUndo:
		return guideUndo(), true
	case waifuwartypes.GuideStepContinue:
		return guideContinue(), true
	case waifuwartypes.GuideStepDone:
		return h.guideDone(), true
	default:
		return reply{}, false
	}
}
