package waifuwarhandlers

import (
	"fmt"
	"strings"

	"github.com/Black-And-White-Club/waifu-bot/pkg/embedpager"
	"github.com/Black-And-White-Club/waifu-bot/pkg/eventbus"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

// Reaction markers.
const (
	EmojiLeft      = "⬅️"
	EmojiRight     = "➡️"
	EmojiInfoLeft  = "ℹ️"
	EmojiInfoRight = "🇮"
	EmojiSkip      = "🚫"
	EmojiContinue  = "✅"
)

// sameEmoji compares reactions ignoring the emoji variation selector, which
// some clients drop.
func sameEmoji(a, b string) bool {
	strip := func(s string) string { return strings.ReplaceAll(s, "\uFE0F", "") }
	return strip(a) == strip(b)
}

// request identifies who is asking and where to answer.
type request struct {
	GuildID   sharedtypes.GuildID
	ChannelID sharedtypes.ChannelID
	UserID    sharedtypes.DiscordID
}

// reply is one outbound message before pagination.
type reply struct {
	embed      embedpager.Embed
	fields     []embedpager.Field
	reactions  []string
	token      *Token
	attachment *waifuwarevents.AttachmentV1
}

// send turns replies into guild-scoped message send requests.
func (r request) send(replies ...reply) []handlerwrapper.Result {
	topic := eventbus.FormatGuildScopedTopic(waifuwarevents.MessageSendRequestedV1, string(r.GuildID))
	out := make([]handlerwrapper.Result, 0, len(replies))
	for _, rp := range replies {
		payload := &waifuwarevents.MessageSendRequestedPayloadV1{
			GuildID:       r.GuildID,
			ChannelID:     r.ChannelID,
			ReplyToUserID: r.UserID,
			Embeds:        embedpager.Paginate(rp.embed, rp.fields),
			Reactions:     rp.reactions,
			Attachment:    rp.attachment,
		}
		if rp.token != nil {
			payload.Token = rp.token.Encode()
		}
		out = append(out, handlerwrapper.Result{Topic: topic, Payload: payload})
	}
	return out
}

func field(name string, value any) embedpager.Field {
	return embedpager.Field{Name: name, Value: fmt.Sprint(value), Inline: true}
}

func block(name, value string) embedpager.Field {
	return embedpager.Field{Name: name, Value: value}
}

func notice(title, description string) reply {
	return reply{embed: embedpager.Embed{Title: title, Description: description, Color: embedpager.ColorDefault}}
}

func success(title, description string) reply {
	return reply{embed: embedpager.Embed{Title: title, Description: description, Color: embedpager.ColorSuccess}}
}

func problem(title, description string, fields ...embedpager.Field) reply {
	return reply{
		embed:  embedpager.Embed{Title: title, Description: description, Color: embedpager.ColorError},
		fields: fields,
	}
}

// contender renders an entrant as a linked line.
func contender(e waifuwartypes.Entrant) string {
	label := e.Name
	if e.Group != "" {
		label = fmt.Sprintf("%s (*%s*)", e.Name, e.Group)
	}
	if e.ImageRef != "" {
		return fmt.Sprintf("[%s](%s)", label, e.ImageRef)
	}
	return label
}

func slotLine(s waifuwartypes.RosterSlot) string {
	return fmt.Sprintf("**%d**: %s", s.Position, contender(s.Entrant))
}

func divisionReply(d *waifuwartypes.Division) reply {
	return reply{
		embed: embedpager.Embed{Title: fmt.Sprintf("Division **%d**", d.Number), Color: embedpager.ColorDefault},
		fields: []embedpager.Field{
			field("Waifu Bracket", d.BracketID),
			field("Bracket Division", d.Number),
			block("Contenders", fmt.Sprintf("%s (Waifu ID **%d**)\n%s (Waifu ID **%d**)",
				contender(d.Left.Entrant), d.Left.Position, contender(d.Right.Entrant), d.Right.Position)),
			field("Votes for "+d.Left.Entrant.Name, d.LeftVotes),
			field("Votes for "+d.Right.Entrant.Name, d.RightVotes),
		},
		reactions: []string{EmojiLeft, EmojiInfoLeft, EmojiSkip, EmojiInfoRight, EmojiRight},
		token:     &Token{Kind: TokenDivision, BracketID: d.BracketID, Division: d.Number},
	}
}

func entrantReply(e waifuwartypes.Entrant, bracketID int64, position int) reply {
	rp := reply{embed: embedpager.Embed{Title: e.Name, Description: e.Description, Color: embedpager.ColorDefault, ImageURL: e.ImageRef}}
	if bracketID != 0 {
		rp.fields = append(rp.fields, field("Waifu Bracket", bracketID), field("Bracket Waifu ID", position))
	} else {
		rp.fields = append(rp.fields, field("Global Waifu ID", e.ID))
	}
	rp.fields = append(rp.fields, field("Anime", orNone(e.Group)))
	if len(e.Aliases) > 0 {
		rp.fields = append(rp.fields, block("Aliases", strings.Join(e.Aliases, "\n")))
	}
	return rp
}

func votedReply(r *waifuwartypes.VoteReceipt) reply {
	rp := success("Voted", "You have successfully voted in the waifu war!")
	rp.embed.ImageURL = r.Slot.Entrant.ImageRef
	rp.fields = []embedpager.Field{
		field("Waifu Bracket", r.BracketID),
		field("Bracket Division", r.Division),
		field("Waifu ID", r.Slot.Position),
		field("Waifu Name", r.Slot.Entrant.Name),
		field("Waifu Anime", orNone(r.Slot.Entrant.Group)),
		block("Waifu Description", orNone(r.Slot.Entrant.Description)),
	}
	rp.reactions = []string{EmojiContinue, EmojiSkip}
	rp.token = &Token{Kind: TokenVoted, BracketID: r.BracketID, Division: r.Division, Position: r.Slot.Position}
	return rp
}

func voteRemovedReply(r *waifuwartypes.VoteReceipt) reply {
	rp := success("Vote Removed", "Your vote has been removed.")
	rp.fields = []embedpager.Field{
		field("Waifu Bracket", r.BracketID),
		field("Bracket Division", r.Division),
		field("Waifu ID", r.Slot.Position),
		field("Waifu Name", r.Slot.Entrant.Name),
	}
	rp.reactions = []string{EmojiContinue}
	rp.token = &Token{Kind: TokenVoteRemoved, BracketID: r.BracketID, Division: r.Division}
	return rp
}

func completeReply() reply {
	return success("Waifu War is complete!", "You have completed the waifu war bracket! You can now stop voting.")
}

func startGuideReply(bracketID int64, division int) reply {
	rp := notice("Start Guide", "You have never voted using the waifu war system. It is recommended that you start the guide. "+
		"Click the **:white_check_mark:** to begin. However, if you know what you're doing, click the **:no_entry_sign:** to continue.")
	rp.fields = []embedpager.Field{field("Waifu Bracket", bracketID), field("Bracket Division", division)}
	rp.reactions = []string{EmojiContinue, EmojiSkip}
	rp.token = &Token{Kind: TokenStartGuide, BracketID: bracketID, Division: division}
	return rp
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func statusTitle(s waifuwartypes.BracketStatus) string {
	name := s.String()
	return name[:1] + strings.ToLower(name[1:])
}

func mention(id sharedtypes.DiscordID) string {
	return "<@" + string(id) + ">"
}
