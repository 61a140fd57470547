// Package waifuwarevents defines the topics and payloads exchanged between the
// chat gateway and the waifu war module.
package waifuwarevents

import (
	"github.com/Black-And-White-Club/waifu-bot/pkg/embedpager"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

// Inbound topics, published by the chat gateway.
const (
	// CommandRequestedV1 carries a parsed user command.
	CommandRequestedV1 = "waifuwar.command.requested.v1"
	// ReactionAddedV1 carries a reaction on a message this module sent.
	ReactionAddedV1 = "waifuwar.reaction.added.v1"
)

// Internal topics.
const (
	// RoundCollapseRequestedV1 is published by the scheduler when a scheduled collapse is due.
	RoundCollapseRequestedV1 = "waifuwar.round.collapse.requested.v1"
	// RoundCollapsedV1 records a completed collapse for downstream consumers.
	RoundCollapsedV1 = "waifuwar.round.collapsed.v1"
	// ChampionAnnouncedV1 records the champion of a finished bracket.
	ChampionAnnouncedV1 = "waifuwar.champion.announced.v1"
	// OperatorAlertV1 reports unexpected failures to the bot operator.
	OperatorAlertV1 = "waifuwar.operator.alert.v1"
)

// MessageSendRequestedV1 is the base of the guild-scoped topic the gateway
// consumes to send messages: discord.waifuwar.message.send.v1.<guild_id>.
const MessageSendRequestedV1 = "discord.waifuwar.message.send.v1"

// Embed and EmbedField are the wire shapes of a rich message page.
type (
	Embed      = embedpager.Embed
	EmbedField = embedpager.Field
)

// CommandRequestedPayloadV1 is a user command already split into command,
// subcommand and arguments by the gateway.
type CommandRequestedPayloadV1 struct {
	GuildID       sharedtypes.GuildID    `json:"guild_id"`
	ChannelID     sharedtypes.ChannelID  `json:"channel_id"`
	UserID        sharedtypes.DiscordID  `json:"user_id"`
	IsOwner       bool                   `json:"is_owner"`
	Command       string                 `json:"command"`
	Subcommand    string                 `json:"subcommand,omitempty"`
	Args          []string               `json:"args,omitempty"`
	MentionUserID *sharedtypes.DiscordID `json:"mention_user_id,omitempty"`
}

// ReactionAddedPayloadV1 is a reaction on a message that carried a
// continuation token. The gateway echoes the token verbatim.
type ReactionAddedPayloadV1 struct {
	GuildID   sharedtypes.GuildID   `json:"guild_id"`
	ChannelID sharedtypes.ChannelID `json:"channel_id"`
	UserID    sharedtypes.DiscordID `json:"user_id"`
	MessageID string                `json:"message_id"`
	Emoji     string                `json:"emoji"`
	Token     string                `json:"token"`
}

// AttachmentV1 is a file sent along with a message.
type AttachmentV1 struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// MessageSendRequestedPayloadV1 asks the gateway to send one message per embed
// and to add Reactions to the last one. Token, when set, must be echoed back
// on ReactionAddedV1 for reactions on that message.
type MessageSendRequestedPayloadV1 struct {
	GuildID       sharedtypes.GuildID   `json:"guild_id"`
	ChannelID     sharedtypes.ChannelID `json:"channel_id"`
	ReplyToUserID sharedtypes.DiscordID `json:"reply_to_user_id,omitempty"`
	Embeds        []Embed               `json:"embeds"`
	Reactions     []string              `json:"reactions,omitempty"`
	Token         string                `json:"token,omitempty"`
	Attachment    *AttachmentV1         `json:"attachment,omitempty"`
}

// RoundCollapseRequestedPayloadV1 requests the collapse of the guild's votable bracket.
// BracketID pins the bracket that was votable when the request was made; the
// collapse is skipped if a different bracket is votable by then.
type RoundCollapseRequestedPayloadV1 struct {
	GuildID     sharedtypes.GuildID   `json:"guild_id"`
	ChannelID   sharedtypes.ChannelID `json:"channel_id"`
	RequestedBy sharedtypes.DiscordID `json:"requested_by"`
	BracketID   int64                 `json:"bracket_id"`
	Suffix      string                `json:"suffix"`
}

// RoundCollapsedPayloadV1 records a completed collapse.
type RoundCollapsedPayloadV1 struct {
	GuildID sharedtypes.GuildID          `json:"guild_id"`
	Result  waifuwartypes.CollapseResult `json:"result"`
}

// ChampionAnnouncedPayloadV1 records a finished bracket's champion.
type ChampionAnnouncedPayloadV1 struct {
	GuildID  sharedtypes.GuildID                `json:"guild_id"`
	Champion waifuwartypes.ChampionAnnouncement `json:"champion"`
}

// OperatorAlertPayloadV1 reports an unexpected failure while handling a request.
type OperatorAlertPayloadV1 struct {
	GuildID   sharedtypes.GuildID   `json:"guild_id"`
	ChannelID sharedtypes.ChannelID `json:"channel_id,omitempty"`
	UserID    sharedtypes.DiscordID `json:"user_id,omitempty"`
	Operation string                `json:"operation"`
	Error     string                `json:"error"`
}
