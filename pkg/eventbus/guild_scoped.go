package eventbus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
)

// PublishWithGuildScope publishes msg to {baseTopic}.{guildID}, so the chat
// gateway serving that guild can subscribe with a wildcard or a single guild.
//
// Example:
//   - baseTopic: "discord.waifuwar.message.send.v1"
//   - guildID: "123456789"
//   - result: "discord.waifuwar.message.send.v1.123456789"
func PublishWithGuildScope(bus message.Publisher, baseTopic string, guildID string, msg *message.Message) error {
	if guildID == "" {
		return fmt.Errorf("guildID cannot be empty for guild-scoped publish")
	}
	return bus.Publish(FormatGuildScopedTopic(baseTopic, guildID), msg)
}

// FormatGuildScopedTopic formats a topic with guild_id suffix without publishing.
func FormatGuildScopedTopic(baseTopic string, guildID string) string {
	return fmt.Sprintf("%s.%s", baseTopic, guildID)
}
