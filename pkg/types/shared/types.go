// Package sharedtypes holds identifier types shared across modules and events.
package sharedtypes

// GuildID identifies a chat community (guild). Every bracket belongs to one.
type GuildID string

// DiscordID identifies a chat platform user.
type DiscordID string

// ChannelID identifies the channel a command was issued in.
type ChannelID string

func (g GuildID) String() string   { return string(g) }
func (d DiscordID) String() string { return string(d) }
func (c ChannelID) String() string { return string(c) }
