package eventbus

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
)

type recordingPublisher struct {
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.topics = append(p.topics, topic)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestPublishWithGuildScope(t *testing.T) {
	tests := []struct {
		name      string
		guildID   string
		pubErr    error
		wantTopic string
		wantErr   bool
	}{
		{name: "appends guild id", guildID: "42", wantTopic: "discord.waifuwar.message.send.v1.42"},
		{name: "empty guild rejected", guildID: "", wantErr: true},
		{name: "publisher error surfaces", guildID: "42", pubErr: errors.New("nats down"), wantTopic: "discord.waifuwar.message.send.v1.42", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{err: tt.pubErr}
			err := PublishWithGuildScope(pub, "discord.waifuwar.message.send.v1", tt.guildID, message.NewMessage("1", nil))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantTopic != "" {
				assert.Equal(t, []string{tt.wantTopic}, pub.topics)
			} else {
				assert.Empty(t, pub.topics)
			}
		})
	}
}

func TestStreamName(t *testing.T) {
	assert.Equal(t, "waifuwar", StreamName("waifuwar.command.requested.v1"))
	assert.Equal(t, "discord", StreamName("discord.waifuwar.message.send.v1.42"))
	assert.Equal(t, "single", StreamName("single"))
}

func TestIsValidStreamName(t *testing.T) {
	tests := map[string]bool{
		"waifuwar":  true,
		"waifu_war": true,
		"waifu-war": true,
		"":          false,
		"-waifu":    false,
		"waifu-":    false,
		"waifu.war": false,
		"waifu war": false,
		"waifu*":    false,
		"waifu>":    false,
	}
	for name, want := range tests {
		assert.Equal(t, want, isValidStreamName(name), name)
	}
}
