package staffapply

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestModalInputValue(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "q1", Value: "  padded  "},
				},
			},
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "q2", Value: "plain"},
				},
			},
		},
	}
	assert.Equal(t, "padded", modalInputValue(data, "q1"))
	assert.Equal(t, "plain", modalInputValue(data, "q2"))
	assert.Empty(t, modalInputValue(data, "missing"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))

	// multi-byte runes count as single characters
	arabic := "مرحبا بالعالم"
	assert.Equal(t, arabic, truncate(arabic, 100))
	assert.Equal(t, "مرحبا", truncate(arabic, 5))
}

func TestUserMention(t *testing.T) {
	assert.Equal(t, "<@123>", userMention("123"))
}

func TestStructToSlogValueRedaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discord.Token = "super-secret-token"

	rendered := structToSlogValue(cfg).String()
	assert.NotContains(t, rendered, "super-secret-token")
	assert.Contains(t, rendered, "[redacted]")
}
