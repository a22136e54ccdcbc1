package gateway

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessage(t *testing.T) {
	sentAt := time.Date(2026, 2, 14, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	m := &discordgo.Message{
		ID:        "msg-1",
		ChannelID: "chan-1",
		Content:   "hello there",
		Timestamp: sentAt,
		Author:    &discordgo.User{ID: "user-1", Username: "alice"},
		Attachments: []*discordgo.MessageAttachment{
			{ID: "att-1", URL: "https://cdn/att-1.png", Filename: "att-1.png", ContentType: "image/png", Width: 640, Height: 480, Size: 1024},
		},
		Embeds: []*discordgo.MessageEmbed{
			{Type: discordgo.EmbedTypeImage, Title: "pic", URL: "https://x/pic", Image: &discordgo.MessageEmbedImage{URL: "https://cdn/pic.gif"}},
		},
		StickerItems: []*discordgo.Sticker{
			{ID: "st-1", Name: "wave"},
		},
	}

	msg := MapMessage(m)
	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, "chan-1", msg.ChannelID)
	assert.Equal(t, "user-1", msg.SenderID)
	assert.Equal(t, "alice", msg.AuthorUsername)
	assert.Equal(t, sentAt.UTC(), msg.SentAt)

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "https://cdn/att-1.png", msg.Attachments[0].URL)
	assert.Equal(t, int64(1024), msg.Attachments[0].Size)

	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "image", msg.Embeds[0].Type)
	assert.Equal(t, "https://cdn/pic.gif", msg.Embeds[0].ImageURL)

	require.Len(t, msg.Stickers, 1)
	assert.Equal(t, "st-1", msg.Stickers[0].ID)
	assert.NotEmpty(t, msg.Stickers[0].URL)
}

func TestMapMessageReferenceOnly(t *testing.T) {
	// Only the raw reference is present; the resolver fills the rest later.
	m := &discordgo.Message{
		ID:               "msg-2",
		ChannelID:        "chan-1",
		Author:           &discordgo.User{ID: "user-1", Username: "alice"},
		MessageReference: &discordgo.MessageReference{MessageID: "msg-1"},
	}

	msg := MapMessage(m)
	assert.Equal(t, "msg-1", msg.ReferencedMessageID)
	assert.Empty(t, msg.ReferencedAuthorID)
	assert.Empty(t, msg.ReferencedContent)
}

func TestMapMessageResolvedReference(t *testing.T) {
	m := &discordgo.Message{
		ID:               "msg-3",
		ChannelID:        "chan-1",
		Author:           &discordgo.User{ID: "user-2", Username: "bob"},
		MessageReference: &discordgo.MessageReference{MessageID: "msg-1"},
		ReferencedMessage: &discordgo.Message{
			ID:      "msg-1",
			Content: "original",
			Author:  &discordgo.User{ID: "user-1"},
		},
	}

	msg := MapMessage(m)
	assert.Equal(t, "msg-1", msg.ReferencedMessageID)
	assert.Equal(t, "user-1", msg.ReferencedAuthorID)
	assert.Equal(t, "original", msg.ReferencedContent)
}
