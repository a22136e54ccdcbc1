package gateway

import (
	"github.com/bwmarrin/discordgo"

	"github.com/hellolucient/nether-chat-sub000/internal/messages"
)

// MapMessage converts an upstream message into the cached shape. Reply
// reference fields are filled as far as the payload allows; the syncer's
// resolver completes them afterwards when it can.
func MapMessage(m *discordgo.Message) messages.CachedMessage {
	msg := messages.CachedMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		SentAt:    m.Timestamp.UTC(),
	}
	if m.Author != nil {
		msg.SenderID = m.Author.ID
		msg.AuthorUsername = m.Author.Username
	}

	if m.MessageReference != nil {
		msg.ReferencedMessageID = m.MessageReference.MessageID
	}
	if ref := m.ReferencedMessage; ref != nil {
		msg.ReferencedMessageID = ref.ID
		msg.ReferencedContent = ref.Content
		if ref.Author != nil {
			msg.ReferencedAuthorID = ref.Author.ID
		}
	}

	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, messages.Attachment{
			ID:          att.ID,
			URL:         att.URL,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Width:       att.Width,
			Height:      att.Height,
			Size:        int64(att.Size),
		})
	}

	for _, embed := range m.Embeds {
		if embed == nil {
			continue
		}
		item := messages.Embed{
			Type:        string(embed.Type),
			Title:       embed.Title,
			Description: embed.Description,
			URL:         embed.URL,
		}
		if embed.Image != nil {
			item.ImageURL = embed.Image.URL
		}
		msg.Embeds = append(msg.Embeds, item)
	}

	for _, st := range m.StickerItems {
		if st == nil {
			continue
		}
		msg.Stickers = append(msg.Stickers, messages.Sticker{
			ID:   st.ID,
			Name: st.Name,
			URL:  stickerURL(st.ID),
		})
	}

	return msg
}
