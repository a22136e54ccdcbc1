package messages

import "time"

// Attachment carries file metadata attached to a cached message.
type Attachment struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Embed is the subset of embed data the UI renders.
type Embed struct {
	Type        string `json:"type,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Sticker references a sticker sent with a message.
type Sticker struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CachedMessage mirrors one upstream chat message. The id is assigned by the
// chat service, which makes cache writes idempotent; rows are disposable and
// rebuildable from upstream at any time.
type CachedMessage struct {
	ID                  string       `json:"id"`
	ChannelID           string       `json:"channel_id"`
	SenderID            string       `json:"sender_id"`
	AuthorUsername      string       `json:"author_username"`
	Content             string       `json:"content"`
	SentAt              time.Time    `json:"sent_at"`
	ReferencedMessageID string       `json:"referenced_message_id,omitempty"`
	ReferencedAuthorID  string       `json:"referenced_author_id,omitempty"`
	ReferencedContent   string       `json:"referenced_content,omitempty"`
	Attachments         []Attachment `json:"attachments,omitempty"`
	Embeds              []Embed      `json:"embeds,omitempty"`
	Stickers            []Sticker    `json:"stickers,omitempty"`
}
