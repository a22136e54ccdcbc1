package gateway

import "errors"

var (
	// ErrConnection means a session could not be established after retries.
	ErrConnection = errors.New("chat service connection failed")
	// ErrUpstream means the chat service rejected a call, e.g. a bad
	// credential or a missing channel.
	ErrUpstream = errors.New("chat service rejected request")
)

// Channel is a text-capable channel visible to a credential. It is read live
// from the chat service and never persisted as a first-class entity.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StickerInfo describes a sticker available to a credential.
type StickerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Member is a guild member matched by a search.
type Member struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// SendRequest is one outbound message: text and/or a single image or sticker
// reference, optionally as a reply.
type SendRequest struct {
	Text      string
	ImageURL  string
	StickerID string
	ReplyTo   string
}
