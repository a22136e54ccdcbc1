package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hellolucient/nether-chat-sub000/internal/messages"
)

const (
	connectAttempts = 3
	connectBackoff  = 2 * time.Second
	readyTimeout    = 5 * time.Second

	inboundPersistTimeout = 10 * time.Second
	discordMaxLength      = 2000
)

// MessageSink receives inbound messages observed on open sessions.
type MessageSink interface {
	UpsertBatch(ctx context.Context, batch []messages.CachedMessage) error
}

// Adapter wraps the Discord client. Sessions are keyed by bot token and
// owned by the adapter; the mutex makes session creation single-flight so
// concurrent callers cannot race to open duplicates.
type Adapter struct {
	logger   *slog.Logger
	guildID  string
	pageSize int

	mu              sync.RWMutex
	sessions        map[string]*discordgo.Session
	handlerRemovers map[string]func()

	sink MessageSink
}

func NewAdapter(log *slog.Logger, guildID string, pageSize int) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &Adapter{
		logger:          log.With(slog.String("adapter", "discord")),
		guildID:         guildID,
		pageSize:        pageSize,
		sessions:        make(map[string]*discordgo.Session),
		handlerRemovers: make(map[string]func()),
	}
}

// SetSink registers the message cache that open sessions feed. Messages
// received while any session is open are persisted independently of explicit
// sync calls.
func (a *Adapter) SetSink(sink MessageSink) {
	a.sink = sink
}

// Connect establishes (or reuses) the session for a token. Idempotent; a
// ready session is returned as-is.
func (a *Adapter) Connect(ctx context.Context, token string) error {
	_, err := a.session(ctx, token)
	return err
}

// Validate connects with the token and returns the bot's username. Used by
// the admin surface to check a credential before assigning it.
func (a *Adapter) Validate(ctx context.Context, token string) (string, error) {
	sess, err := a.session(ctx, token)
	if err != nil {
		return "", err
	}
	if sess.State != nil && sess.State.User != nil {
		return sess.State.User.Username, nil
	}
	return "", nil
}

// Channels returns the guild's text channels visible to the credential.
func (a *Adapter) Channels(ctx context.Context, token string) ([]Channel, error) {
	sess, err := a.session(ctx, token)
	if err != nil {
		return nil, err
	}
	guildChannels, err := sess.GuildChannels(a.guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: list channels: %v", ErrUpstream, err)
	}
	items := make([]Channel, 0, len(guildChannels))
	for _, ch := range guildChannels {
		if ch == nil || ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		items = append(items, Channel{ID: ch.ID, Name: ch.Name})
	}
	return items, nil
}

// History returns up to limit recent messages for the channel, newest first.
func (a *Adapter) History(ctx context.Context, token, channelID string, limit int) ([]messages.CachedMessage, error) {
	sess, err := a.session(ctx, token)
	if err != nil {
		return nil, err
	}
	raw, err := fetchHistory(sess, channelID, limit, a.pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch history: %v", ErrUpstream, err)
	}
	batch := make([]messages.CachedMessage, 0, len(raw))
	for _, m := range raw {
		batch = append(batch, MapMessage(m))
	}
	return batch, nil
}

// FetchMessage looks up a single message, typically a reply target that was
// not part of the current batch. A deleted or otherwise missing message is
// reported via found=false, not as an error.
func (a *Adapter) FetchMessage(ctx context.Context, token, channelID, messageID string) (messages.CachedMessage, bool, error) {
	sess, err := a.session(ctx, token)
	if err != nil {
		return messages.CachedMessage{}, false, err
	}
	m, err := sess.ChannelMessage(channelID, messageID)
	if err != nil {
		if isUnknownMessage(err) {
			return messages.CachedMessage{}, false, nil
		}
		return messages.CachedMessage{}, false, fmt.Errorf("%w: fetch message: %v", ErrUpstream, err)
	}
	return MapMessage(m), true, nil
}

// Send relays one message into the channel.
func (a *Adapter) Send(ctx context.Context, token, channelID string, req SendRequest) error {
	sess, err := a.session(ctx, token)
	if err != nil {
		return err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}

	data := &discordgo.MessageSend{Content: truncateText(req.Text)}
	if req.ImageURL != "" {
		data.Embeds = []*discordgo.MessageEmbed{{
			Image: &discordgo.MessageEmbedImage{URL: req.ImageURL},
		}}
	}
	if req.StickerID != "" {
		data.StickerIDs = []string{req.StickerID}
	}
	if req.ReplyTo != "" {
		data.Reference = &discordgo.MessageReference{
			ChannelID: channelID,
			MessageID: req.ReplyTo,
		}
	}
	if _, err := sess.ChannelMessageSendComplex(channelID, data); err != nil {
		return fmt.Errorf("%w: send: %v", ErrUpstream, err)
	}
	return nil
}

// Stickers returns guild stickers plus standard pack stickers. Pack lookup
// failure is non-fatal; the guild set is still returned.
func (a *Adapter) Stickers(ctx context.Context, token string) ([]StickerInfo, error) {
	sess, err := a.session(ctx, token)
	if err != nil {
		return nil, err
	}

	body, err := sess.Request("GET", discordgo.EndpointGuild(a.guildID)+"/stickers", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: guild stickers: %v", ErrUpstream, err)
	}
	var guildStickers []*discordgo.Sticker
	if err := json.Unmarshal(body, &guildStickers); err != nil {
		return nil, fmt.Errorf("%w: decode guild stickers: %v", ErrUpstream, err)
	}

	items := make([]StickerInfo, 0, len(guildStickers))
	for _, st := range guildStickers {
		if st == nil {
			continue
		}
		items = append(items, StickerInfo{ID: st.ID, Name: st.Name, URL: stickerURL(st.ID)})
	}

	packBody, err := sess.Request("GET", discordgo.EndpointAPI+"sticker-packs", nil)
	if err != nil {
		a.logger.Warn("sticker packs fetch failed", slog.Any("error", err))
		return items, nil
	}
	var packs struct {
		StickerPacks []struct {
			Stickers []*discordgo.Sticker `json:"stickers"`
		} `json:"sticker_packs"`
	}
	if err := json.Unmarshal(packBody, &packs); err != nil {
		a.logger.Warn("sticker packs decode failed", slog.Any("error", err))
		return items, nil
	}
	for _, pack := range packs.StickerPacks {
		for _, st := range pack.Stickers {
			if st == nil {
				continue
			}
			items = append(items, StickerInfo{ID: st.ID, Name: st.Name, URL: stickerURL(st.ID)})
		}
	}
	return items, nil
}

// SearchMembers matches guild members by username prefix.
func (a *Adapter) SearchMembers(ctx context.Context, token, query string, limit int) ([]Member, error) {
	sess, err := a.session(ctx, token)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	found, err := sess.GuildMembersSearch(a.guildID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: member search: %v", ErrUpstream, err)
	}
	items := make([]Member, 0, len(found))
	for _, member := range found {
		if member == nil || member.User == nil {
			continue
		}
		items = append(items, Member{
			ID:          member.User.ID,
			Username:    member.User.Username,
			DisplayName: member.Nick,
			AvatarURL:   member.User.AvatarURL("64"),
		})
	}
	return items, nil
}

// Close tears down every session. Later calls reconnect lazily.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for token, sess := range a.sessions {
		if remove := a.handlerRemovers[token]; remove != nil {
			remove()
		}
		if err := sess.Close(); err != nil {
			a.logger.Warn("session close failed", slog.Any("error", err))
		}
	}
	a.sessions = make(map[string]*discordgo.Session)
	a.handlerRemovers = make(map[string]func())
}

// session returns the ready session for a token, opening one if needed. The
// write lock is held across the open so concurrent callers wait for a single
// connect instead of racing to create duplicates.
func (a *Adapter) session(ctx context.Context, token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: bot token is required", ErrConnection)
	}

	a.mu.RLock()
	sess, ok := a.sessions[token]
	a.mu.RUnlock()
	if ok {
		return sess, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if sess, ok := a.sessions[token]; ok {
		return sess, nil
	}

	sess, remove, err := a.open(ctx, token)
	if err != nil {
		return nil, err
	}
	a.sessions[token] = sess
	if remove != nil {
		a.handlerRemovers[token] = remove
	}
	return sess, nil
}

func (a *Adapter) open(ctx context.Context, token string) (*discordgo.Session, func(), error) {
	sess, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	sess.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	ready := make(chan struct{})
	sess.AddHandlerOnce(func(s *discordgo.Session, r *discordgo.Ready) {
		close(ready)
	})

	var remove func()
	if a.sink != nil {
		remove = sess.AddHandler(a.inboundHandler())
	}

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err := sess.Open(); err != nil {
			lastErr = err
			a.logger.Warn("connect attempt failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				return nil, nil, fmt.Errorf("%w: %v", ErrConnection, ctx.Err())
			case <-time.After(time.Duration(attempt) * connectBackoff):
			}
			continue
		}

		select {
		case <-ready:
			return sess, remove, nil
		case <-time.After(readyTimeout):
			lastErr = fmt.Errorf("session ready timeout")
			_ = sess.Close()
		case <-ctx.Done():
			_ = sess.Close()
			return nil, nil, fmt.Errorf("%w: %v", ErrConnection, ctx.Err())
		}
	}
	if remove != nil {
		remove()
	}
	return nil, nil, fmt.Errorf("%w after %d attempts: %v", ErrConnection, connectAttempts, lastErr)
}

func (a *Adapter) inboundHandler() func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Message == nil {
			return
		}
		msg := MapMessage(m.Message)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), inboundPersistTimeout)
			defer cancel()
			if err := a.sink.UpsertBatch(ctx, []messages.CachedMessage{msg}); err != nil {
				a.logger.Error("persist inbound failed",
					slog.String("message_id", msg.ID),
					slog.Any("error", err),
				)
			}
		}()
	}
}

func truncateText(text string) string {
	if len(text) > discordMaxLength {
		text = text[:discordMaxLength-3] + "..."
	}
	return text
}

func stickerURL(id string) string {
	return "https://cdn.discordapp.com/stickers/" + id + ".png"
}

func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownMessage
	}
	return false
}
