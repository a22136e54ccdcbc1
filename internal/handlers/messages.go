package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hellolucient/nether-chat-sub000/internal/credentials"
	"github.com/hellolucient/nether-chat-sub000/internal/gateway"
	"github.com/hellolucient/nether-chat-sub000/internal/messages"
)

// MessageStore is the slice of the message cache the handler reads.
type MessageStore interface {
	ListChannel(ctx context.Context, channelID string, limit int) ([]messages.CachedMessage, error)
}

// ReadState records and reports channel view markers.
type ReadState interface {
	MarkViewed(ctx context.Context, wallet, channelID string) error
	LastViewed(ctx context.Context, wallet, channelID string) (time.Time, bool, error)
}

// SendGateway relays outbound messages.
type SendGateway interface {
	Send(ctx context.Context, token, channelID string, req gateway.SendRequest) error
}

// ChannelSyncer pulls recent upstream history into the cache.
type ChannelSyncer interface {
	SyncChannel(ctx context.Context, wallet, channelID string, limit int) (int, error)
}

type MessagesHandler struct {
	store         MessageStore
	readState     ReadState
	access        AccessChecker
	gw            SendGateway
	syncer        ChannelSyncer
	creds         CredentialSource
	fallbackToken string
	logger        *slog.Logger
}

func NewMessagesHandler(log *slog.Logger, store MessageStore, readState ReadState, access AccessChecker, gw SendGateway, syncSvc ChannelSyncer, creds CredentialSource, fallbackToken string) *MessagesHandler {
	return &MessagesHandler{
		store:         store,
		readState:     readState,
		access:        access,
		gw:            gw,
		syncer:        syncSvc,
		creds:         creds,
		fallbackToken: fallbackToken,
		logger:        log.With(slog.String("handler", "messages")),
	}
}

func (h *MessagesHandler) Register(e *echo.Echo) {
	e.GET("/messages/:channel_id", h.ListMessages)
	e.POST("/messages/:channel_id", h.SendToChannel)
	e.POST("/messages", h.SendWithOwnBot)
}

type MessageListResponse struct {
	Messages   []messages.CachedMessage `json:"messages"`
	LastViewed *time.Time               `json:"lastViewed,omitempty"`
}

// ListMessages godoc
// @Summary List cached messages for a channel
// @Description Returns cached messages oldest to newest, syncing from upstream first, and marks the channel viewed
// @Tags messages
// @Param channel_id path string true "Channel ID"
// @Success 200 {object} MessageListResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /messages/{channel_id} [get]
func (h *MessagesHandler) ListMessages(c echo.Context) error {
	wallet, err := requireWallet(c)
	if err != nil {
		return err
	}
	channelID := strings.TrimSpace(c.Param("channel_id"))
	if channelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel id is required")
	}
	if err := authorizeChannel(c, h.access, wallet, channelID); err != nil {
		return err
	}
	ctx := c.Request().Context()

	// Best effort freshen; the cached view is still served if upstream is
	// unavailable.
	if _, err := h.syncer.SyncChannel(ctx, wallet, channelID, 0); err != nil {
		h.logger.Warn("sync before list failed",
			slog.String("channel_id", channelID),
			slog.Any("error", err),
		)
	}

	resp := MessageListResponse{}
	if lastViewed, ok, err := h.readState.LastViewed(ctx, wallet, channelID); err == nil && ok {
		resp.LastViewed = &lastViewed
	}

	items, err := h.store.ListChannel(ctx, channelID, 0)
	if err != nil {
		return mapError(err)
	}
	resp.Messages = items

	if err := h.readState.MarkViewed(ctx, wallet, channelID); err != nil {
		h.logger.Warn("mark viewed failed",
			slog.String("channel_id", channelID),
			slog.Any("error", err),
		)
	}
	return c.JSON(http.StatusOK, resp)
}

// SendMessageRequest carries plain text or a typed payload: text, image (by
// URL) or sticker (by id), optionally replying to a prior message.
type SendMessageRequest struct {
	Text    string `json:"text"`
	Type    string `json:"type"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Reply   string `json:"reply"`
}

type SendMessageResponse struct {
	Success bool `json:"success"`
}

// SendToChannel godoc
// @Summary Send a message into a channel
// @Description Relays using the wallet's bot when assigned, the global bot otherwise
// @Tags messages
// @Param channel_id path string true "Channel ID"
// @Param payload body SendMessageRequest true "Message payload"
// @Success 200 {object} SendMessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /messages/{channel_id} [post]
func (h *MessagesHandler) SendToChannel(c echo.Context) error {
	wallet, err := requireWallet(c)
	if err != nil {
		return err
	}
	channelID := strings.TrimSpace(c.Param("channel_id"))
	if channelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel id is required")
	}
	if err := authorizeChannel(c, h.access, wallet, channelID); err != nil {
		return err
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	send, err := buildSendRequest(req)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	token, err := h.creds.Token(ctx, wallet, h.fallbackToken)
	if err != nil {
		return mapError(err)
	}
	return h.relay(c, wallet, channelID, token, send)
}

// SendWithOwnBotRequest targets a channel explicitly and requires the wallet
// to have its own bot credential.
type SendWithOwnBotRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	URL       string `json:"url"`
	Reply     string `json:"reply"`
}

// SendWithOwnBot godoc
// @Summary Send a message via the wallet's own bot credential
// @Tags messages
// @Param payload body SendWithOwnBotRequest true "Message payload"
// @Success 200 {object} SendMessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /messages [post]
func (h *MessagesHandler) SendWithOwnBot(c echo.Context) error {
	wallet, err := requireWallet(c)
	if err != nil {
		return err
	}
	var req SendWithOwnBotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	channelID := strings.TrimSpace(req.ChannelID)
	if err := authorizeChannel(c, h.access, wallet, channelID); err != nil {
		return err
	}
	send, err := buildSendRequest(SendMessageRequest{
		Text: req.Text, Type: req.Type, Content: req.Content, URL: req.URL, Reply: req.Reply,
	})
	if err != nil {
		return err
	}

	cred, err := h.creds.Get(c.Request().Context(), wallet)
	if err != nil {
		if errors.Is(err, credentials.ErrCredentialNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "no bot credential assigned to wallet")
		}
		return mapError(err)
	}
	return h.relay(c, wallet, channelID, cred.Token, send)
}

// relay sends and reports success as a boolean; upstream rejection degrades
// to success=false rather than failing the request, while a session that
// cannot be established at all is surfaced as an error.
func (h *MessagesHandler) relay(c echo.Context, wallet, channelID, token string, send gateway.SendRequest) error {
	ctx := c.Request().Context()
	if err := h.gw.Send(ctx, token, channelID, send); err != nil {
		if errors.Is(err, gateway.ErrConnection) {
			return mapError(err)
		}
		h.logger.Error("send failed",
			slog.String("channel_id", channelID),
			slog.Any("error", err),
		)
		return c.JSON(http.StatusOK, SendMessageResponse{Success: false})
	}

	if _, err := h.syncer.SyncChannel(ctx, wallet, channelID, 0); err != nil {
		h.logger.Warn("sync after send failed",
			slog.String("channel_id", channelID),
			slog.Any("error", err),
		)
	}
	if err := h.readState.MarkViewed(ctx, wallet, channelID); err != nil {
		h.logger.Warn("mark viewed failed",
			slog.String("channel_id", channelID),
			slog.Any("error", err),
		)
	}
	return c.JSON(http.StatusOK, SendMessageResponse{Success: true})
}

func buildSendRequest(req SendMessageRequest) (gateway.SendRequest, error) {
	send := gateway.SendRequest{ReplyTo: strings.TrimSpace(req.Reply)}
	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case "", "text":
		send.Text = firstNonEmpty(req.Text, req.Content)
	case "image", "gif":
		send.ImageURL = firstNonEmpty(req.URL, req.Content)
		send.Text = req.Text
	case "sticker":
		send.StickerID = firstNonEmpty(req.Content, req.URL)
	default:
		return gateway.SendRequest{}, echo.NewHTTPError(http.StatusBadRequest, "unsupported message type: "+req.Type)
	}
	if send.Text == "" && send.ImageURL == "" && send.StickerID == "" {
		return gateway.SendRequest{}, echo.NewHTTPError(http.StatusBadRequest, "message content is required")
	}
	return send, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
