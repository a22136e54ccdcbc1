package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hellolucient/nether-chat-sub000/internal/gateway"
)

// ChannelGateway is the slice of the chat gateway the channel surface uses.
type ChannelGateway interface {
	Channels(ctx context.Context, token string) ([]gateway.Channel, error)
}

// GrantPruner rebuilds channel-to-wallet mappings against the live set.
type GrantPruner interface {
	AccessChecker
	ListChannelIDs(ctx context.Context, wallet string) ([]string, error)
	PruneUnknownChannels(ctx context.Context, liveChannelIDs []string) (int64, error)
}

// UnreadEvaluator computes the wallet's unread channel set.
type UnreadEvaluator interface {
	Evaluate(ctx context.Context, wallet string) []string
}

type ChannelsHandler struct {
	gw            ChannelGateway
	grants        GrantPruner
	creds         CredentialSource
	unread        UnreadEvaluator
	fallbackToken string
	logger        *slog.Logger
}

func NewChannelsHandler(log *slog.Logger, gw ChannelGateway, grantSvc GrantPruner, creds CredentialSource, unread UnreadEvaluator, fallbackToken string) *ChannelsHandler {
	return &ChannelsHandler{
		gw:            gw,
		grants:        grantSvc,
		creds:         creds,
		unread:        unread,
		fallbackToken: fallbackToken,
		logger:        log.With(slog.String("handler", "channels")),
	}
}

func (h *ChannelsHandler) Register(e *echo.Echo) {
	group := e.Group("/channels")
	group.GET("", h.ListChannels)
	group.POST("/sync", h.SyncMappings)
	group.GET("/unread", h.UnreadChannels)
}

type ChannelListResponse struct {
	Channels []gateway.Channel `json:"channels"`
}

// ListChannels godoc
// @Summary List channels visible to the wallet
// @Description List live text channels, filtered to the wallet's grant unless it is an admin
// @Tags channels
// @Success 200 {object} ChannelListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /channels [get]
func (h *ChannelsHandler) ListChannels(c echo.Context) error {
	wallet, err := requireWallet(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	token, err := h.creds.Token(ctx, wallet, h.fallbackToken)
	if err != nil {
		return mapError(err)
	}
	live, err := h.gw.Channels(ctx, token)
	if err != nil {
		return mapError(err)
	}

	isAdmin, err := h.grants.IsAdmin(ctx, wallet)
	if err != nil {
		return mapError(err)
	}
	if isAdmin {
		return c.JSON(http.StatusOK, ChannelListResponse{Channels: live})
	}

	granted, err := h.grants.ListChannelIDs(ctx, wallet)
	if err != nil {
		return mapError(err)
	}
	grantedSet := make(map[string]struct{}, len(granted))
	for _, id := range granted {
		grantedSet[id] = struct{}{}
	}
	visible := make([]gateway.Channel, 0, len(granted))
	for _, ch := range live {
		if _, ok := grantedSet[ch.ID]; ok {
			visible = append(visible, ch)
		}
	}
	return c.JSON(http.StatusOK, ChannelListResponse{Channels: visible})
}

// SyncMappings godoc
// @Summary Rebuild channel-to-wallet mappings
// @Description Remove grant mappings whose channel no longer exists upstream
// @Tags channels
// @Success 200 {object} map[string]int64
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /channels/sync [post]
func (h *ChannelsHandler) SyncMappings(c echo.Context) error {
	if _, err := requireAdmin(c, h.grants); err != nil {
		return err
	}
	ctx := c.Request().Context()

	live, err := h.gw.Channels(ctx, h.fallbackToken)
	if err != nil {
		return mapError(err)
	}
	liveIDs := make([]string, 0, len(live))
	for _, ch := range live {
		liveIDs = append(liveIDs, ch.ID)
	}
	removed, err := h.grants.PruneUnknownChannels(ctx, liveIDs)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"removed": removed})
}

type UnreadResponse struct {
	UnreadChannels []string `json:"unreadChannels"`
}

// UnreadChannels godoc
// @Summary List channels with unread activity
// @Tags channels
// @Success 200 {object} UnreadResponse
// @Router /channels/unread [get]
func (h *ChannelsHandler) UnreadChannels(c echo.Context) error {
	wallet, err := requireWallet(c)
	if err != nil {
		return err
	}
	unread := h.unread.Evaluate(c.Request().Context(), wallet)
	return c.JSON(http.StatusOK, UnreadResponse{UnreadChannels: unread})
}
