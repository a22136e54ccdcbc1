package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hellolucient/nether-chat-sub000/internal/gateway"
)

// StickerGateway lists the stickers a bot token can use.
type StickerGateway interface {
	Stickers(ctx context.Context, token string) ([]gateway.StickerInfo, error)
}

type StickersHandler struct {
	gw            StickerGateway
	creds         CredentialSource
	fallbackToken string
	logger        *slog.Logger
}

func NewStickersHandler(log *slog.Logger, gw StickerGateway, creds CredentialSource, fallbackToken string) *StickersHandler {
	return &StickersHandler{
		gw:            gw,
		creds:         creds,
		fallbackToken: fallbackToken,
		logger:        log.With(slog.String("handler", "stickers")),
	}
}

func (h *StickersHandler) Register(e *echo.Echo) {
	e.GET("/stickers", h.ListStickers)
}

type StickerListResponse struct {
	Stickers []gateway.StickerInfo `json:"stickers"`
}

// ListStickers godoc
// @Summary List stickers available to the wallet's bot
// @Tags stickers
// @Success 200 {object} StickerListResponse
// @Failure 400 {object} ErrorResponse
// @Router /stickers [get]
func (h *StickersHandler) ListStickers(c echo.Context) error {
	wallet, err := requireWallet(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	token, err := h.creds.Token(ctx, wallet, h.fallbackToken)
	if err != nil {
		return mapError(err)
	}

	stickers, err := h.gw.Stickers(ctx, token)
	if err != nil {
		// A token that cannot open a session is a bad credential from the
		// caller's point of view.
		if errors.Is(err, gateway.ErrConnection) {
			return echo.NewHTTPError(http.StatusBadRequest, "bot token could not authenticate")
		}
		return mapError(err)
	}
	return c.JSON(http.StatusOK, StickerListResponse{Stickers: stickers})
}
