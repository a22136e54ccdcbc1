package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hellolucient/nether-chat-sub000/internal/credentials"
	"github.com/hellolucient/nether-chat-sub000/internal/grants"
)

// CredentialAssigner writes per-wallet bot credentials.
type CredentialAssigner interface {
	CredentialSource
	Assign(ctx context.Context, wallet, token, displayName string) (credentials.Credential, error)
}

// GrantWriter manages wallet to channel mappings.
type GrantWriter interface {
	AccessChecker
	Get(ctx context.Context, wallet string) (grants.Grant, error)
	Upsert(ctx context.Context, wallet string, channelIDs []string, isAdmin bool) (grants.Grant, error)
}

// BotValidator checks a bot token against the upstream gateway.
type BotValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

type AdminHandler struct {
	creds  CredentialAssigner
	grants GrantWriter
	gw     BotValidator
	logger *slog.Logger
}

func NewAdminHandler(log *slog.Logger, creds CredentialAssigner, grantSvc GrantWriter, gw BotValidator) *AdminHandler {
	return &AdminHandler{
		creds:  creds,
		grants: grantSvc,
		gw:     gw,
		logger: log.With(slog.String("handler", "admin")),
	}
}

func (h *AdminHandler) Register(e *echo.Echo) {
	e.POST("/admin/assign-bot", h.AssignBot)
	e.POST("/admin/validate-bot", h.ValidateBot)
}

type AssignBotRequest struct {
	Wallet      string   `json:"wallet" validate:"required"`
	Token       string   `json:"token" validate:"required"`
	DisplayName string   `json:"displayName"`
	ChannelIDs  []string `json:"channelIds"`
}

type AssignBotResponse struct {
	Wallet      string   `json:"wallet"`
	DisplayName string   `json:"displayName"`
	ChannelIDs  []string `json:"channelIds"`
}

// AssignBot godoc
// @Summary Assign a bot credential and channel grants to a wallet
// @Tags admin
// @Param payload body AssignBotRequest true "Assignment"
// @Success 200 {object} AssignBotResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/assign-bot [post]
func (h *AdminHandler) AssignBot(c echo.Context) error {
	if _, err := requireAdmin(c, h.grants); err != nil {
		return err
	}
	var req AssignBotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	wallet := strings.TrimSpace(req.Wallet)
	ctx := c.Request().Context()

	cred, err := h.creds.Assign(ctx, wallet, strings.TrimSpace(req.Token), strings.TrimSpace(req.DisplayName))
	if err != nil {
		return mapError(err)
	}

	// Assigning a bot never demotes an existing admin.
	isAdmin := false
	if existing, err := h.grants.Get(ctx, wallet); err == nil {
		isAdmin = existing.IsAdmin
	} else if !errors.Is(err, grants.ErrGrantNotFound) {
		return mapError(err)
	}
	grant, err := h.grants.Upsert(ctx, wallet, req.ChannelIDs, isAdmin)
	if err != nil {
		return mapError(err)
	}

	h.logger.Info("bot assigned",
		slog.String("wallet", wallet),
		slog.Int("channels", len(grant.ChannelIDs)),
	)
	return c.JSON(http.StatusOK, AssignBotResponse{
		Wallet:      cred.WalletAddress,
		DisplayName: cred.DisplayName,
		ChannelIDs:  grant.ChannelIDs,
	})
}

type ValidateBotRequest struct {
	Token string `json:"token" validate:"required"`
}

type ValidateBotResponse struct {
	Valid   bool   `json:"valid"`
	BotName string `json:"botName,omitempty"`
}

// ValidateBot godoc
// @Summary Check whether a bot token can authenticate
// @Tags admin
// @Param payload body ValidateBotRequest true "Token"
// @Success 200 {object} ValidateBotResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/validate-bot [post]
func (h *AdminHandler) ValidateBot(c echo.Context) error {
	if _, err := requireAdmin(c, h.grants); err != nil {
		return err
	}
	var req ValidateBotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	name, err := h.gw.Validate(c.Request().Context(), strings.TrimSpace(req.Token))
	if err != nil {
		h.logger.Warn("bot validation failed", slog.Any("error", err))
		return c.JSON(http.StatusOK, ValidateBotResponse{Valid: false})
	}
	return c.JSON(http.StatusOK, ValidateBotResponse{Valid: true, BotName: name})
}
