package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/hellolucient/nether-chat-sub000/internal/auth"
	"github.com/hellolucient/nether-chat-sub000/internal/credentials"
	"github.com/hellolucient/nether-chat-sub000/internal/gateway"
	"github.com/hellolucient/nether-chat-sub000/internal/grants"
	"github.com/hellolucient/nether-chat-sub000/internal/messages"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Message string `json:"message"`
}

// CredentialSource selects bot tokens for wallets.
type CredentialSource interface {
	Token(ctx context.Context, wallet, fallback string) (string, error)
	Get(ctx context.Context, wallet string) (credentials.Credential, error)
}

// AccessChecker answers authorization questions about wallets.
type AccessChecker interface {
	HasChannel(ctx context.Context, wallet, channelID string) (bool, error)
	IsAdmin(ctx context.Context, wallet string) (bool, error)
}

// Validator adapts go-playground/validator to echo's Validator interface.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// requireWallet extracts the authenticated wallet from the JWT claims.
func requireWallet(c echo.Context) (string, error) {
	return auth.WalletFromContext(c)
}

// requireAdmin extracts the wallet and rejects non-operators.
func requireAdmin(c echo.Context, checker AccessChecker) (string, error) {
	wallet, err := requireWallet(c)
	if err != nil {
		return "", err
	}
	isAdmin, err := checker.IsAdmin(c.Request().Context(), wallet)
	if err != nil {
		return "", mapError(err)
	}
	if !isAdmin {
		return "", echo.NewHTTPError(http.StatusForbidden, "admin access required")
	}
	return wallet, nil
}

// authorizeChannel enforces the grant boundary: admins pass, everyone else
// needs the channel in their grant.
func authorizeChannel(c echo.Context, checker AccessChecker, wallet, channelID string) error {
	ctx := c.Request().Context()
	isAdmin, err := checker.IsAdmin(ctx, wallet)
	if err != nil {
		return mapError(err)
	}
	if isAdmin {
		return nil
	}
	ok, err := checker.HasChannel(ctx, wallet, channelID)
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, "wallet lacks access to channel")
	}
	return nil
}

// mapError translates service errors to HTTP statuses: connection failures
// are 503, upstream rejections 400, missing rows 404, everything else 500.
func mapError(err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	switch {
	case errors.Is(err, gateway.ErrConnection):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, gateway.ErrUpstream):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, grants.ErrGrantNotFound),
		errors.Is(err, credentials.ErrCredentialNotFound),
		errors.Is(err, messages.ErrMessageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
