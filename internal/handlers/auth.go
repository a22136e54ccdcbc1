package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hellolucient/nether-chat-sub000/internal/auth"
)

// AuthHandler implements the wallet challenge/response login. The wallet
// proves ownership by signing a server nonce with the key its address
// encodes; trusting a bare client-asserted address is deliberately not
// supported.
type AuthHandler struct {
	challenges *auth.ChallengeStore
	jwtSecret  string
	expiresIn  time.Duration
	logger     *slog.Logger
}

func NewAuthHandler(log *slog.Logger, challenges *auth.ChallengeStore, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	return &AuthHandler{
		challenges: challenges,
		jwtSecret:  jwtSecret,
		expiresIn:  expiresIn,
		logger:     log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	group := e.Group("/auth")
	group.POST("/challenge", h.Challenge)
	group.POST("/login", h.Login)
}

type ChallengeRequest struct {
	Wallet string `json:"wallet" validate:"required"`
}

type ChallengeResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Challenge godoc
// @Summary Issue a login challenge
// @Description Issue a one-time nonce the wallet must sign to log in
// @Tags auth
// @Param payload body ChallengeRequest true "Wallet address"
// @Success 200 {object} ChallengeResponse
// @Failure 400 {object} ErrorResponse
// @Router /auth/challenge [post]
func (h *AuthHandler) Challenge(c echo.Context) error {
	var req ChallengeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	nonce, expiresAt, err := h.challenges.Issue(req.Wallet)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ChallengeResponse{
		Nonce:     nonce,
		Message:   string(auth.SignedMessage(nonce)),
		ExpiresAt: expiresAt,
	})
}

type LoginRequest struct {
	Wallet    string `json:"wallet" validate:"required"`
	Nonce     string `json:"nonce" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login godoc
// @Summary Exchange a signed challenge for a session token
// @Tags auth
// @Param payload body LoginRequest true "Signed challenge"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.challenges.Verify(req.Wallet, req.Nonce, req.Signature); err != nil {
		if errors.Is(err, auth.ErrChallengeNotFound) || errors.Is(err, auth.ErrBadSignature) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token, expiresAt, err := auth.GenerateToken(req.Wallet, h.jwtSecret, h.expiresIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("wallet logged in", slog.String("wallet", req.Wallet))
	return c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}
