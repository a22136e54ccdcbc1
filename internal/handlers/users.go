package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hellolucient/nether-chat-sub000/internal/gateway"
)

const memberSearchLimit = 20

// MemberGateway searches guild members by username prefix.
type MemberGateway interface {
	SearchMembers(ctx context.Context, token, query string, limit int) ([]gateway.Member, error)
}

type UsersHandler struct {
	gw     MemberGateway
	token  string
	logger *slog.Logger
}

func NewUsersHandler(log *slog.Logger, gw MemberGateway, token string) *UsersHandler {
	return &UsersHandler{
		gw:     gw,
		token:  token,
		logger: log.With(slog.String("handler", "users")),
	}
}

func (h *UsersHandler) Register(e *echo.Echo) {
	e.GET("/users/search", h.SearchUsers)
}

type UserSearchResponse struct {
	Users []gateway.Member `json:"users"`
}

// SearchUsers godoc
// @Summary Search guild members for mention completion
// @Tags users
// @Param q query string true "Username prefix"
// @Success 200 {object} UserSearchResponse
// @Failure 400 {object} ErrorResponse
// @Router /users/search [get]
func (h *UsersHandler) SearchUsers(c echo.Context) error {
	if _, err := requireWallet(c); err != nil {
		return err
	}
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}

	users, err := h.gw.SearchMembers(c.Request().Context(), h.token, query, memberSearchLimit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, UserSearchResponse{Users: users})
}
