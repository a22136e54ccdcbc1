package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hellolucient/nether-chat-sub000/internal/gifs"
)

const defaultGifLimit = 24

// GifSearcher queries an external GIF catalogue.
type GifSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]gifs.GIF, error)
}

type GifsHandler struct {
	svc    GifSearcher
	logger *slog.Logger
}

func NewGifsHandler(log *slog.Logger, svc GifSearcher) *GifsHandler {
	return &GifsHandler{svc: svc, logger: log.With(slog.String("handler", "gifs"))}
}

func (h *GifsHandler) Register(e *echo.Echo) {
	e.GET("/gifs/search", h.SearchGifs)
}

type GifSearchResponse struct {
	Gifs []gifs.GIF `json:"gifs"`
}

// SearchGifs godoc
// @Summary Search GIFs to attach to a message
// @Tags gifs
// @Param q query string true "Search terms"
// @Param limit query int false "Maximum results"
// @Success 200 {object} GifSearchResponse
// @Failure 400 {object} ErrorResponse
// @Router /gifs/search [get]
func (h *GifsHandler) SearchGifs(c echo.Context) error {
	if _, err := requireWallet(c); err != nil {
		return err
	}
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}
	limit := defaultGifLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	results, err := h.svc.Search(c.Request().Context(), query, limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, GifSearchResponse{Gifs: results})
}
