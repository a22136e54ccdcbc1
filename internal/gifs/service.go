package gifs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// GIF is one search result.
type GIF struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Service searches the GIF provider's HTTP API.
type Service struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewService(log *slog.Logger, baseURL, apiKey string) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		logger:  log.With(slog.String("service", "gifs")),
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Search returns up to limit GIFs matching the query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]GIF, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("gif api key not configured")
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gif search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gif search: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			ID     string `json:"id"`
			Title  string `json:"title"`
			Images struct {
				Original struct {
					URL string `json:"url"`
				} `json:"original"`
			} `json:"images"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("gif search: decode: %w", err)
	}

	items := make([]GIF, 0, len(payload.Data))
	for _, d := range payload.Data {
		items = append(items, GIF{ID: d.ID, Title: d.Title, URL: d.Images.Original.URL})
	}
	return items, nil
}
