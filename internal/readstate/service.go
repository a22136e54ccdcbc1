package readstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	dbpkg "github.com/hellolucient/nether-chat-sub000/internal/db"
)

// Service tracks the last time each wallet viewed each channel.
type Service struct {
	db     dbpkg.DBTX
	logger *slog.Logger
	now    func() time.Time
}

func NewService(log *slog.Logger, db dbpkg.DBTX) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     db,
		logger: log.With(slog.String("service", "readstate")),
		now:    time.Now,
	}
}

// MarkViewed records now as the wallet's last view of the channel,
// overwriting any earlier marker.
func (s *Service) MarkViewed(ctx context.Context, wallet, channelID string) error {
	wallet = strings.TrimSpace(wallet)
	channelID = strings.TrimSpace(channelID)
	if wallet == "" || channelID == "" {
		return fmt.Errorf("wallet and channel id are required")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO read_markers (wallet_address, channel_id, last_viewed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address, channel_id) DO UPDATE
		SET last_viewed_at = EXCLUDED.last_viewed_at`,
		wallet, channelID, s.now().UTC())
	return err
}

// LastViewed returns the wallet's marker for the channel. ok is false when
// the channel has never been viewed.
func (s *Service) LastViewed(ctx context.Context, wallet, channelID string) (time.Time, bool, error) {
	var lastViewed time.Time
	row := s.db.QueryRow(ctx, `
		SELECT last_viewed_at
		FROM read_markers
		WHERE wallet_address = $1 AND channel_id = $2`,
		strings.TrimSpace(wallet), strings.TrimSpace(channelID))
	if err := row.Scan(&lastViewed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return lastViewed, true, nil
}

// Map returns all of the wallet's markers keyed by channel id.
func (s *Service) Map(ctx context.Context, wallet string) (map[string]time.Time, error) {
	rows, err := s.db.Query(ctx, `
		SELECT channel_id, last_viewed_at
		FROM read_markers
		WHERE wallet_address = $1`, strings.TrimSpace(wallet))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	markers := make(map[string]time.Time)
	for rows.Next() {
		var channelID string
		var lastViewed time.Time
		if err := rows.Scan(&channelID, &lastViewed); err != nil {
			return nil, err
		}
		markers[channelID] = lastViewed
	}
	return markers, rows.Err()
}
