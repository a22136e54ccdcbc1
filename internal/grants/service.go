package grants

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

var ErrGrantNotFound = errors.New("grant not found")

// Grant is a wallet's authorized channel set plus its admin flag.
type Grant struct {
	WalletAddress string    `json:"wallet_address"`
	ChannelIDs    []string  `json:"channel_ids"`
	IsAdmin       bool      `json:"is_admin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Service manages access grants. Channel membership lives in the
// wallet_channels join table; the grant row carries the admin flag.
type Service struct {
	db        dbpkg.DBTX
	logger    *slog.Logger
	allowlist map[string]struct{}
}

// NewService creates a grant service. allowlist wallets are admins
// regardless of their stored grant.
func NewService(log *slog.Logger, db dbpkg.DBTX, allowlist []string) *Service {
	if log == nil {
		log = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowlist))
	for _, w := range allowlist {
		if w = strings.TrimSpace(w); w != "" {
			allowed[w] = struct{}{}
		}
	}
	return &Service{
		db:        db,
		logger:    log.With(slog.String("service", "grants")),
		allowlist: allowed,
	}
}

// Upsert creates or updates a grant and replaces its channel set. The delete
// and re-insert are separate round trips; a reader racing this sees either
// set, never a corrupt one.
func (s *Service) Upsert(ctx context.Context, wallet string, channelIDs []string, isAdmin bool) (Grant, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return Grant{}, fmt.Errorf("wallet address is required")
	}

	var grant Grant
	row := s.db.QueryRow(ctx, `
		INSERT INTO access_grants (wallet_address, is_admin)
		VALUES ($1, $2)
		ON CONFLICT (wallet_address) DO UPDATE
		SET is_admin = EXCLUDED.is_admin,
		    updated_at = now()
		RETURNING wallet_address, is_admin, created_at, updated_at`,
		wallet, isAdmin)
	if err := row.Scan(&grant.WalletAddress, &grant.IsAdmin, &grant.CreatedAt, &grant.UpdatedAt); err != nil {
		return Grant{}, err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM wallet_channels WHERE wallet_address = $1`, wallet); err != nil {
		return Grant{}, err
	}
	for _, channelID := range channelIDs {
		channelID = strings.TrimSpace(channelID)
		if channelID == "" {
			continue
		}
		if _, err := s.db.Exec(ctx, `
			INSERT INTO wallet_channels (wallet_address, channel_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			wallet, channelID); err != nil {
			return Grant{}, err
		}
		grant.ChannelIDs = append(grant.ChannelIDs, channelID)
	}
	return grant, nil
}

// Get returns the grant for a wallet, including its channel set.
func (s *Service) Get(ctx context.Context, wallet string) (Grant, error) {
	wallet = strings.TrimSpace(wallet)

	var grant Grant
	row := s.db.QueryRow(ctx, `
		SELECT wallet_address, is_admin, created_at, updated_at
		FROM access_grants
		WHERE wallet_address = $1`, wallet)
	if err := row.Scan(&grant.WalletAddress, &grant.IsAdmin, &grant.CreatedAt, &grant.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, ErrGrantNotFound
		}
		return Grant{}, err
	}

	channelIDs, err := s.ListChannelIDs(ctx, wallet)
	if err != nil {
		return Grant{}, err
	}
	grant.ChannelIDs = channelIDs
	return grant, nil
}

// ListChannelIDs returns the channel ids granted to a wallet.
func (s *Service) ListChannelIDs(ctx context.Context, wallet string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT channel_id
		FROM wallet_channels
		WHERE wallet_address = $1
		ORDER BY channel_id`, strings.TrimSpace(wallet))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channelIDs := make([]string, 0)
	for rows.Next() {
		var channelID string
		if err := rows.Scan(&channelID); err != nil {
			return nil, err
		}
		channelIDs = append(channelIDs, channelID)
	}
	return channelIDs, rows.Err()
}

// HasChannel reports whether the wallet is granted the channel.
func (s *Service) HasChannel(ctx context.Context, wallet, channelID string) (bool, error) {
	var exists bool
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM wallet_channels
			WHERE wallet_address = $1 AND channel_id = $2
		)`, strings.TrimSpace(wallet), strings.TrimSpace(channelID))
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// IsAdmin reports whether the wallet is an operator, either via the static
// allow-list or the stored grant flag.
func (s *Service) IsAdmin(ctx context.Context, wallet string) (bool, error) {
	wallet = strings.TrimSpace(wallet)
	if _, ok := s.allowlist[wallet]; ok {
		return true, nil
	}
	grant, err := s.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return false, nil
		}
		return false, err
	}
	return grant.IsAdmin, nil
}

// PruneUnknownChannels removes channel mappings that no longer exist
// upstream. Returns the number of rows removed.
func (s *Service) PruneUnknownChannels(ctx context.Context, liveChannelIDs []string) (int64, error) {
	if len(liveChannelIDs) == 0 {
		return 0, fmt.Errorf("live channel list is empty")
	}
	tag, err := s.db.Exec(ctx, `
		DELETE FROM wallet_channels
		WHERE NOT (channel_id = ANY($1))`, liveChannelIDs)
	if err != nil {
		return 0, err
	}
	removed := tag.RowsAffected()
	if removed > 0 {
		s.logger.Info("pruned stale channel mappings", slog.Int64("removed", removed))
	}
	return removed, nil
}
