package credentials

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

var ErrCredentialNotFound = errors.New("credential not found")

// Credential maps a wallet to its chat-service bot token. At most one
// credential exists per wallet; re-registration overwrites.
type Credential struct {
	WalletAddress string    `json:"wallet_address"`
	Token         string    `json:"-"`
	DisplayName   string    `json:"display_name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Service provides bot credential storage keyed by wallet address.
type Service struct {
	db     dbpkg.DBTX
	logger *slog.Logger
}

func NewService(log *slog.Logger, db dbpkg.DBTX) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     db,
		logger: log.With(slog.String("service", "credentials")),
	}
}

// Assign creates or replaces the credential for a wallet.
func (s *Service) Assign(ctx context.Context, wallet, token, displayName string) (Credential, error) {
	wallet = strings.TrimSpace(wallet)
	token = strings.TrimSpace(token)
	if wallet == "" {
		return Credential{}, fmt.Errorf("wallet address is required")
	}
	if token == "" {
		return Credential{}, fmt.Errorf("bot token is required")
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO bot_credentials (wallet_address, token, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE
		SET token = EXCLUDED.token,
		    display_name = EXCLUDED.display_name,
		    updated_at = now()
		RETURNING wallet_address, token, display_name, created_at, updated_at`,
		wallet, token, strings.TrimSpace(displayName))
	return scanCredential(row)
}

// Get returns the credential for a wallet.
func (s *Service) Get(ctx context.Context, wallet string) (Credential, error) {
	row := s.db.QueryRow(ctx, `
		SELECT wallet_address, token, display_name, created_at, updated_at
		FROM bot_credentials
		WHERE wallet_address = $1`,
		strings.TrimSpace(wallet))
	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrCredentialNotFound
		}
		return Credential{}, err
	}
	return cred, nil
}

// Token returns the wallet's bot token, or fallback when the wallet has no
// credential of its own.
func (s *Service) Token(ctx context.Context, wallet, fallback string) (string, error) {
	cred, err := s.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return fallback, nil
		}
		return "", err
	}
	return cred.Token, nil
}

// Delete removes the wallet's credential. Deleting a missing credential is
// not an error.
func (s *Service) Delete(ctx context.Context, wallet string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM bot_credentials WHERE wallet_address = $1`, strings.TrimSpace(wallet))
	return err
}

func scanCredential(row pgx.Row) (Credential, error) {
	var cred Credential
	if err := row.Scan(&cred.WalletAddress, &cred.Token, &cred.DisplayName, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
		return Credential{}, err
	}
	return cred, nil
}
