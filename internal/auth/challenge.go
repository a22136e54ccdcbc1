package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

const (
	challengeTTL = 5 * time.Minute
	// challengePrefix is signed together with the nonce so a stolen
	// signature cannot be replayed against another service.
	challengePrefix = "netherchat login: "
)

var (
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrBadSignature      = errors.New("signature verification failed")
)

type challenge struct {
	wallet    string
	expiresAt time.Time
}

// ChallengeStore issues one-time login nonces and verifies wallet signatures
// over them. Solana wallet addresses are base58-encoded ed25519 public keys,
// so verification needs nothing beyond the address itself.
type ChallengeStore struct {
	mu      sync.Mutex
	pending map[string]challenge
	now     func() time.Time
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		pending: make(map[string]challenge),
		now:     time.Now,
	}
}

// Issue creates a nonce bound to the wallet. The wallet address is validated
// as a well-formed public key before any state is kept.
func (s *ChallengeStore) Issue(wallet string) (string, time.Time, error) {
	if _, err := decodeWallet(wallet); err != nil {
		return "", time.Time{}, err
	}

	nonce := uuid.NewString()
	expiresAt := s.now().UTC().Add(challengeTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, ch := range s.pending {
		if ch.expiresAt.Before(s.now().UTC()) {
			delete(s.pending, key)
		}
	}
	s.pending[nonce] = challenge{wallet: wallet, expiresAt: expiresAt}
	return nonce, expiresAt, nil
}

// Verify checks the base58 signature over the issued nonce and consumes it.
// A nonce is single-use whether or not verification succeeds.
func (s *ChallengeStore) Verify(wallet, nonce, signature string) error {
	s.mu.Lock()
	ch, ok := s.pending[nonce]
	delete(s.pending, nonce)
	s.mu.Unlock()

	if !ok || ch.wallet != wallet || ch.expiresAt.Before(s.now().UTC()) {
		return ErrChallengeNotFound
	}

	pub, err := decodeWallet(wallet)
	if err != nil {
		return err
	}
	sig, err := base58.Decode(strings.TrimSpace(signature))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrBadSignature
	}
	if !ed25519.Verify(pub, []byte(challengePrefix+nonce), sig) {
		return ErrBadSignature
	}
	return nil
}

// SignedMessage returns the exact bytes a wallet must sign for the nonce.
func SignedMessage(nonce string) []byte {
	return []byte(challengePrefix + nonce)
}

func decodeWallet(wallet string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(wallet))
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid wallet address: expected %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
