package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hellolucient/nether-chat-sub000/internal/messages"
)

// Gateway is the slice of the chat gateway the syncer uses.
type Gateway interface {
	History(ctx context.Context, token, channelID string, limit int) ([]messages.CachedMessage, error)
	FetchMessage(ctx context.Context, token, channelID, messageID string) (messages.CachedMessage, bool, error)
}

// Store is the slice of the message cache the syncer uses.
type Store interface {
	UpsertBatch(ctx context.Context, batch []messages.CachedMessage) error
	Get(ctx context.Context, id string) (messages.CachedMessage, error)
}

// CredentialSource selects the bot token for a wallet.
type CredentialSource interface {
	Token(ctx context.Context, wallet, fallback string) (string, error)
}

// Service reconciles the message cache for one channel with the chat service
// on demand.
type Service struct {
	logger        *slog.Logger
	gw            Gateway
	store         Store
	creds         CredentialSource
	fallbackToken string
	defaultLimit  int
}

func NewService(log *slog.Logger, gw Gateway, store Store, creds CredentialSource, fallbackToken string, defaultLimit int) *Service {
	if log == nil {
		log = slog.Default()
	}
	if defaultLimit <= 0 {
		defaultLimit = 300
	}
	return &Service{
		logger:        log.With(slog.String("service", "syncer")),
		gw:            gw,
		store:         store,
		creds:         creds,
		fallbackToken: fallbackToken,
		defaultLimit:  defaultLimit,
	}
}

// SyncChannel pulls recent history and upserts it into the cache. The wallet
// only selects which credential to use. Re-running with an overlapping
// window is safe because rows are keyed by the external message id. A fetch
// failure aborts the sync; rows upserted by earlier syncs stay as they are,
// there is no compensating rollback.
func (s *Service) SyncChannel(ctx context.Context, wallet, channelID string, limit int) (int, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return 0, fmt.Errorf("channel id is required")
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	token, err := s.creds.Token(ctx, wallet, s.fallbackToken)
	if err != nil {
		return 0, fmt.Errorf("select credential: %w", err)
	}

	batch, err := s.gw.History(ctx, token, channelID, limit)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	index := make(map[string]messages.CachedMessage, len(batch))
	for _, msg := range batch {
		index[msg.ID] = msg
	}
	resolver := newReplyResolver(
		batchStrategy(index),
		liveStrategy(s.gw, token),
		cacheStrategy(s.store),
	)

	for i := range batch {
		msg := &batch[i]
		if msg.ReferencedMessageID == "" || msg.ReferencedContent != "" || msg.ReferencedAuthorID != "" {
			continue
		}
		ref, ok := resolver.Resolve(ctx, channelID, msg.ReferencedMessageID)
		if !ok {
			s.logger.Debug("reply reference unresolvable",
				slog.String("message_id", msg.ID),
				slog.String("referenced_id", msg.ReferencedMessageID),
			)
			continue
		}
		msg.ReferencedAuthorID = ref.AuthorID
		msg.ReferencedContent = ref.Content
	}

	if err := s.store.UpsertBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("upsert batch: %w", err)
	}
	s.logger.Info("channel synced",
		slog.String("channel_id", channelID),
		slog.Int("messages", len(batch)),
	)
	return len(batch), nil
}
