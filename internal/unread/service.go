package unread

import (
	"context"
	"log/slog"
	"time"
)

// GrantSource supplies the wallet's authorized channel set.
type GrantSource interface {
	ListChannelIDs(ctx context.Context, wallet string) ([]string, error)
}

// MarkerSource supplies the wallet's read markers.
type MarkerSource interface {
	Map(ctx context.Context, wallet string) (map[string]time.Time, error)
}

// LatestSource supplies the newest cached message time per channel.
type LatestSource interface {
	LatestPerChannel(ctx context.Context, channelIDs []string) (map[string]time.Time, error)
}

// Service computes which of a wallet's channels have unread activity. Each
// channel is evaluated independently; no cross-channel ordering is implied.
type Service struct {
	logger  *slog.Logger
	grants  GrantSource
	markers MarkerSource
	latest  LatestSource
}

func NewService(log *slog.Logger, grants GrantSource, markers MarkerSource, latest LatestSource) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		logger:  log.With(slog.String("service", "unread")),
		grants:  grants,
		markers: markers,
		latest:  latest,
	}
}

// Evaluate returns the channels with cached activity newer than the wallet's
// marker. A channel with no marker compares against the epoch, so any cached
// message makes it unread. Storage failures degrade to an empty set so the
// surrounding page never fails on the unread badge alone.
func (s *Service) Evaluate(ctx context.Context, wallet string) []string {
	channelIDs, err := s.grants.ListChannelIDs(ctx, wallet)
	if err != nil {
		s.logger.Error("load grant failed", slog.String("wallet", wallet), slog.Any("error", err))
		return []string{}
	}
	if len(channelIDs) == 0 {
		return []string{}
	}

	markers, err := s.markers.Map(ctx, wallet)
	if err != nil {
		s.logger.Error("load markers failed", slog.String("wallet", wallet), slog.Any("error", err))
		return []string{}
	}
	latest, err := s.latest.LatestPerChannel(ctx, channelIDs)
	if err != nil {
		s.logger.Error("load latest failed", slog.String("wallet", wallet), slog.Any("error", err))
		return []string{}
	}

	unread := make([]string, 0, len(channelIDs))
	for _, channelID := range channelIDs {
		newest, ok := latest[channelID]
		if !ok {
			continue
		}
		if newest.After(markers[channelID]) {
			unread = append(unread, channelID)
		}
	}
	return unread
}
