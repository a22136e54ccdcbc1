package syncer

import (
	"context"

	"github.com/hellolucient/nether-chat-sub000/internal/messages"
)

// Reference is the resolved author and content of a reply target.
type Reference struct {
	AuthorID string
	Content  string
}

// resolveFunc is one lookup strategy for a reply target. found=false moves
// resolution to the next strategy; an error aborts only that strategy.
type resolveFunc func(ctx context.Context, channelID, messageID string) (Reference, bool, error)

type strategy struct {
	name    string
	resolve resolveFunc
}

// replyResolver resolves reply references through an ordered strategy chain:
// the freshly fetched batch first, then a live fetch from the chat service,
// then the local cache. A reference no strategy can satisfy is terminal and
// the message keeps empty reference fields.
type replyResolver struct {
	strategies []strategy
}

func newReplyResolver(strategies ...strategy) *replyResolver {
	return &replyResolver{strategies: strategies}
}

func (r *replyResolver) Resolve(ctx context.Context, channelID, messageID string) (Reference, bool) {
	for _, st := range r.strategies {
		ref, found, err := st.resolve(ctx, channelID, messageID)
		if err != nil {
			continue
		}
		if found {
			return ref, true
		}
	}
	return Reference{}, false
}

func batchStrategy(index map[string]messages.CachedMessage) strategy {
	return strategy{
		name: "batch",
		resolve: func(ctx context.Context, channelID, messageID string) (Reference, bool, error) {
			msg, ok := index[messageID]
			if !ok {
				return Reference{}, false, nil
			}
			return Reference{AuthorID: msg.SenderID, Content: msg.Content}, true, nil
		},
	}
}

func liveStrategy(gw Gateway, token string) strategy {
	return strategy{
		name: "live",
		resolve: func(ctx context.Context, channelID, messageID string) (Reference, bool, error) {
			msg, found, err := gw.FetchMessage(ctx, token, channelID, messageID)
			if err != nil || !found {
				return Reference{}, false, err
			}
			return Reference{AuthorID: msg.SenderID, Content: msg.Content}, true, nil
		},
	}
}

func cacheStrategy(store Store) strategy {
	return strategy{
		name: "cache",
		resolve: func(ctx context.Context, channelID, messageID string) (Reference, bool, error) {
			msg, err := store.Get(ctx, messageID)
			if err != nil {
				return Reference{}, false, err
			}
			return Reference{AuthorID: msg.SenderID, Content: msg.Content}, true, nil
		},
	}
}
