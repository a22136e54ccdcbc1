package gateway

import "github.com/bwmarrin/discordgo"

// historySession is the slice of the Discord session used by history paging.
type historySession interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// fetchHistory walks backward from the newest message in pages, stopping on
// an empty page or once limit messages are collected. Results are newest
// first, as the chat service returns them.
func fetchHistory(sess historySession, channelID string, limit, pageSize int) ([]*discordgo.Message, error) {
	if limit <= 0 {
		limit = 300
	}

	collected := make([]*discordgo.Message, 0, limit)
	beforeID := ""
	for len(collected) < limit {
		want := pageSize
		if remaining := limit - len(collected); remaining < want {
			want = remaining
		}
		page, err := sess.ChannelMessages(channelID, want, beforeID, "", "")
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		collected = append(collected, page...)
		beforeID = page[len(page)-1].ID
		if len(page) < want {
			break
		}
	}
	return collected, nil
}
