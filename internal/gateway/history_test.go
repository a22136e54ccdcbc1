package gateway

import (
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHistorySession serves canned messages newest first and records the
// paging cursors it was asked for.
type fakeHistorySession struct {
	messages  []*discordgo.Message
	beforeIDs []string
	err       error
}

func (s *fakeHistorySession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.beforeIDs = append(s.beforeIDs, beforeID)

	start := 0
	if beforeID != "" {
		for i, m := range s.messages {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(s.messages) {
		end = len(s.messages)
	}
	if start >= len(s.messages) {
		return nil, nil
	}
	return s.messages[start:end], nil
}

func makeHistory(n int) []*discordgo.Message {
	msgs := make([]*discordgo.Message, n)
	for i := range msgs {
		// Newest first, matching the upstream ordering.
		msgs[i] = &discordgo.Message{ID: fmt.Sprintf("msg-%03d", n-i)}
	}
	return msgs
}

func TestFetchHistoryPagesBackward(t *testing.T) {
	sess := &fakeHistorySession{messages: makeHistory(250)}

	collected, err := fetchHistory(sess, "chan-1", 250, 100)
	require.NoError(t, err)
	assert.Len(t, collected, 250)

	// Three pages: no cursor, then the last id of each prior page.
	require.Len(t, sess.beforeIDs, 3)
	assert.Equal(t, "", sess.beforeIDs[0])
	assert.Equal(t, collected[99].ID, sess.beforeIDs[1])
	assert.Equal(t, collected[199].ID, sess.beforeIDs[2])

	// Newest first, no duplicates across page boundaries.
	seen := make(map[string]struct{}, len(collected))
	for _, m := range collected {
		_, dup := seen[m.ID]
		assert.False(t, dup, "duplicate %s", m.ID)
		seen[m.ID] = struct{}{}
	}
}

func TestFetchHistoryStopsAtLimit(t *testing.T) {
	sess := &fakeHistorySession{messages: makeHistory(500)}

	collected, err := fetchHistory(sess, "chan-1", 150, 100)
	require.NoError(t, err)
	assert.Len(t, collected, 150)
}

func TestFetchHistoryShortChannel(t *testing.T) {
	sess := &fakeHistorySession{messages: makeHistory(42)}

	collected, err := fetchHistory(sess, "chan-1", 300, 100)
	require.NoError(t, err)
	assert.Len(t, collected, 42)
	// The short page ends the walk; no extra round trip for an empty page.
	assert.Len(t, sess.beforeIDs, 1)
}

func TestFetchHistoryEmptyChannel(t *testing.T) {
	sess := &fakeHistorySession{}

	collected, err := fetchHistory(sess, "chan-1", 300, 100)
	require.NoError(t, err)
	assert.Empty(t, collected)
}

func TestFetchHistoryDefaultLimit(t *testing.T) {
	sess := &fakeHistorySession{messages: makeHistory(400)}

	collected, err := fetchHistory(sess, "chan-1", 0, 100)
	require.NoError(t, err)
	assert.Len(t, collected, 300)
}
