package messages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	dbpkg "github.com/hellolucient/nether-chat-sub000/internal/db"
)

var ErrMessageNotFound = errors.New("message not found")

// Service persists and reads cached chat messages.
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
		logger: log.With(slog.String("service", "messages")),
	}
}

// UpsertBatch writes messages keyed by their external id. Re-running with an
// overlapping batch overwrites rows in place and never duplicates.
func (s *Service) UpsertBatch(ctx context.Context, batch []CachedMessage) error {
	for _, msg := range batch {
		if err := s.upsert(ctx, msg); err != nil {
			return fmt.Errorf("upsert message %s: %w", msg.ID, err)
		}
	}
	return nil
}

func (s *Service) upsert(ctx context.Context, msg CachedMessage) error {
	if strings.TrimSpace(msg.ID) == "" {
		return fmt.Errorf("message id is required")
	}
	attachments, err := marshalList(msg.Attachments)
	if err != nil {
		return err
	}
	embeds, err := marshalList(msg.Embeds)
	if err != nil {
		return err
	}
	stickers, err := marshalList(msg.Stickers)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO messages (
			id, channel_id, sender_id, author_username, content, sent_at,
			referenced_message_id, referenced_author_id, referenced_content,
			attachments, embeds, stickers
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			sender_id = EXCLUDED.sender_id,
			author_username = EXCLUDED.author_username,
			content = EXCLUDED.content,
			sent_at = EXCLUDED.sent_at,
			referenced_message_id = EXCLUDED.referenced_message_id,
			referenced_author_id = EXCLUDED.referenced_author_id,
			referenced_content = EXCLUDED.referenced_content,
			attachments = EXCLUDED.attachments,
			embeds = EXCLUDED.embeds,
			stickers = EXCLUDED.stickers`,
		msg.ID, msg.ChannelID, msg.SenderID, msg.AuthorUsername, msg.Content, msg.SentAt.UTC(),
		nullableText(msg.ReferencedMessageID), nullableText(msg.ReferencedAuthorID), nullableText(msg.ReferencedContent),
		attachments, embeds, stickers)
	return err
}

// ListChannel returns the channel's cached messages ordered oldest to newest.
// limit <= 0 means no cap.
func (s *Service) ListChannel(ctx context.Context, channelID string, limit int) ([]CachedMessage, error) {
	query := `
		SELECT id, channel_id, sender_id, author_username, content, sent_at,
		       referenced_message_id, referenced_author_id, referenced_content,
		       attachments, embeds, stickers
		FROM messages
		WHERE channel_id = $1
		ORDER BY sent_at ASC`
	args := []any{strings.TrimSpace(channelID)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]CachedMessage, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, msg)
	}
	return items, rows.Err()
}

// Get returns a single cached message by its external id.
func (s *Service) Get(ctx context.Context, id string) (CachedMessage, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, channel_id, sender_id, author_username, content, sent_at,
		       referenced_message_id, referenced_author_id, referenced_content,
		       attachments, embeds, stickers
		FROM messages
		WHERE id = $1`, strings.TrimSpace(id))
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CachedMessage{}, ErrMessageNotFound
		}
		return CachedMessage{}, err
	}
	return msg, nil
}

// LatestPerChannel returns the newest cached sent_at per channel. Channels
// with no cached messages are absent from the result.
func (s *Service) LatestPerChannel(ctx context.Context, channelIDs []string) (map[string]time.Time, error) {
	latest := make(map[string]time.Time, len(channelIDs))
	if len(channelIDs) == 0 {
		return latest, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT channel_id, MAX(sent_at)
		FROM messages
		WHERE channel_id = ANY($1)
		GROUP BY channel_id`, channelIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var channelID string
		var sentAt time.Time
		if err := rows.Scan(&channelID, &sentAt); err != nil {
			return nil, err
		}
		latest[channelID] = sentAt
	}
	return latest, rows.Err()
}

// DeleteOlderThan removes cached messages sent before the cutoff and returns
// the number of rows removed.
func (s *Service) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM messages WHERE sent_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanMessage(row pgx.Row) (CachedMessage, error) {
	var msg CachedMessage
	var refID, refAuthor, refContent pgtype.Text
	var attachments, embeds, stickers []byte
	if err := row.Scan(
		&msg.ID, &msg.ChannelID, &msg.SenderID, &msg.AuthorUsername, &msg.Content, &msg.SentAt,
		&refID, &refAuthor, &refContent,
		&attachments, &embeds, &stickers,
	); err != nil {
		return CachedMessage{}, err
	}
	msg.ReferencedMessageID = refID.String
	msg.ReferencedAuthorID = refAuthor.String
	msg.ReferencedContent = refContent.String
	if err := unmarshalList(attachments, &msg.Attachments); err != nil {
		return CachedMessage{}, err
	}
	if err := unmarshalList(embeds, &msg.Embeds); err != nil {
		return CachedMessage{}, err
	}
	if err := unmarshalList(stickers, &msg.Stickers); err != nil {
		return CachedMessage{}, err
	}
	return msg, nil
}

func nullableText(value string) pgtype.Text {
	value = strings.TrimSpace(value)
	return pgtype.Text{String: value, Valid: value != ""}
}

func marshalList(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(payload) == "null" {
		payload = []byte("[]")
	}
	return payload, nil
}

func unmarshalList(payload []byte, dest any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, dest)
}
