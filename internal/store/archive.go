package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ferrovia/mailsync/pkg/models"
)

// MessageArchive persists fetched messages per channel. Refetching a
// mailbox is common after re-auth, so inserts dedup on the
// (channel, folder, uid) locator instead of failing.
type MessageArchive struct{}

// Insert stores one parsed message for a channel. Returns true when a
// new row was written, false when the message was already archived.
func (MessageArchive) Insert(ctx context.Context, q Querier, channelID string, msg *models.ParsedMessage) (bool, error) {
	participants, err := json.Marshal(msg.Participants)
	if err != nil {
		return false, fmt.Errorf("failed to encode participants: %w", err)
	}

	query := `
		INSERT INTO archived_messages (channel_id, folder, uid, message_id, thread_key, subject, body_text, received_at, participants)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (channel_id, folder, uid) DO NOTHING
	`
	res, err := q.ExecContext(ctx, query,
		channelID,
		msg.Folder,
		msg.UID,
		msg.ID,
		msg.ThreadKey,
		msg.Subject,
		msg.Text,
		msg.ReceivedAt,
		string(participants),
	)
	if err != nil {
		return false, fmt.Errorf("failed to archive message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read archive result: %w", err)
	}
	return n > 0, nil
}

// CountByChannel returns how many messages a channel has archived
func (MessageArchive) CountByChannel(ctx context.Context, q Querier, channelID string) (int, error) {
	var count int
	err := q.GetContext(ctx, &count, `SELECT COUNT(*) FROM archived_messages WHERE channel_id = ?`, channelID)
	if err != nil {
		return 0, fmt.Errorf("failed to count archived messages: %w", err)
	}
	return count, nil
}

// ListByThreadKey returns the archived messages of one conversation,
// oldest first
func (MessageArchive) ListByThreadKey(ctx context.Context, q Querier, threadKey string) ([]*models.ArchivedMessage, error) {
	var messages []*models.ArchivedMessage
	query := `SELECT * FROM archived_messages WHERE thread_key = ? ORDER BY received_at, uid`
	err := q.SelectContext(ctx, &messages, query, threadKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived messages: %w", err)
	}
	return messages, nil
}
