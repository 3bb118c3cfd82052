package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ferrovia/mailsync/pkg/models"
)

// MessageChannelRepo persists message channels
type MessageChannelRepo struct{}

// Save inserts a new message channel
func (MessageChannelRepo) Save(ctx context.Context, q Querier, channel *models.MessageChannel) error {
	now := time.Now()
	query := `
		INSERT INTO message_channels (id, connected_account_id, type, handle, visibility, sync_status, sync_stage, sync_cursor, sync_stage_started_at, workspace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		channel.ID,
		channel.ConnectedAccountID,
		channel.Type,
		channel.Handle,
		channel.Visibility,
		channel.SyncStatus,
		channel.SyncStage,
		channel.SyncCursor,
		channel.SyncStageStartedAt,
		channel.WorkspaceID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save message channel: %w", err)
	}

	channel.CreatedAt = now
	channel.UpdatedAt = now
	return nil
}

// Get returns a channel by id
func (MessageChannelRepo) Get(ctx context.Context, q Querier, id string) (*models.MessageChannel, error) {
	var channel models.MessageChannel
	err := q.GetContext(ctx, &channel, `SELECT * FROM message_channels WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message channel: %w", err)
	}
	return &channel, nil
}

// FindByAccount returns all channels bound to a connected account, in
// creation order. Usually one, but never assumed to be.
func (MessageChannelRepo) FindByAccount(ctx context.Context, q Querier, connectedAccountID string) ([]*models.MessageChannel, error) {
	var channels []*models.MessageChannel
	query := `SELECT * FROM message_channels WHERE connected_account_id = ? ORDER BY created_at, id`
	err := q.SelectContext(ctx, &channels, query, connectedAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find message channels: %w", err)
	}
	return channels, nil
}

// ResetForResync moves every channel of an account back to the
// pending-full-fetch stage with cleared status, cursor and stage
// timestamp, forcing the sync worker to start over
func (MessageChannelRepo) ResetForResync(ctx context.Context, q Querier, connectedAccountID string) error {
	query := `
		UPDATE message_channels
		SET sync_stage = ?, sync_status = NULL, sync_cursor = '', sync_stage_started_at = NULL, updated_at = ?
		WHERE connected_account_id = ?
	`
	_, err := q.ExecContext(ctx, query, models.SyncStageFullMessageListFetchPending, time.Now(), connectedAccountID)
	if err != nil {
		return fmt.Errorf("failed to reset message channels: %w", err)
	}
	return nil
}
