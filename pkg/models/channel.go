package models

import "time"

// ChannelType identifies what a message channel syncs
type ChannelType string

const (
	ChannelTypeEmail ChannelType = "EMAIL"
	ChannelTypeSMS   ChannelType = "SMS"
)

// ChannelVisibility controls how much of a synced message is shared
// with other workspace members
type ChannelVisibility string

const (
	VisibilityShareEverything ChannelVisibility = "SHARE_EVERYTHING"
	VisibilitySubject         ChannelVisibility = "SUBJECT"
	VisibilityMetadata        ChannelVisibility = "METADATA"
)

// SyncStatus is the coarse health of a channel's sync. Nullable: a
// channel waiting for its first full fetch after a re-auth has no status.
type SyncStatus string

const (
	SyncStatusOngoing                       SyncStatus = "ONGOING"
	SyncStatusActive                        SyncStatus = "ACTIVE"
	SyncStatusFailedInsufficientPermissions SyncStatus = "FAILED_INSUFFICIENT_PERMISSIONS"
	SyncStatusFailedUnknown                 SyncStatus = "FAILED_UNKNOWN"
)

// SyncStage marks where a channel is in its fetch lifecycle. The
// reconciliation engine only ever moves a channel back to
// FullMessageListFetchPending; the forward stages are driven by the
// external sync worker.
type SyncStage string

const (
	SyncStageFullMessageListFetchPending    SyncStage = "FULL_MESSAGE_LIST_FETCH_PENDING"
	SyncStageMessageListFetchOngoing        SyncStage = "MESSAGE_LIST_FETCH_ONGOING"
	SyncStagePartialMessageListFetchPending SyncStage = "PARTIAL_MESSAGE_LIST_FETCH_PENDING"
	SyncStageMessagesImportPending          SyncStage = "MESSAGES_IMPORT_PENDING"
	SyncStageMessagesImportOngoing          SyncStage = "MESSAGES_IMPORT_ONGOING"
	SyncStageFailed                         SyncStage = "FAILED"
)

// MessageChannel represents one syncable mailbox channel bound to a
// connected account
type MessageChannel struct {
	ID                 string            `db:"id"`
	ConnectedAccountID string            `db:"connected_account_id"`
	Type               ChannelType       `db:"type"`
	Handle             string            `db:"handle"`
	Visibility         ChannelVisibility `db:"visibility"`
	SyncStatus         *SyncStatus       `db:"sync_status"`
	SyncStage          SyncStage         `db:"sync_stage"`
	SyncCursor         string            `db:"sync_cursor"` // empty means start over
	SyncStageStartedAt *time.Time        `db:"sync_stage_started_at"`
	WorkspaceID        string            `db:"workspace_id"`
	CreatedAt          time.Time         `db:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at"`
}
