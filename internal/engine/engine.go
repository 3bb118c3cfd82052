// Package engine reconciles mailbox credentials against persisted
// connected-account and message-channel state. One reconciliation
// pass is one transaction: either the account and its channels come
// out consistent, or nothing changed at all.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ferrovia/mailsync/internal/events"
	"github.com/ferrovia/mailsync/internal/imapx"
	"github.com/ferrovia/mailsync/internal/store"
	"github.com/ferrovia/mailsync/pkg/models"
)

// DefaultMailbox is fetched during the post-commit backfill
const DefaultMailbox = "INBOX"

// Fetcher retrieves and parses a whole mailbox. The production
// implementation is the fetch pipeline; tests substitute fakes.
type Fetcher interface {
	FetchMailbox(ctx context.Context, creds imapx.Credentials, mailbox string) ([]*models.ParsedMessage, error)
}

// Input is one reconciliation request
type Input struct {
	Handle            string
	WorkspaceMemberID string
	WorkspaceID       string
	Credentials       imapx.Credentials
	// Visibility applies to a newly provisioned channel; empty means
	// SHARE_EVERYTHING
	Visibility models.ChannelVisibility
}

// Result reports what one reconciliation pass did
type Result struct {
	AccountID        string
	Created          bool
	Channels         []*models.MessageChannel
	MessagesArchived int
	// FetchWarnings collects post-commit backfill failures. They never
	// fail the call: the committed channel state is the source of
	// truth and the sync worker retries the backfill independently.
	FetchWarnings []error
}

// Engine is the account reconciliation engine
type Engine struct {
	db       *store.DB
	accounts store.ConnectedAccountRepo
	channels store.MessageChannelRepo
	members  store.WorkspaceMemberRepo
	worklist store.ReconnectWorklist
	archive  store.MessageArchive
	notifier events.Notifier
	fetcher  Fetcher
	logger   *slog.Logger
}

// New creates a reconciliation engine
func New(db *store.DB, notifier events.Notifier, fetcher Fetcher, logger *slog.Logger) *Engine {
	return &Engine{
		db:       db,
		notifier: notifier,
		fetcher:  fetcher,
		logger:   logger.With("component", "engine"),
	}
}

// Reconcile connects a mailbox to a workspace member: it creates the
// connected account and its message channel on first contact, or
// refreshes credentials in place and resets every channel for a full
// re-sync. All writes share one transaction; domain events are queued
// during the pass and flushed only after the commit succeeds. The
// post-commit mailbox backfill is best-effort.
//
// Concurrent calls for the same (handle, owner) are not serialized
// here; callers wanting one in-flight pass per account must arrange
// that themselves.
func (e *Engine) Reconcile(ctx context.Context, input Input) (*Result, error) {
	logger := e.logger.With("handle", input.Handle, "workspace", input.WorkspaceID)

	existing, err := e.accounts.FindOne(ctx, e.db, input.Handle, input.WorkspaceMemberID, input.WorkspaceID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, transactionAborted(err)
	}

	accountID := uuid.NewString()
	if existing != nil {
		accountID = existing.ID
	}

	result := &Result{AccountID: accountID, Created: existing == nil}

	// Events queue up during the transaction and flush only after the
	// commit: emitting earlier would notify about writes that may
	// still roll back
	var pending []models.DomainEvent

	err = e.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if existing == nil {
			return e.provision(ctx, tx, input, accountID, &pending)
		}
		return e.refresh(ctx, tx, input, existing, &pending)
	})
	if err != nil {
		var rerr *ReconciliationError
		if errors.As(err, &rerr) {
			return nil, rerr
		}
		return nil, transactionAborted(err)
	}

	for _, event := range pending {
		e.notifier.EmitBatch(ctx, event)
	}

	if result.Created {
		logger.Info("connected account provisioned", "account_id", accountID)
	} else {
		logger.Info("connected account refreshed", "account_id", accountID)
	}

	result.Channels, err = e.channels.FindByAccount(ctx, e.db, accountID)
	if err != nil {
		// The reconciliation itself committed; surface as a warning
		result.FetchWarnings = append(result.FetchWarnings, err)
		return result, nil
	}

	e.backfill(ctx, input, result, logger)
	return result, nil
}

// provision handles the first connection of a handle: one new account
// plus its email channel, with CREATED events in that order
func (e *Engine) provision(ctx context.Context, tx *sqlx.Tx, input Input, accountID string, pending *[]models.DomainEvent) error {
	account := &models.ConnectedAccount{
		ID:             accountID,
		Handle:         input.Handle,
		Provider:       models.ProviderIMAP,
		AccessToken:    input.Credentials.Password,
		RefreshToken:   input.Credentials.Password,
		AccountOwnerID: input.WorkspaceMemberID,
		Scopes:         models.ScopeList{},
		WorkspaceID:    input.WorkspaceID,
	}
	if err := e.accounts.Save(ctx, tx, account); err != nil {
		return err
	}

	*pending = append(*pending, models.DomainEvent{
		EntityType:  models.EntityConnectedAccount,
		Action:      models.ActionCreated,
		WorkspaceID: input.WorkspaceID,
		Records: []models.EventRecord{
			{RecordID: account.ID, After: *account},
		},
	})

	visibility := input.Visibility
	if visibility == "" {
		visibility = models.VisibilityShareEverything
	}
	status := models.SyncStatusOngoing
	channel := &models.MessageChannel{
		ID:                 uuid.NewString(),
		ConnectedAccountID: accountID,
		Type:               models.ChannelTypeEmail,
		Handle:             input.Handle,
		Visibility:         visibility,
		SyncStatus:         &status,
		SyncStage:          models.SyncStageFullMessageListFetchPending,
		SyncCursor:         "",
		WorkspaceID:        input.WorkspaceID,
	}
	if err := e.channels.Save(ctx, tx, channel); err != nil {
		return err
	}

	*pending = append(*pending, models.DomainEvent{
		EntityType:  models.EntityMessageChannel,
		Action:      models.ActionCreated,
		WorkspaceID: input.WorkspaceID,
		Records: []models.EventRecord{
			{RecordID: channel.ID, After: *channel},
		},
	})

	return nil
}

// refresh handles re-auth of an existing account: credentials update
// in place (the id never rotates), the account leaves the reconnect
// worklist, and every channel resets for a full re-fetch
func (e *Engine) refresh(ctx context.Context, tx *sqlx.Tx, input Input, existing *models.ConnectedAccount, pending *[]models.DomainEvent) error {
	before := *existing

	err := e.accounts.UpdateTokens(ctx, tx, existing.ID, input.Credentials.Password, input.Credentials.Password, models.ScopeList{})
	if err != nil {
		return err
	}

	after, err := e.accounts.Get(ctx, tx, existing.ID)
	if err != nil {
		return err
	}

	*pending = append(*pending, models.DomainEvent{
		EntityType:  models.EntityConnectedAccount,
		Action:      models.ActionUpdated,
		WorkspaceID: input.WorkspaceID,
		Records: []models.EventRecord{
			{RecordID: existing.ID, Before: before, After: *after},
		},
	})

	member, err := e.members.Get(ctx, tx, input.WorkspaceMemberID)
	if errors.Is(err, store.ErrNotFound) {
		return lookupFailed(fmt.Errorf("workspace member %s: %w", input.WorkspaceMemberID, err))
	}
	if err != nil {
		return err
	}

	if err := e.worklist.Remove(ctx, tx, member.UserID, input.WorkspaceID, existing.ID); err != nil {
		return err
	}

	channelsBefore, err := e.channels.FindByAccount(ctx, tx, existing.ID)
	if err != nil {
		return err
	}

	if err := e.channels.ResetForResync(ctx, tx, existing.ID); err != nil {
		return err
	}

	channelsAfter, err := e.channels.FindByAccount(ctx, tx, existing.ID)
	if err != nil {
		return err
	}
	afterByID := make(map[string]*models.MessageChannel, len(channelsAfter))
	for _, channel := range channelsAfter {
		afterByID[channel.ID] = channel
	}

	// One batched event covering every channel of the account; usually
	// a single channel, but never assumed to be
	records := make([]models.EventRecord, 0, len(channelsBefore))
	for _, channel := range channelsBefore {
		record := models.EventRecord{RecordID: channel.ID, Before: *channel}
		if after, ok := afterByID[channel.ID]; ok {
			record.After = *after
		}
		records = append(records, record)
	}

	*pending = append(*pending, models.DomainEvent{
		EntityType:  models.EntityMessageChannel,
		Action:      models.ActionUpdated,
		WorkspaceID: input.WorkspaceID,
		Records:     records,
	})

	return nil
}

// backfill drains the mailbox into the archive for every channel of
// the account. Failures are collected, never fatal: the channel is
// already marked pending-full-fetch, so the sync worker retries on
// its own schedule.
func (e *Engine) backfill(ctx context.Context, input Input, result *Result, logger *slog.Logger) {
	for _, channel := range result.Channels {
		messages, err := e.fetcher.FetchMailbox(ctx, input.Credentials, DefaultMailbox)
		if err != nil {
			logger.Warn("mailbox backfill failed", "channel_id", channel.ID, "error", err)
			result.FetchWarnings = append(result.FetchWarnings, fmt.Errorf("channel %s: %w", channel.ID, err))
			continue
		}

		for _, msg := range messages {
			inserted, err := e.archive.Insert(ctx, e.db, channel.ID, msg)
			if err != nil {
				result.FetchWarnings = append(result.FetchWarnings, fmt.Errorf("channel %s: %w", channel.ID, err))
				continue
			}
			if inserted {
				result.MessagesArchived++
			}
		}

		logger.Info("mailbox backfill done", "channel_id", channel.ID, "fetched", len(messages))
	}
}
