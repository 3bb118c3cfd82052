package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ferrovia/mailsync/pkg/models"
)

// ConnectedAccountRepo persists connected accounts. Stateless; every
// method runs on the Querier it is given, so one reconciliation pass
// can keep all its reads and writes on a single transaction.
type ConnectedAccountRepo struct{}

// FindOne returns the account for a (handle, owner) pair within a
// workspace, or ErrNotFound
func (ConnectedAccountRepo) FindOne(ctx context.Context, q Querier, handle, accountOwnerID, workspaceID string) (*models.ConnectedAccount, error) {
	var account models.ConnectedAccount
	query := `SELECT * FROM connected_accounts WHERE handle = ? AND account_owner_id = ? AND workspace_id = ?`
	err := q.GetContext(ctx, &account, query, handle, accountOwnerID, workspaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find connected account: %w", err)
	}
	return &account, nil
}

// Get returns an account by id
func (ConnectedAccountRepo) Get(ctx context.Context, q Querier, id string) (*models.ConnectedAccount, error) {
	var account models.ConnectedAccount
	err := q.GetContext(ctx, &account, `SELECT * FROM connected_accounts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connected account: %w", err)
	}
	return &account, nil
}

// Save inserts a new connected account
func (ConnectedAccountRepo) Save(ctx context.Context, q Querier, account *models.ConnectedAccount) error {
	now := time.Now()
	query := `
		INSERT INTO connected_accounts (id, handle, provider, access_token, refresh_token, account_owner_id, scopes, workspace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		account.ID,
		account.Handle,
		account.Provider,
		account.AccessToken,
		account.RefreshToken,
		account.AccountOwnerID,
		account.Scopes,
		account.WorkspaceID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save connected account: %w", err)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// UpdateTokens refreshes the stored credentials in place. The account
// id never changes on re-auth.
func (ConnectedAccountRepo) UpdateTokens(ctx context.Context, q Querier, id, accessToken, refreshToken string, scopes models.ScopeList) error {
	query := `UPDATE connected_accounts SET access_token = ?, refresh_token = ?, scopes = ?, updated_at = ? WHERE id = ?`
	res, err := q.ExecContext(ctx, query, accessToken, refreshToken, scopes, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update connected account tokens: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
