package store

import (
	"context"
	"fmt"
)

// ReconnectWorklist tracks accounts whose credentials went stale and
// need the owner to reconnect. A successful re-auth removes the entry.
type ReconnectWorklist struct{}

// Add marks an account as needing reconnection. Adding an account that
// is already listed is a no-op.
func (ReconnectWorklist) Add(ctx context.Context, q Querier, userID, workspaceID, accountID string) error {
	query := `
		INSERT INTO accounts_to_reconnect (user_id, workspace_id, account_id)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, workspace_id, account_id) DO NOTHING
	`
	_, err := q.ExecContext(ctx, query, userID, workspaceID, accountID)
	if err != nil {
		return fmt.Errorf("failed to add account to reconnect worklist: %w", err)
	}
	return nil
}

// Remove deregisters an account from the worklist. Removing an absent
// entry is a no-op.
func (ReconnectWorklist) Remove(ctx context.Context, q Querier, userID, workspaceID, accountID string) error {
	query := `DELETE FROM accounts_to_reconnect WHERE user_id = ? AND workspace_id = ? AND account_id = ?`
	_, err := q.ExecContext(ctx, query, userID, workspaceID, accountID)
	if err != nil {
		return fmt.Errorf("failed to remove account from reconnect worklist: %w", err)
	}
	return nil
}

// List returns the account ids a user still has to reconnect in a
// workspace
func (ReconnectWorklist) List(ctx context.Context, q Querier, userID, workspaceID string) ([]string, error) {
	var ids []string
	query := `SELECT account_id FROM accounts_to_reconnect WHERE user_id = ? AND workspace_id = ? ORDER BY created_at`
	err := q.SelectContext(ctx, &ids, query, userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconnect worklist: %w", err)
	}
	return ids, nil
}
