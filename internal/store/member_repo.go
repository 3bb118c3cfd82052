package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ferrovia/mailsync/pkg/models"
)

// WorkspaceMemberRepo reads workspace member reference data
type WorkspaceMemberRepo struct{}

// Get returns a member by id, or ErrNotFound
func (WorkspaceMemberRepo) Get(ctx context.Context, q Querier, id string) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember
	err := q.GetContext(ctx, &member, `SELECT * FROM workspace_members WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace member: %w", err)
	}
	return &member, nil
}

// Save inserts a workspace member
func (WorkspaceMemberRepo) Save(ctx context.Context, q Querier, member *models.WorkspaceMember) error {
	query := `INSERT INTO workspace_members (id, user_id, workspace_id, handle) VALUES (?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query, member.ID, member.UserID, member.WorkspaceID, member.Handle)
	if err != nil {
		return fmt.Errorf("failed to save workspace member: %w", err)
	}
	return nil
}
