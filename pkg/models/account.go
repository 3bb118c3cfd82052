package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Provider identifies which kind of mailbox an account connects to
type Provider string

const (
	ProviderGoogle    Provider = "GOOGLE"
	ProviderMicrosoft Provider = "MICROSOFT"
	ProviderIMAP      Provider = "IMAP"
)

// ScopeList is an ordered list of OAuth scopes, stored as a comma-joined
// text column. Empty for IMAP accounts.
type ScopeList []string

// Value implements driver.Valuer
func (s ScopeList) Value() (driver.Value, error) {
	return strings.Join(s, ","), nil
}

// Scan implements sql.Scanner
func (s *ScopeList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
	case string:
		if v == "" {
			*s = ScopeList{}
		} else {
			*s = strings.Split(v, ",")
		}
	case []byte:
		return s.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ScopeList", src)
	}
	return nil
}

// ConnectedAccount represents one mailbox credential set owned by one
// workspace member. For IMAP accounts both tokens hold the mailbox
// password; no refresh flow exists for that provider.
type ConnectedAccount struct {
	ID             string    `db:"id"`
	Handle         string    `db:"handle"` // mailbox address/login
	Provider       Provider  `db:"provider"`
	AccessToken    string    `db:"access_token"`
	RefreshToken   string    `db:"refresh_token"`
	AccountOwnerID string    `db:"account_owner_id"` // workspace member id
	Scopes         ScopeList `db:"scopes"`
	WorkspaceID    string    `db:"workspace_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// WorkspaceMember links a workspace-scoped member record to its user
type WorkspaceMember struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	WorkspaceID string    `db:"workspace_id"`
	Handle      string    `db:"handle"`
	CreatedAt   time.Time `db:"created_at"`
}
