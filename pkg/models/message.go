package models

import "time"

// ParticipantRole is the header a participant was taken from
type ParticipantRole string

const (
	RoleFrom ParticipantRole = "from"
	RoleTo   ParticipantRole = "to"
	RoleCc   ParticipantRole = "cc"
	RoleBcc  ParticipantRole = "bcc"
)

// Participant is one address on a message
type Participant struct {
	Role        ParticipantRole `json:"role"`
	Handle      string          `json:"handle"`
	DisplayName string          `json:"displayName,omitempty"`
}

// ParsedMessage is the structured form of one fetched mailbox message.
// Transient: instances are handed to whoever consumes the fetch stream
// and are not persisted as-is.
type ParsedMessage struct {
	ID           string
	Subject      string
	Text         string
	ReceivedAt   time.Time
	Folder       string // source mailbox, IMAP only
	UID          uint32 // source UID, IMAP only
	Participants []Participant
	ThreadKey    string // conversation linkage key
}

// Thread groups messages sharing conversational context
type Thread struct {
	ID       string
	Subject  string
	Provider Provider
	Folder   string
	Messages []ParsedMessage
}

// ArchivedMessage is the persisted copy of a fetched message, written
// by the post-commit backfill. Uniqueness over (channel, folder, uid)
// dedups repeated fetches of the same mailbox.
type ArchivedMessage struct {
	ID           int64     `db:"id"`
	ChannelID    string    `db:"channel_id"`
	Folder       string    `db:"folder"`
	UID          uint32    `db:"uid"`
	MessageID    string    `db:"message_id"`
	ThreadKey    string    `db:"thread_key"`
	Subject      string    `db:"subject"`
	BodyText     string    `db:"body_text"`
	ReceivedAt   time.Time `db:"received_at"`
	Participants string    `db:"participants"` // JSON array of Participant
	CreatedAt    time.Time `db:"created_at"`
}
