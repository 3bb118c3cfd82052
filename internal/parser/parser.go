// Package parser turns raw fetched messages into structured records.
// Parsing is pure: no I/O, no shared state, same input same output.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/ferrovia/mailsync/internal/imapx"
	"github.com/ferrovia/mailsync/pkg/models"
)

// ParseError marks a single malformed message. The fetch pipeline
// skips over these instead of aborting the whole fetch.
type ParseError struct {
	Folder string
	UID    uint32
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse message %s/%d: %v", e.Folder, e.UID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts one raw message into a ParsedMessage. A body that is
// not a MIME document at all degrades to a plain-text message whose
// Text is the raw source, mirroring what lenient mail parsers do.
func Parse(raw *imapx.RawMessage) (*models.ParsedMessage, error) {
	if raw == nil || (len(raw.Source) == 0 && raw.Envelope == nil) {
		return nil, &ParseError{Folder: folderOf(raw), UID: uidOf(raw), Err: fmt.Errorf("empty message")}
	}

	msg := &models.ParsedMessage{
		Folder: raw.Folder,
		UID:    raw.UID,
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw.Source))
	if err != nil {
		// Not MIME: keep the raw source as the body and fall back to
		// the envelope for everything else
		msg.Text = string(raw.Source)
		applyEnvelope(msg, raw.Envelope)
		finalize(msg)
		return msg, nil
	}

	header := mr.Header
	if subject, err := header.Subject(); err == nil {
		msg.Subject = subject
	}
	if date, err := header.Date(); err == nil {
		msg.ReceivedAt = date
	}
	if id, err := header.MessageID(); err == nil && id != "" {
		msg.ID = id
	}

	msg.Participants = headerParticipants(header)
	msg.ThreadKey = threadKey(header, msg.ID)

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Folder: raw.Folder, UID: raw.UID, Err: fmt.Errorf("failed to read part: %w", err)}
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue // attachments are out of scope
		}

		contentType, _, _ := inline.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	msg.Text = textBody
	if msg.Text == "" && htmlBody != "" {
		if rendered, err := htmlToText(htmlBody); err == nil {
			msg.Text = rendered
		}
	}

	applyEnvelope(msg, raw.Envelope)
	finalize(msg)
	return msg, nil
}

// finalize fills the fields nothing else provided
func finalize(msg *models.ParsedMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.ThreadKey == "" {
		msg.ThreadKey = msg.ID
	}
}

// threadKey picks the conversation linkage key: the root of the
// References chain, then In-Reply-To, then the message's own id
func threadKey(header mail.Header, messageID string) string {
	if refs, err := header.MsgIDList("References"); err == nil && len(refs) > 0 {
		return refs[0]
	}
	if replies, err := header.MsgIDList("In-Reply-To"); err == nil && len(replies) > 0 {
		return replies[0]
	}
	return messageID
}

var roleHeaders = []struct {
	role models.ParticipantRole
	key  string
}{
	{models.RoleFrom, "From"},
	{models.RoleTo, "To"},
	{models.RoleCc, "Cc"},
	{models.RoleBcc, "Bcc"},
}

func headerParticipants(header mail.Header) []models.Participant {
	var participants []models.Participant
	for _, rh := range roleHeaders {
		role := rh.role
		addrs, err := header.AddressList(rh.key)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			participants = append(participants, models.Participant{
				Role:        role,
				Handle:      addr.Address,
				DisplayName: addr.Name,
			})
		}
	}
	return participants
}

// applyEnvelope backfills from the IMAP envelope whatever the MIME
// walk could not provide
func applyEnvelope(msg *models.ParsedMessage, env *imap.Envelope) {
	if env == nil {
		return
	}
	if msg.Subject == "" {
		msg.Subject = env.Subject
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = env.Date
	}
	if msg.ID == "" {
		msg.ID = env.MessageId
	}
	if msg.ThreadKey == "" && env.InReplyTo != "" {
		msg.ThreadKey = env.InReplyTo
	}
	if len(msg.Participants) == 0 {
		msg.Participants = envelopeParticipants(env)
	}
}

func envelopeParticipants(env *imap.Envelope) []models.Participant {
	var participants []models.Participant
	appendAddrs := func(role models.ParticipantRole, addrs []*imap.Address) {
		for _, addr := range addrs {
			participants = append(participants, models.Participant{
				Role:        role,
				Handle:      addr.Address(),
				DisplayName: addr.PersonalName,
			})
		}
	}
	appendAddrs(models.RoleFrom, env.From)
	appendAddrs(models.RoleTo, env.To)
	appendAddrs(models.RoleCc, env.Cc)
	appendAddrs(models.RoleBcc, env.Bcc)
	return participants
}

func folderOf(raw *imapx.RawMessage) string {
	if raw == nil {
		return ""
	}
	return raw.Folder
}

func uidOf(raw *imapx.RawMessage) uint32 {
	if raw == nil {
		return 0
	}
	return raw.UID
}
