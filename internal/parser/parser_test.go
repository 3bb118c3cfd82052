package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrovia/mailsync/internal/imapx"
	"github.com/ferrovia/mailsync/pkg/models"
)

func rawMIME(headers map[string]string, body string) *imapx.RawMessage {
	var b strings.Builder
	for key, value := range headers {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return &imapx.RawMessage{Folder: "INBOX", UID: 1, Source: []byte(b.String())}
}

func TestParsePlainText(t *testing.T) {
	raw := rawMIME(map[string]string{
		"Subject":      "Quarterly report",
		"From":         "Alice Smith <alice@example.com>",
		"To":           "bob@example.com",
		"Date":         "Mon, 02 Jan 2006 15:04:05 +0000",
		"Message-Id":   "<report-1@example.com>",
		"Content-Type": "text/plain; charset=utf-8",
	}, "Numbers attached.")

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "Quarterly report", msg.Subject)
	assert.Equal(t, "Numbers attached.", msg.Text)
	assert.Equal(t, "<report-1@example.com>", msg.ID)
	assert.Equal(t, "INBOX", msg.Folder)
	assert.Equal(t, uint32(1), msg.UID)
	assert.Equal(t, 2006, msg.ReceivedAt.Year())

	require.Len(t, msg.Participants, 2)
	assert.Equal(t, models.RoleFrom, msg.Participants[0].Role)
	assert.Equal(t, "alice@example.com", msg.Participants[0].Handle)
	assert.Equal(t, "Alice Smith", msg.Participants[0].DisplayName)
	assert.Equal(t, models.RoleTo, msg.Participants[1].Role)
}

func TestParseHTMLOnlyFallsBackToRenderedText(t *testing.T) {
	raw := rawMIME(map[string]string{
		"Subject":      "Welcome",
		"Message-Id":   "<welcome@example.com>",
		"Content-Type": "text/html; charset=utf-8",
	}, "<html><body><p>Hello there</p><p>Regards</p><script>evil()</script></body></html>")

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Contains(t, msg.Text, "Hello there")
	assert.Contains(t, msg.Text, "Regards")
	assert.NotContains(t, msg.Text, "evil")
}

func TestThreadKeyPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name: "references root wins",
			headers: map[string]string{
				"Message-Id":   "<m3@example.com>",
				"In-Reply-To":  "<m2@example.com>",
				"References":   "<m1@example.com> <m2@example.com>",
				"Content-Type": "text/plain",
			},
			want: "<m1@example.com>",
		},
		{
			name: "in-reply-to when no references",
			headers: map[string]string{
				"Message-Id":   "<m2@example.com>",
				"In-Reply-To":  "<m1@example.com>",
				"Content-Type": "text/plain",
			},
			want: "<m1@example.com>",
		},
		{
			name: "own id starts a thread",
			headers: map[string]string{
				"Message-Id":   "<m1@example.com>",
				"Content-Type": "text/plain",
			},
			want: "<m1@example.com>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(rawMIME(tt.headers, "body"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.ThreadKey)
		})
	}
}

func TestParseNonMIMEPassesThrough(t *testing.T) {
	raw := &imapx.RawMessage{Folder: "INBOX", UID: 5, Source: []byte("email source 1")}

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "email source 1", msg.Text)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, msg.ID, msg.ThreadKey)
}

func TestParseEnvelopeBackfill(t *testing.T) {
	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := &imapx.RawMessage{
		Folder: "INBOX",
		UID:    9,
		Source: []byte("plain body without headers"),
		Envelope: &imap.Envelope{
			Subject:   "From the envelope",
			Date:      sent,
			MessageId: "<env@example.com>",
			From: []*imap.Address{
				{PersonalName: "Carol", MailboxName: "carol", HostName: "example.com"},
			},
		},
	}

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "plain body without headers", msg.Text)
	assert.Equal(t, "From the envelope", msg.Subject)
	assert.Equal(t, "<env@example.com>", msg.ID)
	assert.True(t, msg.ReceivedAt.Equal(sent))
	require.Len(t, msg.Participants, 1)
	assert.Equal(t, "carol@example.com", msg.Participants[0].Handle)
}

func TestParseEmptyMessage(t *testing.T) {
	_, err := Parse(&imapx.RawMessage{Folder: "INBOX", UID: 3})

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, uint32(3), perr.UID)
}

func TestParseDeterministic(t *testing.T) {
	raw := rawMIME(map[string]string{
		"Subject":      "stable",
		"Message-Id":   "<stable@example.com>",
		"Content-Type": "text/plain",
	}, "same in, same out")

	first, err := Parse(raw)
	require.NoError(t, err)
	second, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHTMLToText(t *testing.T) {
	text, err := htmlToText("<div>one</div><div>two​</div><style>p{}</style>")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo", text)
}
