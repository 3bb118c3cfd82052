package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrovia/mailsync/internal/imapx"
)

type fakeIterator struct {
	messages []*imapx.RawMessage
	pos      int
	err      error
}

func (it *fakeIterator) Next() (*imapx.RawMessage, bool) {
	if it.pos >= len(it.messages) {
		return nil, false
	}
	msg := it.messages[it.pos]
	it.pos++
	return msg, true
}

func (it *fakeIterator) Err() error { return it.err }

type fakeSession struct {
	messages   []*imapx.RawMessage
	fetchErr   error
	iterErr    error
	closeCalls atomic.Int32
}

func (s *fakeSession) FetchAll(mailbox string) (imapx.RawIterator, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &fakeIterator{messages: s.messages, err: s.iterErr}, nil
}

func (s *fakeSession) Close() { s.closeCalls.Add(1) }

func (s *fakeSession) closed() int { return int(s.closeCalls.Load()) }

type fakeDialer struct {
	session *fakeSession
	err     error
}

func (d *fakeDialer) Dial(ctx context.Context, creds imapx.Credentials) (Session, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

func testCreds() imapx.Credentials {
	return imapx.Credentials{Host: "imap.example.com", Port: 993, Secure: true, User: "user@example.com", Password: "pw"}
}

func rawText(uid uint32, source string) *imapx.RawMessage {
	return &imapx.RawMessage{Folder: "INBOX", UID: uid, Source: []byte(source)}
}

func newPipeline(d Dialer) *Pipeline {
	return New(d, slog.New(slog.DiscardHandler))
}

func TestFetchYieldsInServerOrder(t *testing.T) {
	session := &fakeSession{messages: []*imapx.RawMessage{
		rawText(1, "email source 1"),
		rawText(2, "email source 2"),
	}}
	p := newPipeline(&fakeDialer{session: session})

	stream, err := p.Fetch(context.Background(), testCreds(), "INBOX")
	require.NoError(t, err)

	messages, err := stream.Drain(context.Background())
	require.NoError(t, err)

	// A body that is not MIME passes through as the message text
	require.Len(t, messages, 2)
	assert.Equal(t, "email source 1", messages[0].Text)
	assert.Equal(t, "email source 2", messages[1].Text)
	assert.Equal(t, uint32(1), messages[0].UID)
	assert.Equal(t, uint32(2), messages[1].UID)
}

func TestFetchSkipsMalformedMessage(t *testing.T) {
	session := &fakeSession{messages: []*imapx.RawMessage{
		rawText(1, "email source 1"),
		{Folder: "INBOX", UID: 2}, // no source, no envelope
		rawText(3, "email source 3"),
	}}
	p := newPipeline(&fakeDialer{session: session})

	stream, err := p.Fetch(context.Background(), testCreds(), "INBOX")
	require.NoError(t, err)

	messages, err := stream.Drain(context.Background())
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, uint32(1), messages[0].UID)
	assert.Equal(t, uint32(3), messages[1].UID)
	assert.Len(t, stream.Skipped(), 1)
}

func TestFetchDialErrorIsTyped(t *testing.T) {
	dialErr := &imapx.ConnectionError{Host: "imap.example.com", Err: assert.AnError}
	p := newPipeline(&fakeDialer{err: dialErr})

	_, err := p.Fetch(context.Background(), testCreds(), "INBOX")

	var cerr *imapx.ConnectionError
	require.ErrorAs(t, err, &cerr)
}

func TestFetchMailboxErrorClosesSession(t *testing.T) {
	session := &fakeSession{fetchErr: &imapx.MailboxError{Mailbox: "Archive", Err: assert.AnError}}
	p := newPipeline(&fakeDialer{session: session})

	_, err := p.Fetch(context.Background(), testCreds(), "Archive")

	var merr *imapx.MailboxError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 1, session.closed())
}

func TestSessionClosedExactlyOnce(t *testing.T) {
	t.Run("after full consumption", func(t *testing.T) {
		session := &fakeSession{messages: []*imapx.RawMessage{rawText(1, "a")}}
		p := newPipeline(&fakeDialer{session: session})

		stream, err := p.Fetch(context.Background(), testCreds(), "INBOX")
		require.NoError(t, err)
		_, err = stream.Drain(context.Background())
		require.NoError(t, err)

		stream.Close() // extra close is a no-op
		assert.Equal(t, 1, session.closed())
	})

	t.Run("after early abandonment", func(t *testing.T) {
		session := &fakeSession{messages: []*imapx.RawMessage{
			rawText(1, "a"), rawText(2, "b"), rawText(3, "c"),
		}}
		p := newPipeline(&fakeDialer{session: session})

		stream, err := p.Fetch(context.Background(), testCreds(), "INBOX")
		require.NoError(t, err)

		_, ok := stream.Next()
		require.True(t, ok)
		stream.Close()
		stream.Close()

		assert.Equal(t, 1, session.closed())
	})

	t.Run("after mid-fetch error", func(t *testing.T) {
		session := &fakeSession{
			messages: []*imapx.RawMessage{rawText(1, "a")},
			iterErr:  assert.AnError,
		}
		p := newPipeline(&fakeDialer{session: session})

		stream, err := p.Fetch(context.Background(), testCreds(), "INBOX")
		require.NoError(t, err)

		_, err = stream.Drain(context.Background())
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 1, session.closed())
	})

	t.Run("on context cancellation", func(t *testing.T) {
		session := &fakeSession{messages: []*imapx.RawMessage{rawText(1, "a")}}
		p := newPipeline(&fakeDialer{session: session})

		ctx, cancel := context.WithCancel(context.Background())
		stream, err := p.Fetch(ctx, testCreds(), "INBOX")
		require.NoError(t, err)

		cancel()
		assert.Eventually(t, func() bool {
			return session.closed() == 1
		}, time.Second, 10*time.Millisecond)

		stream.Close()
		assert.Equal(t, 1, session.closed())
	})
}
