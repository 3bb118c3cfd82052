// Package pipeline composes the session adapter and the message
// parser into one fetch: open mailbox, stream every message in server
// order, parse each, release the session on every exit path.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ferrovia/mailsync/internal/imapx"
	"github.com/ferrovia/mailsync/internal/parser"
	"github.com/ferrovia/mailsync/pkg/models"
)

// Session is the slice of an IMAP session the pipeline needs
type Session interface {
	FetchAll(mailbox string) (imapx.RawIterator, error)
	Close()
}

// Dialer opens sessions; tests substitute fakes
type Dialer interface {
	Dial(ctx context.Context, creds imapx.Credentials) (Session, error)
}

// IMAPDialer adapts imapx.Dialer to the pipeline's Dialer
type IMAPDialer struct {
	Dialer *imapx.Dialer
}

func (d IMAPDialer) Dial(ctx context.Context, creds imapx.Credentials) (Session, error) {
	session, err := d.Dialer.Dial(ctx, creds)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Pipeline produces parsed-message streams from mailboxes
type Pipeline struct {
	dialer Dialer
	logger *slog.Logger
}

// New creates a fetch pipeline
func New(dialer Dialer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		dialer: dialer,
		logger: logger.With("component", "pipeline"),
	}
}

// Fetch opens a session against the mailbox and returns the stream of
// its messages. Session or mailbox failures are fatal and typed;
// per-message parse failures are skipped inside the stream. The
// returned stream is finite and non-restartable, and its session is
// released when the stream is exhausted, closed, or the context is
// cancelled.
func (p *Pipeline) Fetch(ctx context.Context, creds imapx.Credentials, mailbox string) (*Stream, error) {
	session, err := p.dialer.Dial(ctx, creds)
	if err != nil {
		return nil, err
	}

	iter, err := session.FetchAll(mailbox)
	if err != nil {
		session.Close()
		return nil, err
	}

	s := &Stream{
		session: session,
		iter:    iter,
		logger:  p.logger.With("mailbox", mailbox, "user", creds.User),
		closed:  make(chan struct{}),
	}

	// A stream abandoned without Close must not leak its session;
	// mail servers cap concurrent sessions per credential
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.closed:
		}
	}()

	return s, nil
}

// FetchMailbox fetches and drains a whole mailbox in one call. This
// is the fetcher the reconciliation engine uses for its post-commit
// backfill.
func (p *Pipeline) FetchMailbox(ctx context.Context, creds imapx.Credentials, mailbox string) ([]*models.ParsedMessage, error) {
	stream, err := p.Fetch(ctx, creds, mailbox)
	if err != nil {
		return nil, err
	}
	return stream.Drain(ctx)
}

// Stream is a finite, lazy sequence of parsed messages in server
// fetch order. Not safe for concurrent consumption.
type Stream struct {
	session   Session
	iter      imapx.RawIterator
	logger    *slog.Logger
	closeOnce sync.Once
	closed    chan struct{}
	skipped   []error
	err       error
	done      bool
}

// Next yields the next parsed message. Malformed messages are skipped
// and recorded, never aborting the fetch. Returns false once the
// stream is exhausted; the session is closed at that point.
func (s *Stream) Next() (*models.ParsedMessage, bool) {
	if s.done {
		return nil, false
	}

	for {
		raw, ok := s.iter.Next()
		if !ok {
			s.done = true
			s.err = s.iter.Err()
			s.Close()
			return nil, false
		}

		msg, err := parser.Parse(raw)
		if err != nil {
			s.skipped = append(s.skipped, err)
			s.logger.Warn("skipping malformed message", "uid", raw.UID, "error", err)
			continue
		}
		return msg, true
	}
}

// Err reports a mid-fetch protocol failure, available after Next has
// returned false
func (s *Stream) Err() error { return s.err }

// Skipped returns the parse failures recorded so far
func (s *Stream) Skipped() []error { return s.skipped }

// Close releases the underlying session. Safe on every exit path and
// from repeated calls.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.session.Close()
	})
}

// Drain consumes the rest of the stream and closes it
func (s *Stream) Drain(ctx context.Context) ([]*models.ParsedMessage, error) {
	defer s.Close()

	var messages []*models.ParsedMessage
	for {
		if err := ctx.Err(); err != nil {
			return messages, err
		}
		msg, ok := s.Next()
		if !ok {
			break
		}
		messages = append(messages, msg)
	}
	return messages, s.Err()
}
