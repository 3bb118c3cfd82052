package imapx

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Credentials describe one IMAP login
type Credentials struct {
	Host     string
	Port     int
	Secure   bool
	User     string
	Password string
}

// Addr returns the host:port dial address
func (c Credentials) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// RawMessage is one message as fetched from the server, body untouched
type RawMessage struct {
	Folder   string
	UID      uint32
	SeqNum   uint32
	Envelope *imap.Envelope
	Source   []byte
}

// RawIterator walks fetched messages in server order
type RawIterator interface {
	// Next returns the next message, or false when the fetch is
	// exhausted. After false, Err reports whether the fetch itself
	// failed mid-stream.
	Next() (*RawMessage, bool)
	Err() error
}

// Dialer opens authenticated IMAP sessions
type Dialer struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Dial connects, negotiates TLS when asked, and logs in. Mail servers
// commonly cap concurrent sessions per credential, so every session
// returned here must be closed on all exit paths.
func (d *Dialer) Dial(ctx context.Context, creds Credentials) (*Session, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("host", creds.Host, "user", creds.User)

	logger.Info("connecting to IMAP server", "addr", creds.Addr(), "secure", creds.Secure)

	dialer := &net.Dialer{Timeout: timeout}

	var c *client.Client
	var err error
	if creds.Secure {
		var conn *tls.Conn
		conn, err = tls.DialWithDialer(dialer, "tcp", creds.Addr(), nil)
		if err != nil {
			return nil, &ConnectionError{Host: creds.Host, Err: fmt.Errorf("failed to connect: %w", err)}
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, &ConnectionError{Host: creds.Host, Err: fmt.Errorf("failed to create IMAP client: %w", err)}
		}
	} else {
		var conn net.Conn
		conn, err = dialer.DialContext(ctx, "tcp", creds.Addr())
		if err != nil {
			return nil, &ConnectionError{Host: creds.Host, Err: fmt.Errorf("failed to connect: %w", err)}
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, &ConnectionError{Host: creds.Host, Err: fmt.Errorf("failed to create IMAP client: %w", err)}
		}
	}

	c.Timeout = timeout

	if err := c.Login(creds.User, creds.Password); err != nil {
		c.Logout()
		return nil, &ConnectionError{Host: creds.Host, Err: fmt.Errorf("failed to login: %w", err)}
	}

	logger.Info("connected to IMAP server")

	return &Session{client: c, logger: logger}, nil
}

// Session is one authenticated IMAP connection
type Session struct {
	client    *client.Client
	logger    *slog.Logger
	closeOnce sync.Once
}

// FetchAll selects a mailbox and streams every message in it, in
// server order, with envelope and full source. The iterator is fed by
// a background fetch; callers drain it or abandon it, then Close the
// session either way.
func (s *Session) FetchAll(mailbox string) (RawIterator, error) {
	mbox, err := s.client.Select(mailbox, true)
	if err != nil {
		return nil, &MailboxError{Mailbox: mailbox, Err: fmt.Errorf("failed to select: %w", err)}
	}

	if mbox.Messages == 0 {
		return &fetchIterator{messages: closedMessages(), done: closedDone()}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(1, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- s.client.Fetch(seqSet, items, messages)
	}()

	return &fetchIterator{
		mailbox:  mailbox,
		section:  section,
		messages: messages,
		done:     done,
	}, nil
}

// Close logs out, falling back to a hard terminate when the server
// does not answer in time. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			s.client.Logout()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			s.client.Terminate()
		}
		s.logger.Debug("session closed")
	})
}

type fetchIterator struct {
	mailbox   string
	section   *imap.BodySectionName
	messages  chan *imap.Message
	done      chan error
	exhausted bool
	err       error
}

func (it *fetchIterator) Next() (*RawMessage, bool) {
	if it.exhausted {
		return nil, false
	}

	msg, ok := <-it.messages
	if !ok {
		it.exhausted = true
		if err := <-it.done; err != nil {
			it.err = fmt.Errorf("failed to fetch: %w", err)
		}
		return nil, false
	}

	raw := &RawMessage{
		Folder:   it.mailbox,
		UID:      msg.Uid,
		SeqNum:   msg.SeqNum,
		Envelope: msg.Envelope,
	}
	if body := msg.GetBody(it.section); body != nil {
		source, err := io.ReadAll(body)
		if err == nil {
			raw.Source = source
		}
	}
	return raw, true
}

func (it *fetchIterator) Err() error { return it.err }

func closedMessages() chan *imap.Message {
	ch := make(chan *imap.Message)
	close(ch)
	return ch
}

func closedDone() chan error {
	ch := make(chan error, 1)
	ch <- nil
	return ch
}
