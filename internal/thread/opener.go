// Package thread backs the UI affordance that opens a single email
// thread on demand. Read-only: it never touches reconciliation state.
package thread

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ferrovia/mailsync/internal/imapx"
	"github.com/ferrovia/mailsync/pkg/models"
)

// Fetcher retrieves and parses a whole mailbox; the fetch pipeline in
// production
type Fetcher interface {
	FetchMailbox(ctx context.Context, creds imapx.Credentials, mailbox string) ([]*models.ParsedMessage, error)
}

// Opener opens (or toggles closed) a thread in the drawer
type Opener struct {
	drawer  *DrawerState
	fetcher Fetcher
	creds   imapx.Credentials
	logger  *slog.Logger
}

// NewOpener creates a thread opener for one account's credentials
func NewOpener(drawer *DrawerState, fetcher Fetcher, creds imapx.Credentials, logger *slog.Logger) *Opener {
	return &Opener{
		drawer:  drawer,
		fetcher: fetcher,
		creds:   creds,
		logger:  logger.With("component", "thread"),
	}
}

// OpenThread shows a thread in the drawer. Asking for the thread the
// drawer already shows closes it instead (toggle), with no network
// call. IMAP threads are fetched live from the mailbox the thread id
// locates; other providers are assumed materialized locally. A live
// fetch that yields nothing returns (nil, nil) and leaves the drawer
// untouched.
func (o *Opener) OpenThread(ctx context.Context, threadID string, provider models.Provider) (*models.Thread, error) {
	var toggledClosed bool
	o.drawer.Update(func(s *Snapshot) {
		if s.IsOpen && s.ViewableRecordID == threadID {
			s.IsOpen = false
			s.ViewableRecordID = ""
			toggledClosed = true
		}
	})
	if toggledClosed {
		return nil, nil
	}

	if provider != models.ProviderIMAP {
		o.drawer.Update(func(s *Snapshot) {
			s.IsOpen = true
			s.ViewableRecordID = threadID
		})
		return &models.Thread{ID: threadID, Provider: provider}, nil
	}

	folder, uid := parseLocator(threadID)

	messages, err := o.fetcher.FetchMailbox(ctx, o.creds, folder)
	if err != nil {
		return nil, err
	}

	messages = selectThread(messages, uid)
	if len(messages) == 0 {
		o.logger.Debug("thread fetch yielded nothing", "thread_id", threadID)
		return nil, nil
	}

	result := &models.Thread{
		ID:       threadID,
		Subject:  messages[0].Subject,
		Provider: models.ProviderIMAP,
		Folder:   folder,
	}
	for _, msg := range messages {
		result.Messages = append(result.Messages, *msg)
	}

	o.drawer.Update(func(s *Snapshot) {
		s.IsOpen = true
		s.ViewableRecordID = result.ID
	})

	return result, nil
}

// parseLocator splits a thread id into its mailbox and optional UID:
// "INBOX", "INBOX:42", or bare digits meaning a UID in INBOX
func parseLocator(threadID string) (folder string, uid uint32) {
	if n, err := strconv.ParseUint(threadID, 10, 32); err == nil {
		return "INBOX", uint32(n)
	}

	folder = threadID
	if i := strings.LastIndex(threadID, ":"); i > 0 {
		if n, err := strconv.ParseUint(threadID[i+1:], 10, 32); err == nil {
			return threadID[:i], uint32(n)
		}
	}
	return folder, 0
}

// selectThread keeps the messages belonging to the located thread.
// With no UID the whole mailbox is the thread, matching how the
// fetch-by-locator behaves upstream.
func selectThread(messages []*models.ParsedMessage, uid uint32) []*models.ParsedMessage {
	if uid == 0 {
		return messages
	}

	var key string
	for _, msg := range messages {
		if msg.UID == uid {
			key = msg.ThreadKey
			break
		}
	}
	if key == "" {
		return nil
	}

	var thread []*models.ParsedMessage
	for _, msg := range messages {
		if msg.ThreadKey == key {
			thread = append(thread, msg)
		}
	}
	return thread
}
