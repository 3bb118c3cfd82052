package thread

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrovia/mailsync/internal/imapx"
	"github.com/ferrovia/mailsync/pkg/models"
)

type fakeFetcher struct {
	messages []*models.ParsedMessage
	err      error
	calls    int
}

func (f *fakeFetcher) FetchMailbox(ctx context.Context, creds imapx.Credentials, mailbox string) ([]*models.ParsedMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func testOpener(fetcher Fetcher) (*Opener, *DrawerState) {
	drawer := &DrawerState{}
	opener := NewOpener(drawer, fetcher, imapx.Credentials{Host: "imap.example.com", Port: 993}, slog.New(slog.DiscardHandler))
	return opener, drawer
}

func TestOpenThreadTogglesClosed(t *testing.T) {
	fetcher := &fakeFetcher{}
	opener, drawer := testOpener(fetcher)

	// Drawer already shows T1
	drawer.Update(func(s *Snapshot) {
		s.IsOpen = true
		s.ViewableRecordID = "T1"
	})

	result, err := opener.OpenThread(context.Background(), "T1", models.ProviderIMAP)
	require.NoError(t, err)

	assert.Nil(t, result)
	state := drawer.Snapshot()
	assert.False(t, state.IsOpen)
	assert.Empty(t, state.ViewableRecordID)
	// Toggle-close never touches the network
	assert.Zero(t, fetcher.calls)
}

func TestOpenThreadNonIMAPProvider(t *testing.T) {
	fetcher := &fakeFetcher{}
	opener, drawer := testOpener(fetcher)

	result, err := opener.OpenThread(context.Background(), "T2", models.ProviderGoogle)
	require.NoError(t, err)

	require.NotNil(t, result)
	assert.Equal(t, "T2", result.ID)
	assert.Zero(t, fetcher.calls)

	state := drawer.Snapshot()
	assert.True(t, state.IsOpen)
	assert.Equal(t, "T2", state.ViewableRecordID)
}

func TestOpenThreadIMAPLiveFetch(t *testing.T) {
	fetcher := &fakeFetcher{messages: []*models.ParsedMessage{
		{ID: "<m1>", UID: 1, Subject: "planning", ThreadKey: "<m1>"},
		{ID: "<m2>", UID: 2, Subject: "Re: planning", ThreadKey: "<m1>"},
		{ID: "<m3>", UID: 3, Subject: "unrelated", ThreadKey: "<m3>"},
	}}
	opener, drawer := testOpener(fetcher)

	result, err := opener.OpenThread(context.Background(), "INBOX:2", models.ProviderIMAP)
	require.NoError(t, err)

	require.NotNil(t, result)
	assert.Equal(t, "INBOX", result.Folder)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "planning", result.Messages[0].Subject)
	assert.Equal(t, "Re: planning", result.Messages[1].Subject)
	assert.Equal(t, 1, fetcher.calls)

	state := drawer.Snapshot()
	assert.True(t, state.IsOpen)
	assert.Equal(t, "INBOX:2", state.ViewableRecordID)
}

func TestOpenThreadEmptyFetchLeavesStateUnchanged(t *testing.T) {
	fetcher := &fakeFetcher{}
	opener, drawer := testOpener(fetcher)

	result, err := opener.OpenThread(context.Background(), "INBOX", models.ProviderIMAP)
	require.NoError(t, err)

	assert.Nil(t, result)
	state := drawer.Snapshot()
	assert.False(t, state.IsOpen)
	assert.Empty(t, state.ViewableRecordID)
}

func TestOpenThreadFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: &imapx.ConnectionError{Host: "imap.example.com", Err: assert.AnError}}
	opener, drawer := testOpener(fetcher)

	_, err := opener.OpenThread(context.Background(), "INBOX", models.ProviderIMAP)

	var cerr *imapx.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.False(t, drawer.Snapshot().IsOpen)
}

func TestParseLocator(t *testing.T) {
	tests := []struct {
		threadID string
		folder   string
		uid      uint32
	}{
		{"INBOX", "INBOX", 0},
		{"INBOX:42", "INBOX", 42},
		{"Archive/2024:7", "Archive/2024", 7},
		{"42", "INBOX", 42},
		{"Sent", "Sent", 0},
	}

	for _, tt := range tests {
		t.Run(tt.threadID, func(t *testing.T) {
			folder, uid := parseLocator(tt.threadID)
			assert.Equal(t, tt.folder, folder)
			assert.Equal(t, tt.uid, uid)
		})
	}
}

func TestDrawerUpdateIsAtomic(t *testing.T) {
	drawer := &DrawerState{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			drawer.Update(func(s *Snapshot) {
				if s.IsOpen && s.ViewableRecordID == "T1" {
					s.IsOpen = false
					s.ViewableRecordID = ""
				} else {
					s.IsOpen = true
					s.ViewableRecordID = "T1"
				}
			})
		}()
	}
	wg.Wait()

	// Every toggle went through the critical section, so the state is
	// one of the two consistent outcomes, never a half-applied mix
	state := drawer.Snapshot()
	if state.IsOpen {
		assert.Equal(t, "T1", state.ViewableRecordID)
	} else {
		assert.Empty(t, state.ViewableRecordID)
	}
}
