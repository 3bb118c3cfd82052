package imapx

import "fmt"

// ConnectionError means the mailbox session could not be established:
// the server is unreachable, the dial timed out, or the login was
// rejected. Fatal to the fetch attempt; this layer does not retry.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("imap connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MailboxError means the named mailbox is missing or inaccessible on
// an otherwise healthy session
type MailboxError struct {
	Mailbox string
	Err     error
}

func (e *MailboxError) Error() string {
	return fmt.Sprintf("mailbox %q: %v", e.Mailbox, e.Err)
}

func (e *MailboxError) Unwrap() error { return e.Err }
