package pop3

import (
	"context"
	"errors"
	"io"
)

// ErrNoSuchMessage is returned by Mailbox operations addressing a message
// number that does not exist or is marked deleted.
var ErrNoSuchMessage = errors.New("no such message")

// ErrMailboxLocked is returned by MailboxFactory when the maildrop is
// already held by another session.
var ErrMailboxLocked = errors.New("mailbox is locked by another session")

// MessageInfo is one scan-listing entry. Numbers are 1-based and stable
// for the whole session, per RFC 1939 §5.
type MessageInfo struct {
	Number int
	Size   int64
}

// Mailbox is the maildrop capability a POP3 session holds between PASS and
// QUIT. Deletes are marks: CommitDeletes applies them at the Update step,
// Rollback un-deletes everything (RSET).
type Mailbox interface {
	// List returns the scan listing of non-deleted messages, in number
	// order.
	List() ([]MessageInfo, error)

	// Size returns the non-deleted message count and total octet size.
	Size() (count int, octets int64, err error)

	// Retrieve streams the full message.
	Retrieve(number int) (io.ReadCloser, error)

	// Delete marks the message for deletion.
	Delete(number int) error

	// UIDL returns the unique-id listing entry for the message.
	UIDL(number int) (string, error)

	// CommitDeletes removes all marked messages. Called on QUIT from the
	// Transaction state.
	CommitDeletes() error

	// Rollback clears all deletion marks.
	Rollback() error

	// Close releases the maildrop lock without applying deletes.
	Close() error
}

// MailboxFactory yields the maildrop of an authenticated user, locking it
// for the session.
type MailboxFactory interface {
	Mailbox(ctx context.Context, username string) (Mailbox, error)
}
