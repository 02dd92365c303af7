// Package pop3 implements the POP3 protocol (RFC 1939, STLS per RFC 2595)
// on the protocol core. The Authorization state runs until USER/PASS have
// locked the maildrop; QUIT from the Transaction state enters Update and
// applies deletes.
package pop3

import (
	"github.com/jjYBdx4IL/james-protocols/server"
)

// Connection-state keys
const (
	// KeyUserCandidate holds the USER argument until PASS completes.
	KeyUserCandidate = "POP3_USER_CANDIDATE"

	// KeyMailbox holds the locked Mailbox capability for the Transaction
	// state.
	KeyMailbox = "POP3_MAILBOX"

	keyErrorCount = "POP3_ERROR_COUNT"
)

// MaxErrorsAllowed is the number of client errors tolerated before the
// connection is terminated.
const MaxErrorsAllowed = 3

// sessionMailbox returns the locked maildrop, if the session is in the
// Transaction state.
func sessionMailbox(session *server.Session) (Mailbox, bool) {
	v, ok := session.ConnectionState().Get(KeyMailbox)
	if !ok {
		return nil, false
	}
	mailbox, ok := v.(Mailbox)
	return mailbox, ok
}

// inTransaction reports whether USER/PASS have completed.
func inTransaction(session *server.Session) bool {
	_, ok := sessionMailbox(session)
	return ok
}

// requireTransaction rejects commands issued before authentication.
func requireTransaction(session *server.Session) server.Response {
	if !inTransaction(session) {
		return clientError(session, "Not authenticated")
	}
	return nil
}

// clientError emits -ERR and enforces the per-connection error budget:
// too many errors close the connection.
func clientError(session *server.Session, message string) server.Response {
	count := 1
	if v, ok := session.ConnectionState().GetInt64(keyErrorCount); ok {
		count = int(v) + 1
	}
	session.ConnectionState().Put(keyErrorCount, int64(count))

	if count > MaxErrorsAllowed {
		session.Log("too many errors, closing connection")
		return NewErrResponse("Too many errors, closing connection").WithEndSession()
	}
	return NewErrResponse(message)
}
