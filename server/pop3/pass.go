package pop3

import (
	"errors"
	"fmt"
	"time"

	"github.com/jjYBdx4IL/james-protocols/pkg/metrics"
	"github.com/jjYBdx4IL/james-protocols/server"
)

// PassCmdHandler implements PASS: verifies the USER/PASS pair against the
// AuthBackend and locks the maildrop through the MailboxFactory, advancing
// the session to the Transaction state.
type PassCmdHandler struct {
	backend server.AuthBackend
	factory MailboxFactory

	// failureDelay throttles brute force attempts; 0 disables it.
	failureDelay time.Duration
}

// NewPassCmdHandler builds the PASS command handler.
func NewPassCmdHandler(backend server.AuthBackend, factory MailboxFactory, failureDelay time.Duration) *PassCmdHandler {
	return &PassCmdHandler{backend: backend, factory: factory, failureDelay: failureDelay}
}

// ImplCommands implements server.CommandHandler.
func (h *PassCmdHandler) ImplCommands() []string {
	return []string{"PASS"}
}

// OnCommand implements server.CommandHandler.
func (h *PassCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if inTransaction(session) {
		return clientError(session, "Already authenticated")
	}
	username, ok := session.ConnectionState().GetString(KeyUserCandidate)
	if !ok {
		return clientError(session, "Must provide USER first")
	}

	session.Log("authentication attempt for %s", username)

	identity, err := h.backend.Authenticate(session.Context(), username, args)
	if err != nil {
		if errors.Is(err, server.ErrAuthFailed) {
			metrics.AuthenticationAttempts.WithLabelValues("pop3", "failure").Inc()
			if h.failureDelay > 0 {
				time.Sleep(h.failureDelay)
			}
			return clientError(session, "Authentication failed")
		}
		session.Log("auth backend error: %v", err)
		metrics.AuthenticationAttempts.WithLabelValues("pop3", "error").Inc()
		return NewErrResponse("[SYS/TEMP] Temporary authentication failure")
	}

	mailbox, err := h.factory.Mailbox(session.Context(), identity)
	if err != nil {
		if errors.Is(err, ErrMailboxLocked) {
			return NewErrResponse("[IN-USE] Mailbox is locked by another session")
		}
		session.Log("mailbox factory error: %v", err)
		return NewErrResponse("[SYS/TEMP] Unable to open mailbox")
	}

	count, _, err := mailbox.Size()
	if err != nil {
		mailbox.Close()
		session.Log("mailbox stat error: %v", err)
		return NewErrResponse("[SYS/TEMP] Unable to open mailbox")
	}

	session.ConnectionState().Put(server.KeyAuthIdentity, identity)
	session.ConnectionState().Put(KeyMailbox, mailbox)
	session.ConnectionState().Remove(KeyUserCandidate)

	metrics.AuthenticationAttempts.WithLabelValues("pop3", "success").Inc()
	metrics.AuthenticatedConnectionsCurrent.WithLabelValues("pop3").Inc()
	session.Log("authenticated")

	return NewOKResponse(fmt.Sprintf("%d messages", count))
}
