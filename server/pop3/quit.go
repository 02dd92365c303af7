package pop3

import (
	"github.com/jjYBdx4IL/james-protocols/pkg/metrics"
	"github.com/jjYBdx4IL/james-protocols/server"
)

// QuitCmdHandler implements QUIT. From the Transaction state the session
// enters Update: deletes are committed and the maildrop lock released.
// From Authorization it closes without side effects.
type QuitCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *QuitCmdHandler) ImplCommands() []string {
	return []string{"QUIT"}
}

// OnCommand implements server.CommandHandler.
func (h *QuitCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	mailbox, ok := sessionMailbox(session)
	if !ok {
		return NewOKResponse("Goodbye").WithEndSession()
	}

	// Update state
	if err := mailbox.CommitDeletes(); err != nil {
		session.Log("error expunging messages: %v", err)
		mailbox.Close()
		session.ConnectionState().Remove(KeyMailbox)
		return NewErrResponse("Some deleted messages were not removed").WithEndSession()
	}
	if err := mailbox.Close(); err != nil {
		session.Log("error releasing mailbox: %v", err)
	}
	session.ConnectionState().Remove(KeyMailbox)
	metrics.AuthenticatedConnectionsCurrent.WithLabelValues("pop3").Dec()

	return NewOKResponse("Goodbye").WithEndSession()
}
