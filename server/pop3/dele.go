package pop3

import (
	"errors"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// DeleCmdHandler implements DELE: marks a message for deletion at QUIT.
type DeleCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *DeleCmdHandler) ImplCommands() []string {
	return []string{"DELE"}
}

// OnCommand implements server.CommandHandler.
func (h *DeleCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if response := requireTransaction(session); response != nil {
		return response
	}
	number, response := parseMessageNumber(session, args)
	if response != nil {
		return response
	}

	mailbox, _ := sessionMailbox(session)
	if err := mailbox.Delete(number); err != nil {
		if errors.Is(err, ErrNoSuchMessage) {
			return clientError(session, "No such message")
		}
		session.Log("DELE error for message %d: %v", number, err)
		return NewErrResponse("Internal server error")
	}
	session.DebugLog("marked message %d for deletion", number)
	return NewOKResponse("Message deleted")
}

// RsetCmdHandler implements RSET: un-deletes everything. The un-delete is
// entirely maildrop state (the mailbox rollback); the session's transaction
// state is then reset, and the POP3 carry-over set is empty.
type RsetCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *RsetCmdHandler) ImplCommands() []string {
	return []string{"RSET"}
}

// OnCommand implements server.CommandHandler.
func (h *RsetCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if response := requireTransaction(session); response != nil {
		return response
	}
	mailbox, _ := sessionMailbox(session)
	if err := mailbox.Rollback(); err != nil {
		session.Log("RSET error: %v", err)
		return NewErrResponse("Internal server error")
	}
	session.ResetState()
	return NewOKResponse("")
}

// NoopCmdHandler answers NOOP. Valid in every state.
type NoopCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *NoopCmdHandler) ImplCommands() []string {
	return []string{"NOOP"}
}

// OnCommand implements server.CommandHandler.
func (h *NoopCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	return NewOKResponse("")
}

// UnknownCmdHandler rejects unrecognized verbs, counting them toward the
// error budget.
type UnknownCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *UnknownCmdHandler) ImplCommands() []string {
	return []string{server.UnknownCommand}
}

// OnCommand implements server.CommandHandler.
func (h *UnknownCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	session.DebugLog("unknown command: %s", verb)
	return clientError(session, "Unknown command: "+verb)
}
