package pop3

import (
	"github.com/jjYBdx4IL/james-protocols/server"
)

// UserCmdHandler implements USER: records the claimed mailbox name for the
// following PASS.
type UserCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *UserCmdHandler) ImplCommands() []string {
	return []string{"USER"}
}

// OnCommand implements server.CommandHandler.
func (h *UserCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if inTransaction(session) {
		return clientError(session, "Already authenticated")
	}
	if args == "" {
		return clientError(session, "Usage: USER name")
	}
	session.ConnectionState().Put(KeyUserCandidate, args)
	return NewOKResponse("User accepted")
}
