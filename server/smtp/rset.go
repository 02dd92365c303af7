package smtp

import (
	"github.com/jjYBdx4IL/james-protocols/server"
)

// RsetCmdHandler aborts the current mail transaction. The HELO mode is in
// the carry-over set and survives the reset.
type RsetCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *RsetCmdHandler) ImplCommands() []string {
	return []string{"RSET"}
}

// OnCommand implements server.CommandHandler.
func (h *RsetCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if args != "" {
		return syntaxError(DSNDeliveryInvalidArg, "Unexpected argument provided with RSET command")
	}
	session.ResetState()
	return NewResponse(CodeMailOK, DSNStatus(DSNSuccess, DSNUndefined)+" OK")
}

// NoopCmdHandler answers NOOP.
type NoopCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *NoopCmdHandler) ImplCommands() []string {
	return []string{"NOOP"}
}

// OnCommand implements server.CommandHandler.
func (h *NoopCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	return NewResponse(CodeMailOK, DSNStatus(DSNSuccess, DSNUndefined)+" OK")
}

// VrfyCmdHandler declines to verify addresses, as open servers must.
type VrfyCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *VrfyCmdHandler) ImplCommands() []string {
	return []string{"VRFY"}
}

// OnCommand implements server.CommandHandler.
func (h *VrfyCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	return NewResponse(CodeCannotVerify,
		DSNStatus(DSNSuccess, DSNDeliveryOther)+" Cannot VRFY user; try RCPT to attempt delivery")
}

// UnknownCmdHandler rejects unrecognized verbs.
type UnknownCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *UnknownCmdHandler) ImplCommands() []string {
	return []string{server.UnknownCommand}
}

// OnCommand implements server.CommandHandler.
func (h *UnknownCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	return NewResponse(CodeSyntaxError,
		DSNStatus(DSNPermanent, DSNDeliveryBadSequence)+" Unrecognized command "+verb)
}
