package pop3

import (
	"errors"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// CapaCmdHandler implements CAPA (RFC 2449). Valid in both states.
type CapaCmdHandler struct {
	stls bool
}

// NewCapaCmdHandler builds the CAPA handler; stls controls the STLS
// advertisement.
func NewCapaCmdHandler(stls bool) *CapaCmdHandler {
	return &CapaCmdHandler{stls: stls}
}

// ImplCommands implements server.CommandHandler.
func (h *CapaCmdHandler) ImplCommands() []string {
	return []string{"CAPA"}
}

// OnCommand implements server.CommandHandler.
func (h *CapaCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	caps := []string{"USER", "TOP", "UIDL", "PIPELINING", "RESP-CODES"}
	if h.stls && !session.IsTLS() {
		caps = append(caps, "STLS")
	}
	return NewMultiLineResponse("Capability list follows", caps)
}

// StlsCmdHandler implements STLS (RFC 2595 §4): TLS upgrade from the
// Authorization state only.
type StlsCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *StlsCmdHandler) ImplCommands() []string {
	return []string{"STLS"}
}

// OnCommand implements server.CommandHandler.
func (h *StlsCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if inTransaction(session) {
		return clientError(session, "STLS only permitted in Authorization state")
	}
	if session.IsTLS() {
		return clientError(session, "TLS already active")
	}
	if err := session.StartTLS(); err != nil {
		if errors.Is(err, server.ErrTLSUnavailable) {
			return NewErrResponse("TLS not available")
		}
		return NewErrResponse("Unable to start TLS")
	}
	return NewOKResponse("Begin TLS negotiation")
}
