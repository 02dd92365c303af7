package smtp

import (
	"errors"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// StartTlsCmdHandler implements STARTTLS (RFC 3207). The 220 reply is
// flushed before the transport swaps in the TLS stage; any plaintext the
// client pipelined behind the command is discarded by the transport.
type StartTlsCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *StartTlsCmdHandler) ImplCommands() []string {
	return []string{"STARTTLS"}
}

// OnCommand implements server.CommandHandler.
func (h *StartTlsCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if args != "" {
		return syntaxError(DSNDeliveryInvalidArg, "Unexpected argument provided with STARTTLS command")
	}
	if session.IsTLS() {
		return badSequence("TLS already active")
	}

	if err := session.StartTLS(); err != nil {
		if errors.Is(err, server.ErrTLSUnavailable) {
			return NewResponse(CodeTLSNotAvailable,
				DSNStatus(DSNTemporary, DSNSystemOther)+" TLS not available due to temporary reason")
		}
		return NewResponse(CodeLocalError,
			DSNStatus(DSNTemporary, DSNSystemOther)+" Unable to start TLS")
	}

	// RFC 3207: the server must reset to its initial state once the
	// handshake completes; forget the client's introduction now so the
	// carry-over does not resurrect it.
	session.TransactionState().Remove(server.KeyCurrentHeloMode)
	session.ResetState()

	return NewResponse(CodeServiceReady, "Ready to start TLS")
}
