package smtp

import (
	"fmt"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// Capabilities controls what the EHLO (or LHLO) response advertises beyond
// the baseline PIPELINING / ENHANCEDSTATUSCODES / 8BITMIME set.
type Capabilities struct {
	StartTLS bool // advertise STARTTLS while the connection is plaintext
	Auth     bool // advertise AUTH PLAIN LOGIN
}

// NewEhloCmdHandler builds the EHLO command handler.
func NewEhloCmdHandler(caps Capabilities) *server.HookableCommand[HeloHook] {
	return NewEhloStyleHandler("smtp", "EHLO", caps)
}

// NewEhloStyleHandler is shared between SMTP EHLO and LMTP LHLO: identical
// capability advertisement, different verb and stored mode.
func NewEhloStyleHandler(protocol, verb string, caps Capabilities) *server.HookableCommand[HeloHook] {
	return &server.HookableCommand[HeloHook]{
		Protocol:     protocol,
		HookName:     "helo",
		Verbs:        []string{verb},
		FilterChecks: heloFilterChecks(verb),
		CallHook: func(hook HeloHook, session *server.Session, args string) server.HookResult {
			return hook.OnHelo(session, args)
		},
		Synthesize: func(session *server.Session, result server.HookResult) server.Response {
			return synthesizeHookResponse(result)
		},
		CoreCmd: func(session *server.Session, v, args string) server.Response {
			session.TransactionState().Put(server.KeyCurrentHeloMode, v)

			response := NewResponse(CodeMailOK, heloGreetingLine(session, args))
			response.AppendLine("PIPELINING")
			response.AppendLine("ENHANCEDSTATUSCODES")
			response.AppendLine("8BITMIME")
			if size := session.Config().MaxMessageSize(); size > 0 {
				response.AppendLine(fmt.Sprintf("SIZE %d", size))
			}
			if caps.StartTLS && !session.IsTLS() {
				response.AppendLine("STARTTLS")
			}
			if caps.Auth {
				response.AppendLine("AUTH PLAIN LOGIN")
			}
			return response
		},
	}
}
