package smtp

import (
	"fmt"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// NewHeloCmdHandler builds the HELO command handler. HELO aborts any mail
// transaction in progress, stores the client name, runs the HeloHook chain
// and greets.
func NewHeloCmdHandler() *server.HookableCommand[HeloHook] {
	return &server.HookableCommand[HeloHook]{
		Protocol:     "smtp",
		HookName:     "helo",
		Verbs:        []string{"HELO"},
		FilterChecks: heloFilterChecks("HELO"),
		CallHook: func(hook HeloHook, session *server.Session, args string) server.HookResult {
			return hook.OnHelo(session, args)
		},
		Synthesize: func(session *server.Session, result server.HookResult) server.Response {
			return synthesizeHookResponse(result)
		},
		CoreCmd: func(session *server.Session, verb, args string) server.Response {
			session.TransactionState().Put(server.KeyCurrentHeloMode, verb)
			return NewResponse(CodeMailOK, heloGreetingLine(session, args))
		},
	}
}

// heloFilterChecks resets the transaction and demands the client name
// argument.
func heloFilterChecks(verb string) func(*server.Session, string, string) server.Response {
	return func(session *server.Session, _ string, args string) server.Response {
		session.ResetState()
		if args == "" {
			return syntaxError(DSNDeliveryInvalidArg, "Domain address required: "+verb)
		}
		session.TransactionState().Put(server.KeyCurrentHeloName, args)
		return nil
	}
}

func heloGreetingLine(session *server.Session, heloName string) string {
	return fmt.Sprintf("%s Hello %s [%s]", session.Config().HelloName(), heloName, session.RemoteIP())
}
