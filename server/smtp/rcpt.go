package smtp

import (
	"github.com/jjYBdx4IL/james-protocols/server"
)

// rcptScratchKey holds the parsed recipient between the filter checks and
// the hook chain; it is promoted to the recipient list only when the
// command succeeds.
const rcptScratchKey = "RCPT_CANDIDATE"

// NewRcptCmdHandler builds the RCPT command handler.
func NewRcptCmdHandler() *server.HookableCommand[RcptHook] {
	return &server.HookableCommand[RcptHook]{
		Protocol:     "smtp",
		HookName:     "rcpt",
		Verbs:        []string{"RCPT"},
		FilterChecks: rcptFilterChecks,
		CallHook: func(hook RcptHook, session *server.Session, args string) server.HookResult {
			rcpt, _ := session.TransactionState().Get(rcptScratchKey)
			return hook.OnRcpt(session, rcpt.(*server.Address))
		},
		Synthesize: func(session *server.Session, result server.HookResult) server.Response {
			rcpt := takeRcptCandidate(session)
			if result.Code == server.HookOK {
				session.AddRecipient(rcpt)
			}
			return synthesizeHookResponse(result)
		},
		CoreCmd: func(session *server.Session, verb, args string) server.Response {
			rcpt := takeRcptCandidate(session)
			session.AddRecipient(rcpt)
			return NewResponse(CodeMailOK,
				DSNStatus(DSNSuccess, DSNAddressValid)+" Recipient <"+rcpt.FullAddress()+"> OK")
		},
	}
}

func rcptFilterChecks(session *server.Session, verb, args string) server.Response {
	tx := session.TransactionState()

	if !tx.Has(server.KeySender) {
		return badSequence("Need MAIL before RCPT")
	}

	rest, ok := cutCommandPrefix(args, "TO:")
	if !ok {
		return syntaxError(DSNDeliverySyntax, "Usage: RCPT TO:<recipient>")
	}

	path, _ := splitPathAndParams(rest)
	rcpt, err := server.ParsePath(path, session.Config().UseAddressBracketsEnforcement())
	if err != nil || rcpt == nil {
		return NewResponse(CodeMailboxSyntax,
			DSNStatus(DSNPermanent, DSNAddressSyntax)+" Syntax error in recipient address")
	}

	tx.Put(rcptScratchKey, rcpt)
	return nil
}

func takeRcptCandidate(session *server.Session) *server.Address {
	tx := session.TransactionState()
	v, _ := tx.Get(rcptScratchKey)
	tx.Remove(rcptScratchKey)
	return v.(*server.Address)
}

// AuthRequiredToRelayHandler is a RcptHook denying relay attempts from
// unauthenticated clients outside the allowed relay networks. Embedders
// that accept mail for local domains only can rely on their MessageHook
// instead; installs of open-port MTAs want this in the chain.
type AuthRequiredToRelayHandler struct{}

// OnRcpt implements RcptHook.
func (h *AuthRequiredToRelayHandler) OnRcpt(session *server.Session, rcpt *server.Address) server.HookResult {
	if session.IsAuthenticated() {
		return server.HookResultDeclined
	}
	if session.Config().IsRelayingAllowed(session.RemoteIP()) {
		return server.HookResultDeclined
	}
	return server.HookResult{
		Code:    server.HookDeny,
		RetCode: CodeMailboxUnavailable,
		Status:  DSNStatus(DSNPermanent, DSNSecurityOther),
		Message: "Relaying denied",
	}
}
