package smtp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// NewMailCmdHandler builds the MAIL command handler: sequence checks,
// reverse-path and parameter parsing, then the MailHook chain.
func NewMailCmdHandler() *server.HookableCommand[MailHook] {
	return &server.HookableCommand[MailHook]{
		Protocol:     "smtp",
		HookName:     "mail",
		Verbs:        []string{"MAIL"},
		FilterChecks: mailFilterChecks,
		CallHook: func(hook MailHook, session *server.Session, args string) server.HookResult {
			sender, _ := session.TransactionState().Get(server.KeySender)
			addr, _ := sender.(*server.Address)
			return hook.OnMail(session, addr)
		},
		Synthesize: func(session *server.Session, result server.HookResult) server.Response {
			if result.Code.Terminates() {
				// A denied transaction leaves no sender behind
				session.TransactionState().Remove(server.KeySender)
			}
			return synthesizeHookResponse(result)
		},
		CoreCmd: func(session *server.Session, verb, args string) server.Response {
			sender := "<>"
			v, _ := session.TransactionState().Get(server.KeySender)
			if addr, _ := v.(*server.Address); addr != nil {
				sender = addr.FullAddress()
			}
			return NewResponse(CodeMailOK,
				DSNStatus(DSNSuccess, DSNAddressOther)+fmt.Sprintf(" Sender <%s> OK", strings.Trim(sender, "<>")))
		},
	}
}

// mailFilterChecks enforces command sequencing and parses the reverse-path
// and ESMTP parameters into the transaction state.
func mailFilterChecks(session *server.Session, verb, args string) server.Response {
	tx := session.TransactionState()

	if session.Config().UseHeloEhloEnforcement() {
		if !tx.Has(server.KeyCurrentHeloMode) {
			return badSequence("Need HELO or EHLO before MAIL")
		}
	}
	if tx.Has(server.KeySender) {
		return badSequence("Sender already specified")
	}
	if session.Config().IsAuthRequired(session.RemoteIP()) && !session.IsAuthenticated() {
		return NewResponse(CodeAuthRequired,
			DSNStatus(DSNPermanent, DSNSecurityOther)+" Authentication required")
	}

	rest, ok := cutCommandPrefix(args, "FROM:")
	if !ok {
		return syntaxError(DSNDeliverySyntax, "Usage: MAIL FROM:<sender>")
	}

	path, params := splitPathAndParams(rest)
	sender, err := server.ParsePath(path, session.Config().UseAddressBracketsEnforcement())
	if err != nil {
		return NewResponse(CodeMailboxSyntax,
			DSNStatus(DSNPermanent, DSNAddressSyntaxSender)+" Syntax error in sender address")
	}

	if response := applyMailParameters(session, params); response != nil {
		return response
	}

	tx.Put(server.KeySender, sender)
	return nil
}

// applyMailParameters handles the ESMTP MAIL parameters: SIZE and BODY.
func applyMailParameters(session *server.Session, params []string) server.Response {
	for _, param := range params {
		key, value, _ := strings.Cut(param, "=")
		switch strings.ToUpper(key) {
		case "SIZE":
			size, err := strconv.ParseInt(value, 10, 64)
			if err != nil || size < 0 {
				return syntaxError(DSNDeliveryInvalidArg, "Syntactically incorrect value for SIZE parameter")
			}
			if max := session.Config().MaxMessageSize(); max > 0 && size > max {
				return NewResponse(CodeExceededStorage,
					DSNStatus(DSNPermanent, DSNMessageTooBig)+" Message size exceeds fixed maximum message size")
			}
			session.TransactionState().Put(server.KeyMessageSize, size)
		case "BODY":
			switch strings.ToUpper(value) {
			case "7BIT", "8BITMIME":
			default:
				return NewResponse(CodeParamNotImpl,
					DSNStatus(DSNPermanent, DSNDeliveryInvalidArg)+" Unsupported BODY type "+value)
			}
		default:
			return NewResponse(CodeParamNotImpl,
				DSNStatus(DSNPermanent, DSNDeliveryInvalidArg)+" Unrecognized MAIL parameter "+key)
		}
	}
	return nil
}

// cutCommandPrefix strips a case-insensitive prefix such as "FROM:".
func cutCommandPrefix(args, prefix string) (string, bool) {
	if len(args) < len(prefix) || !strings.EqualFold(args[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(args[len(prefix):]), true
}

// splitPathAndParams separates the path token from trailing ESMTP
// parameters.
func splitPathAndParams(rest string) (string, []string) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
