// Package lmtp specializes the SMTP receive path for LMTP (RFC 2033):
// LHLO replaces HELO/EHLO, and the end of DATA yields one reply per
// recipient, wrapped into a MultiResponse in recipient order.
package lmtp

import (
	"github.com/jjYBdx4IL/james-protocols/server"
	"github.com/jjYBdx4IL/james-protocols/server/smtp"
)

// DeliverToRecipientHook runs once per recipient at the end of DATA. OK
// and DECLINED accept the recipient (DECLINED falls through to the default
// accept reply); DENY and DENYSOFT reject that recipient only.
type DeliverToRecipientHook interface {
	Deliver(session *server.Session, recipient *server.Address, envelope *smtp.Envelope) server.HookResult
}

// ChainOptions selects the optional pieces of the default LMTP chain.
type ChainOptions struct {
	// StartTLS advertises and accepts STARTTLS.
	StartTLS bool
}

// NewProtocolHandlerChain assembles the default LMTP handler chain plus
// the caller's delivery hooks and extra handlers, and wires it.
func NewProtocolHandlerChain(options ChainOptions, extra ...any) (*server.ProtocolHandlerChain, error) {
	chain := server.NewProtocolHandlerChain()

	handlers := []any{
		&smtp.WelcomeMessageHandler{},
		smtp.NewEhloStyleHandler("lmtp", "LHLO", smtp.Capabilities{StartTLS: options.StartTLS}),
		smtp.NewMailCmdHandler(),
		smtp.NewRcptCmdHandler(),
		NewDataCmdHandler(),
		&smtp.RsetCmdHandler{},
		&smtp.NoopCmdHandler{},
		smtp.NewQuitCmdHandler(),
		&smtp.UnknownCmdHandler{},
	}
	if options.StartTLS {
		handlers = append(handlers, &smtp.StartTlsCmdHandler{})
	}
	handlers = append(handlers, extra...)
	handlers = append(handlers, server.NewCommandDispatcher("lmtp", smtp.Responses().Fault))

	if err := chain.AddAll(handlers...); err != nil {
		return nil, err
	}
	if err := chain.WireExtensibleHandlers(); err != nil {
		return nil, err
	}
	return chain, nil
}

// CarryOverKeys is the LMTP transaction carry-over set: like SMTP, the
// LHLO mode survives ResetState.
func CarryOverKeys() []string {
	return []string{server.KeyCurrentHeloMode}
}

// NewServer builds an unbound LMTP server around a wired chain.
func NewServer(name, addr string, chain *server.ProtocolHandlerChain, config server.Configuration) *server.Server {
	s := server.New(name, "LMTP", chain, config, smtp.Responses(), CarryOverKeys())
	if addr != "" {
		_ = s.AddAddress(addr)
	}
	return s
}
