// Package smtp implements the SMTP receive path on the protocol core:
// hookable command handlers for the RFC 5321 verbs, the dot-stuffed DATA
// line handler, AUTH and STARTTLS mode switches, and the hook extension
// points policy code plugs into.
package smtp

import (
	"github.com/jjYBdx4IL/james-protocols/server"
)

// ChainOptions selects the optional pieces of the default SMTP chain.
type ChainOptions struct {
	// Auth enables the AUTH command and its EHLO advertisement.
	Auth server.AuthBackend

	// StartTLS advertises and accepts STARTTLS. The server must carry a
	// TLS configuration.
	StartTLS bool

	// DNS enables the valid-sender-domain fast-fail hook on MAIL.
	DNS DNSService

	// RequireAuthToRelay installs the relay-denial RcptHook.
	RequireAuthToRelay bool
}

// NewProtocolHandlerChain assembles the default SMTP handler chain plus the
// caller's extra handlers and hooks, and wires it. Extra handlers are
// registered, and therefore invoked, in the order given.
func NewProtocolHandlerChain(options ChainOptions, extra ...any) (*server.ProtocolHandlerChain, error) {
	chain := server.NewProtocolHandlerChain()

	handlers := []any{
		&WelcomeMessageHandler{},
		NewHeloCmdHandler(),
		NewEhloCmdHandler(Capabilities{StartTLS: options.StartTLS, Auth: options.Auth != nil}),
		NewMailCmdHandler(),
		NewRcptCmdHandler(),
		NewDataCmdHandler(),
		&RsetCmdHandler{},
		&NoopCmdHandler{},
		&VrfyCmdHandler{},
		NewQuitCmdHandler(),
		&UnknownCmdHandler{},
	}
	if options.Auth != nil {
		handlers = append(handlers, NewAuthCmdHandler(options.Auth))
	}
	if options.StartTLS {
		handlers = append(handlers, &StartTlsCmdHandler{})
	}
	if options.DNS != nil {
		handlers = append(handlers, NewValidSenderDomainHandler(options.DNS))
	}
	if options.RequireAuthToRelay {
		handlers = append(handlers, &AuthRequiredToRelayHandler{})
	}
	handlers = append(handlers, extra...)
	handlers = append(handlers, server.NewCommandDispatcher("smtp", Responses().Fault))

	if err := chain.AddAll(handlers...); err != nil {
		return nil, err
	}
	if err := chain.WireExtensibleHandlers(); err != nil {
		return nil, err
	}
	return chain, nil
}

// CarryOverKeys is the SMTP transaction carry-over set: ResetState clears
// everything else.
func CarryOverKeys() []string {
	return []string{server.KeyCurrentHeloMode}
}

// NewServer builds an unbound SMTP server around a wired chain.
func NewServer(name, addr string, chain *server.ProtocolHandlerChain, config server.Configuration) *server.Server {
	s := server.New(name, "SMTP", chain, config, Responses(), CarryOverKeys())
	if addr != "" {
		// The zero-address error surfaces at Bind
		_ = s.AddAddress(addr)
	}
	return s
}
