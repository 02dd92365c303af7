package pop3

import (
	"time"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// ChainOptions selects the optional pieces of the default POP3 chain.
type ChainOptions struct {
	// STLS advertises and accepts the TLS upgrade. The server must carry
	// a TLS configuration.
	STLS bool

	// AuthFailureDelay throttles failed PASS attempts.
	AuthFailureDelay time.Duration
}

// NewProtocolHandlerChain assembles the default POP3 handler chain plus the
// caller's extra handlers, and wires it.
func NewProtocolHandlerChain(factory MailboxFactory, backend server.AuthBackend, options ChainOptions, extra ...any) (*server.ProtocolHandlerChain, error) {
	chain := server.NewProtocolHandlerChain()

	handlers := []any{
		&WelcomeMessageHandler{},
		NewCapaCmdHandler(options.STLS),
		&UserCmdHandler{},
		NewPassCmdHandler(backend, factory, options.AuthFailureDelay),
		&ListCmdHandler{},
		&UidlCmdHandler{},
		&RsetCmdHandler{},
		&DeleCmdHandler{},
		&NoopCmdHandler{},
		&RetrCmdHandler{},
		&TopCmdHandler{},
		&StatCmdHandler{},
		&QuitCmdHandler{},
		&UnknownCmdHandler{},
	}
	if options.STLS {
		handlers = append(handlers, &StlsCmdHandler{})
	}
	handlers = append(handlers, extra...)
	handlers = append(handlers, server.NewCommandDispatcher("pop3", Responses().Fault))

	if err := chain.AddAll(handlers...); err != nil {
		return nil, err
	}
	if err := chain.WireExtensibleHandlers(); err != nil {
		return nil, err
	}
	return chain, nil
}

// CarryOverKeys is the POP3 carry-over set: empty. POP3 RSET means
// "un-delete all", which is entirely maildrop state.
func CarryOverKeys() []string {
	return nil
}

// NewServer builds an unbound POP3 server around a wired chain.
func NewServer(name, addr string, chain *server.ProtocolHandlerChain, config server.Configuration) *server.Server {
	s := server.New(name, "POP3", chain, config, Responses(), CarryOverKeys())
	if addr != "" {
		_ = s.AddAddress(addr)
	}
	return s
}
