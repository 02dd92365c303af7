package server

// ConnectHandler fires once on accept, before any command has been read.
// A non-nil response is written to the client; with the end-session flag
// set, the connection is closed right after (service-unavailable greeting).
type ConnectHandler interface {
	OnConnect(session *Session) Response
}

// CommandHandler handles one or more command verbs.
type CommandHandler interface {
	// ImplCommands returns the verbs this handler implements, uppercase.
	ImplCommands() []string

	// OnCommand handles one command. verb is the uppercased first token;
	// args is the remainder of the line, verbatim.
	OnCommand(session *Session, verb string, args string) Response
}

// LineHandler consumes one framed line. Line handlers are stacked on the
// connection to implement modal input (DATA, AUTH continuations); only the
// top of the stack receives lines. A nil response means no output for this
// line.
//
// The line is passed without its terminating CRLF and is only valid for the
// duration of the call.
type LineHandler interface {
	OnLine(session *Session, line []byte) Response
}

// ExtensibleHandler is implemented by handlers that consume other handlers
// from the chain: the command dispatcher collects CommandHandlers, hookable
// commands collect their hook type. WireExtensions is called exactly once,
// with the full handler list in registration order.
type ExtensibleHandler interface {
	WireExtensions(handlers []any) error
}
