package server

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jjYBdx4IL/james-protocols/logger"
	"github.com/jjYBdx4IL/james-protocols/pkg/metrics"
)

// UnknownCommand is the pseudo-verb every protocol must register a handler
// for; lines whose verb has no handler are routed to it.
const UnknownCommand = "UNKNOWN"

// CommandDispatcher sits at the bottom of every connection's line-handler
// stack. It splits a line into verb and arguments, routes to the verb's
// CommandHandler, and converts handler faults into the protocol's generic
// temporary-failure response. The dispatcher holds no per-connection state
// and is shared by all connections of a server.
type CommandDispatcher struct {
	protocol string
	fault    func() Response
	commands map[string]CommandHandler
}

// NewCommandDispatcher creates a dispatcher. protocol is the lowercase
// metrics label; fault builds the generic response used when a handler
// panics (451 for SMTP/LMTP, -ERR for POP3).
func NewCommandDispatcher(protocol string, fault func() Response) *CommandDispatcher {
	return &CommandDispatcher{
		protocol: protocol,
		fault:    fault,
	}
}

// WireExtensions collects every CommandHandler in the chain. Duplicate
// verbs and a missing UNKNOWN handler are wiring errors.
func (d *CommandDispatcher) WireExtensions(handlers []any) error {
	d.commands = make(map[string]CommandHandler)
	for _, h := range handlers {
		ch, ok := h.(CommandHandler)
		if !ok {
			continue
		}
		for _, verb := range ch.ImplCommands() {
			verb = strings.ToUpper(verb)
			if _, dup := d.commands[verb]; dup {
				return fmt.Errorf("duplicate handler for command %q", verb)
			}
			d.commands[verb] = ch
		}
	}
	if _, ok := d.commands[UnknownCommand]; !ok {
		return fmt.Errorf("no handler registered for %s", UnknownCommand)
	}
	return nil
}

// OnLine implements LineHandler.
func (d *CommandDispatcher) OnLine(session *Session, line []byte) Response {
	verb, args := splitCommandLine(line)

	handler, ok := d.commands[verb]
	if !ok {
		handler = d.commands[UnknownCommand]
	}

	start := time.Now()
	response := d.invoke(handler, session, verb, args)
	metrics.CommandDuration.WithLabelValues(d.protocol, verb).Observe(time.Since(start).Seconds())

	status := "ok"
	if response == nil {
		status = "empty"
	} else if response.IsEndSession() {
		status = "end_session"
	}
	metrics.CommandsTotal.WithLabelValues(d.protocol, verb, status).Inc()

	return response
}

// invoke runs the handler, converting a panic into the generic fault
// response so one bad handler cannot take the connection down with it.
func (d *CommandDispatcher) invoke(handler CommandHandler, session *Session, verb, args string) (response Response) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.WithLabelValues(d.protocol, verb).Inc()
			logger.Error("command handler fault",
				"protocol", d.protocol,
				"command", verb,
				"session", session.ID(),
				"panic", fmt.Sprint(r))
			response = d.fault()
		}
	}()
	return handler.OnCommand(session, verb, args)
}

// splitCommandLine uppercases the first whitespace-delimited token into the
// verb and returns the remainder verbatim, trimmed of the delimiting space
// only.
func splitCommandLine(line []byte) (verb, args string) {
	trimmed := bytes.TrimRight(line, "\r\n")
	if i := bytes.IndexByte(trimmed, ' '); i >= 0 {
		return strings.ToUpper(string(trimmed[:i])), string(trimmed[i+1:])
	}
	return strings.ToUpper(string(trimmed)), ""
}
