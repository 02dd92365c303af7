package smtp

import (
	"bytes"

	"github.com/jjYBdx4IL/james-protocols/pkg/metrics"
	"github.com/jjYBdx4IL/james-protocols/server"
)

// NewDataCmdHandler builds the DATA command handler. On 354 it pushes a
// line handler that accumulates the dot-stuffed message body; the
// terminator pops it and runs the MessageHook chain over the envelope.
func NewDataCmdHandler() *DataCmdHandler {
	return &DataCmdHandler{}
}

// DataCmdHandler implements DATA. It collects MessageHooks during wiring.
type DataCmdHandler struct {
	hooks []MessageHook
}

// ImplCommands implements server.CommandHandler.
func (h *DataCmdHandler) ImplCommands() []string {
	return []string{"DATA"}
}

// WireExtensions implements server.ExtensibleHandler.
func (h *DataCmdHandler) WireExtensions(handlers []any) error {
	h.hooks = server.HandlersOfType[MessageHook](handlers)
	return nil
}

// OnCommand implements server.CommandHandler.
func (h *DataCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if response := dataFilterChecks(session, args); response != nil {
		return response
	}

	session.PushRawLineHandler(NewDataLineHandler(session.Config().MaxMessageSize(), h.complete))
	return NewResponse(CodeStartMailInput, "Start mail input; end with <CRLF>.<CRLF>")
}

func dataFilterChecks(session *server.Session, args string) server.Response {
	if args != "" {
		return syntaxError(DSNDeliveryInvalidArg, "Unexpected argument provided with DATA command")
	}
	tx := session.TransactionState()
	if !tx.Has(server.KeySender) {
		return badSequence("No sender specified")
	}
	if session.RcptCount() == 0 {
		return badSequence("No recipients specified")
	}
	return nil
}

// complete runs after the terminator: pop the data mode, walk the
// MessageHook chain, reset the transaction.
func (h *DataCmdHandler) complete(session *server.Session, data []byte, overflow bool) server.Response {
	session.PopLineHandler()
	defer session.ResetState()

	if overflow {
		metrics.MessagesReceived.WithLabelValues("smtp", "too_big").Inc()
		return NewResponse(CodeExceededStorage,
			DSNStatus(DSNPermanent, DSNMessageTooBig)+" Message size exceeds fixed maximum message size")
	}

	envelope := &Envelope{
		Sender:     sessionSender(session),
		Recipients: session.RcptList(),
		Data:       data,
	}

	metrics.MessageSizeBytes.WithLabelValues("smtp").Observe(float64(len(data)))

	for _, hook := range h.hooks {
		result := hook.OnMessage(session, envelope)
		metrics.HookResults.WithLabelValues("smtp", "message", result.Code.String()).Inc()
		if result.Code.Terminates() {
			metrics.MessagesReceived.WithLabelValues("smtp", "rejected").Inc()
			return synthesizeHookResponse(result)
		}
		if result.Code == server.HookOK {
			metrics.MessagesReceived.WithLabelValues("smtp", "accepted").Inc()
			return synthesizeHookResponse(result)
		}
	}

	metrics.MessagesReceived.WithLabelValues("smtp", "accepted").Inc()
	return NewResponse(CodeMailOK, DSNStatus(DSNSuccess, DSNContentOther)+" Message received")
}

func sessionSender(session *server.Session) *server.Address {
	v, _ := session.TransactionState().Get(server.KeySender)
	addr, _ := v.(*server.Address)
	return addr
}

// DataLineHandler accumulates dot-stuffed message lines until the bare-dot
// terminator, then hands the unstuffed bytes to its completion function.
// LMTP shares it with a per-recipient completion.
type DataLineHandler struct {
	maxSize  int64
	buf      bytes.Buffer
	overflow bool
	complete func(session *server.Session, data []byte, overflow bool) server.Response
}

// NewDataLineHandler creates a data-mode line handler. maxSize of 0 means
// unlimited.
func NewDataLineHandler(maxSize int64, complete func(*server.Session, []byte, bool) server.Response) *DataLineHandler {
	return &DataLineHandler{maxSize: maxSize, complete: complete}
}

// OnLine implements server.LineHandler.
func (h *DataLineHandler) OnLine(session *server.Session, line []byte) server.Response {
	if len(line) > 0 && line[0] == '.' {
		if len(line) == 1 {
			// Terminator. Size enforcement happens here so the client's
			// transfer is consumed in full before the complaint.
			return h.complete(session, h.buf.Bytes(), h.overflow)
		}
		// Leading-dot unescape
		line = line[1:]
	}

	if h.overflow {
		return nil
	}
	if h.maxSize > 0 && int64(h.buf.Len()+len(line)+2) > h.maxSize {
		h.overflow = true
		h.buf.Reset()
		return nil
	}

	h.buf.Write(line)
	h.buf.WriteString("\r\n")
	return nil
}
