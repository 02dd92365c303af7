package lmtp

import (
	"github.com/jjYBdx4IL/james-protocols/pkg/metrics"
	"github.com/jjYBdx4IL/james-protocols/server"
	"github.com/jjYBdx4IL/james-protocols/server/smtp"
)

// DataCmdHandler implements LMTP DATA. The terminator triggers the
// delivery hook chain once per recipient; the replies are wrapped into a
// MultiResponse preserving RCPT order, one reply block per recipient.
type DataCmdHandler struct {
	hooks []DeliverToRecipientHook
}

// NewDataCmdHandler builds the LMTP DATA command handler.
func NewDataCmdHandler() *DataCmdHandler {
	return &DataCmdHandler{}
}

// ImplCommands implements server.CommandHandler.
func (h *DataCmdHandler) ImplCommands() []string {
	return []string{"DATA"}
}

// WireExtensions implements server.ExtensibleHandler.
func (h *DataCmdHandler) WireExtensions(handlers []any) error {
	h.hooks = server.HandlersOfType[DeliverToRecipientHook](handlers)
	return nil
}

// OnCommand implements server.CommandHandler.
func (h *DataCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if args != "" {
		return smtp.NewResponse(smtp.CodeSyntaxErrorArgs,
			smtp.DSNStatus(smtp.DSNPermanent, smtp.DSNDeliveryInvalidArg)+" Unexpected argument provided with DATA command")
	}
	tx := session.TransactionState()
	if !tx.Has(server.KeySender) {
		return smtp.NewResponse(smtp.CodeBadSequence,
			smtp.DSNStatus(smtp.DSNPermanent, smtp.DSNDeliveryBadSequence)+" No sender specified")
	}
	if session.RcptCount() == 0 {
		return smtp.NewResponse(smtp.CodeBadSequence,
			smtp.DSNStatus(smtp.DSNPermanent, smtp.DSNDeliveryBadSequence)+" No recipients specified")
	}

	session.PushRawLineHandler(smtp.NewDataLineHandler(session.Config().MaxMessageSize(), h.complete))
	return smtp.NewResponse(smtp.CodeStartMailInput, "Start mail input; end with <CRLF>.<CRLF>")
}

// complete delivers to each recipient in order and collects the replies.
func (h *DataCmdHandler) complete(session *server.Session, data []byte, overflow bool) server.Response {
	session.PopLineHandler()
	defer session.ResetState()

	recipients := session.RcptList()

	if overflow {
		metrics.MessagesReceived.WithLabelValues("lmtp", "too_big").Inc()
		// RFC 2033 §4.2: one reply per recipient, even for a failure that
		// sinks the whole message
		multi := server.NewMultiResponse(tooBigResponse())
		for range recipients[1:] {
			multi.AddResponse(tooBigResponse())
		}
		return multi
	}

	var sender *server.Address
	if v, _ := session.TransactionState().Get(server.KeySender); v != nil {
		sender = v.(*server.Address)
	}
	envelope := &smtp.Envelope{
		Sender:     sender,
		Recipients: recipients,
		Data:       data,
	}
	metrics.MessageSizeBytes.WithLabelValues("lmtp").Observe(float64(len(data)))

	var multi *server.MultiResponse
	for _, recipient := range recipients {
		response := h.deliverOne(session, recipient, envelope)
		if multi == nil {
			multi = server.NewMultiResponse(response)
		} else {
			multi.AddResponse(response)
		}
	}
	return multi
}

func (h *DataCmdHandler) deliverOne(session *server.Session, recipient *server.Address, envelope *smtp.Envelope) server.Response {
	for _, hook := range h.hooks {
		result := hook.Deliver(session, recipient, envelope)
		metrics.HookResults.WithLabelValues("lmtp", "deliver", result.Code.String()).Inc()
		if result.Code.Terminates() {
			metrics.MessagesReceived.WithLabelValues("lmtp", "rejected").Inc()
			return smtp.SynthesizeHookResponse(result)
		}
		if result.Code == server.HookOK {
			metrics.MessagesReceived.WithLabelValues("lmtp", "accepted").Inc()
			return acceptedResponse(result, recipient)
		}
	}
	metrics.MessagesReceived.WithLabelValues("lmtp", "accepted").Inc()
	return acceptedResponse(server.HookResultOK, recipient)
}

// acceptedResponse builds the per-recipient 250, defaulting the enhanced
// status to 2.1.5 (destination address valid).
func acceptedResponse(result server.HookResult, recipient *server.Address) server.Response {
	code := result.RetCode
	if code == "" {
		code = smtp.CodeMailOK
	}
	status := result.Status
	if status == "" {
		status = smtp.DSNStatus(smtp.DSNSuccess, smtp.DSNAddressValid)
	}
	message := result.Message
	if message == "" {
		message = "OK, message accepted for <" + recipient.FullAddress() + ">"
	}
	return smtp.NewResponse(code, status+" "+message)
}

func tooBigResponse() server.Response {
	return smtp.NewResponse(smtp.CodeExceededStorage,
		smtp.DSNStatus(smtp.DSNPermanent, smtp.DSNMessageTooBig)+" Message size exceeds fixed maximum message size")
}
