package smtp

import (
	"errors"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// ValidSenderDomainHandler is a MailHook rejecting senders whose domain has
// no MX records. A temporary resolution failure gets a temporary rejection
// (DENYSOFT, 451 4.4.0) rather than a permanent one, so a flaky resolver
// cannot bounce legitimate mail.
type ValidSenderDomainHandler struct {
	dns DNSService
}

// NewValidSenderDomainHandler builds the fast-fail MX check hook.
func NewValidSenderDomainHandler(dns DNSService) *ValidSenderDomainHandler {
	return &ValidSenderDomainHandler{dns: dns}
}

// OnMail implements MailHook.
func (h *ValidSenderDomainHandler) OnMail(session *server.Session, sender *server.Address) server.HookResult {
	// Null reverse-path carries no domain to check
	if sender == nil {
		return server.HookResultDeclined
	}

	records, err := h.dns.FindMXRecords(sender.Domain())
	if errors.Is(err, ErrTemporaryResolution) {
		return server.HookResult{
			Code:    server.HookDenySoft,
			RetCode: CodeLocalError,
			Status:  DSNStatus(DSNTemporary, DSNNetworkOther),
			Message: "Temporary failure resolving " + sender.Domain() + ", try again later",
		}
	}
	if err != nil {
		return server.HookResultDeclined
	}
	if len(records) == 0 {
		return server.HookResult{
			Code:    server.HookDeny,
			RetCode: CodeSyntaxErrorArgs,
			Status:  DSNStatus(DSNPermanent, DSNAddressSyntaxSender),
			Message: "sender " + sender.FullAddress() + " contains a domain with no valid MX records",
		}
	}
	return server.HookResultDeclined
}
