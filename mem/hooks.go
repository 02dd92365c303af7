package mem

import (
	"github.com/jjYBdx4IL/james-protocols/server"
	"github.com/jjYBdx4IL/james-protocols/server/lmtp"
	"github.com/jjYBdx4IL/james-protocols/server/smtp"
)

// DeliveryHook is a MessageHook that files accepted SMTP messages into the
// store's maildrops, one copy per recipient.
type DeliveryHook struct {
	store *Store
}

// NewDeliveryHook builds the SMTP delivery hook.
func NewDeliveryHook(store *Store) *DeliveryHook {
	return &DeliveryHook{store: store}
}

// OnMessage implements smtp.MessageHook.
func (h *DeliveryHook) OnMessage(session *server.Session, envelope *smtp.Envelope) server.HookResult {
	for _, rcpt := range envelope.Recipients {
		if err := h.store.Deliver(rcpt.FullAddress(), envelope.Data); err != nil {
			session.Log("delivery to %s failed: %v", rcpt.FullAddress(), err)
			return server.HookResult{
				Code:    server.HookDenySoft,
				Message: "Delivery failed, try again later",
			}
		}
	}
	return server.HookResult{
		Code:    server.HookOK,
		Message: "Message accepted for delivery",
	}
}

// LMTPDeliveryHook files messages per recipient, rejecting unknown users
// individually so one bad recipient does not sink the others.
type LMTPDeliveryHook struct {
	store *Store
}

// NewLMTPDeliveryHook builds the LMTP delivery hook.
func NewLMTPDeliveryHook(store *Store) *LMTPDeliveryHook {
	return &LMTPDeliveryHook{store: store}
}

// Deliver implements lmtp.DeliverToRecipientHook.
func (h *LMTPDeliveryHook) Deliver(session *server.Session, recipient *server.Address, envelope *smtp.Envelope) server.HookResult {
	if !h.store.HasUser(recipient.FullAddress()) {
		return server.HookResult{
			Code:    server.HookDeny,
			RetCode: smtp.CodeMailboxUnavailable,
			Status:  smtp.DSNStatus(smtp.DSNPermanent, smtp.DSNAddressMailbox),
			Message: "User unknown",
		}
	}
	if err := h.store.Deliver(recipient.FullAddress(), envelope.Data); err != nil {
		session.Log("delivery to %s failed: %v", recipient.FullAddress(), err)
		return server.HookResult{Code: server.HookDenySoft}
	}
	return server.HookResultOK
}

var _ lmtp.DeliverToRecipientHook = (*LMTPDeliveryHook)(nil)

// DNS is a scripted smtp.DNSService for fast-fail hooks and tests.
type DNS struct {
	mx        map[string][]string
	tempFails map[string]bool
}

// NewDNS returns an empty scripted resolver: every lookup answers "no MX".
func NewDNS() *DNS {
	return &DNS{mx: make(map[string][]string), tempFails: make(map[string]bool)}
}

// AddMX scripts an MX answer for domain.
func (d *DNS) AddMX(domain string, hosts ...string) {
	d.mx[domain] = hosts
}

// FailTemporarily scripts a temporary resolution failure for domain.
func (d *DNS) FailTemporarily(domain string) {
	d.tempFails[domain] = true
}

// FindMXRecords implements smtp.DNSService.
func (d *DNS) FindMXRecords(domain string) ([]string, error) {
	if d.tempFails[domain] {
		return nil, smtp.ErrTemporaryResolution
	}
	return d.mx[domain], nil
}
