package smtp

import (
	"errors"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// Envelope is the accumulated mail transaction handed to MessageHooks at
// the end of DATA. Data holds the unstuffed message bytes with CRLF line
// endings; the core does not parse them.
type Envelope struct {
	Sender     *server.Address // nil for the null reverse-path
	Recipients []*server.Address
	Data       []byte
}

// HeloHook runs within HELO/EHLO/LHLO handling.
type HeloHook interface {
	OnHelo(session *server.Session, helo string) server.HookResult
}

// MailHook runs within MAIL FROM handling. sender is nil for the null
// reverse-path.
type MailHook interface {
	OnMail(session *server.Session, sender *server.Address) server.HookResult
}

// RcptHook runs within RCPT TO handling.
type RcptHook interface {
	OnRcpt(session *server.Session, rcpt *server.Address) server.HookResult
}

// MessageHook runs once the end-of-data terminator has been received. The
// first hook returning OK takes ownership of the message.
type MessageHook interface {
	OnMessage(session *server.Session, envelope *Envelope) server.HookResult
}

// AuthHook runs within AUTH handling, before the AuthBackend is consulted.
// Returning OK accepts the credentials, DENY rejects them; DECLINED defers
// to the next hook and ultimately the backend.
type AuthHook interface {
	OnAuth(session *server.Session, username, credential string) server.HookResult
}

// QuitHook runs within QUIT handling, before the goodbye is emitted.
type QuitHook interface {
	OnQuit(session *server.Session) server.HookResult
}

// ErrTemporaryResolution is returned by DNSService implementations for
// resolution failures that may succeed on retry, as distinct from an
// authoritative empty answer.
var ErrTemporaryResolution = errors.New("temporary DNS resolution failure")

// DNSService resolves MX records for fast-fail sender checks.
type DNSService interface {
	FindMXRecords(domain string) ([]string, error)
}

