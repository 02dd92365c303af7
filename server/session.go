package server

import (
	"context"
	"fmt"
	"net"

	"github.com/jjYBdx4IL/james-protocols/logger"
)

// Canonical session state keys. Connection-scoped keys live directly in the
// connection state map; transaction-scoped keys live in the transaction map
// and are cleared by ResetState except for the protocol's carry-over set.
const (
	// KeyCurrentHeloMode holds "HELO", "EHLO" or "LHLO" once the client has
	// introduced itself. Transaction-scoped, in the SMTP carry-over set.
	KeyCurrentHeloMode = "CURRENT_HELO_MODE"

	// KeyCurrentHeloName holds the name the client supplied with HELO/EHLO.
	KeyCurrentHeloName = "CURRENT_HELO_NAME"

	// KeySender holds the *Address of the current MAIL FROM, or nil for the
	// null reverse-path. Transaction-scoped.
	KeySender = "SENDER"

	// KeyRcptList holds the ordered []*Address of accepted recipients.
	// Transaction-scoped.
	KeyRcptList = "RCPT_LIST"

	// KeyMessageSize holds the int64 SIZE= hint from MAIL FROM.
	// Transaction-scoped.
	KeyMessageSize = "MESSAGE_SIZE"

	// KeyAuthIdentity holds the authenticated user identity string.
	// Connection-scoped.
	KeyAuthIdentity = "AUTH_IDENTITY"

	// KeyTLSStarted is present once the connection has been upgraded to TLS.
	// Connection-scoped.
	KeyTLSStarted = "TLS_STARTED"
)

// transactionStateKey is the reserved connection-state entry holding the
// transaction StateMap. Readers must go through TransactionState.
const transactionStateKey = "__TRANSACTION_STATE"

// Configuration supplies the policy the protocol handlers consult. It is
// immutable once a server is bound.
type Configuration interface {
	// HelloName returns the server name used in greetings and HELO replies.
	HelloName() string

	// Greeting returns the service banner text, or "" for the default.
	Greeting() string

	// MaxMessageSize returns the maximum accepted message size in bytes,
	// or 0 for unlimited.
	MaxMessageSize() int64

	// IsRelayingAllowed reports whether the remote IP may relay to
	// non-local recipients without authentication.
	IsRelayingAllowed(remoteIP string) bool

	// IsAuthRequired reports whether the remote IP must authenticate
	// before a mail transaction.
	IsAuthRequired(remoteIP string) bool

	// UseAddressBracketsEnforcement reports whether MAIL/RCPT addresses
	// must be enclosed in angle brackets.
	UseAddressBracketsEnforcement() bool

	// UseHeloEhloEnforcement reports whether MAIL is rejected before
	// HELO/EHLO.
	UseHeloEhloEnforcement() bool
}

// SessionConnection is the connection surface a Session forwards to. *Conn
// implements it; tests may substitute a stub.
type SessionConnection interface {
	Context() context.Context
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	IsTLS() bool
	PushLineHandler(LineHandler)
	PushRawLineHandler(LineHandler)
	PopLineHandler()
	StartTLS() error
}

// Session is the protocol-level view of a connection. It carries the
// connection-scoped and transaction-scoped state maps through the handler
// chain and forwards line-handler stack operations to the connection.
//
// The connection owns the session; the session holds a non-owning handle
// back. Both live exactly as long as the socket.
type Session struct {
	id        string
	protocol  string
	conn      SessionConnection
	config    Configuration
	connState *StateMap
	carryOver []string
}

// NewSession creates a session bound to conn. carryOver lists the
// transaction-state keys ResetState preserves (for SMTP: the HELO mode).
func NewSession(id, protocol string, conn SessionConnection, config Configuration, carryOver []string) *Session {
	s := &Session{
		id:        id,
		protocol:  protocol,
		conn:      conn,
		config:    config,
		connState: NewStateMap(),
		carryOver: carryOver,
	}
	s.connState.Put(transactionStateKey, NewStateMap())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Protocol returns the protocol name, e.g. "SMTP".
func (s *Session) Protocol() string {
	return s.protocol
}

// Config returns the immutable policy configuration.
func (s *Session) Config() Configuration {
	return s.config
}

// Context returns the connection's context. It is cancelled when the
// connection closes or the server unbinds; work delegated off the
// connection goroutine must check it before mutating session state.
func (s *Session) Context() context.Context {
	return s.conn.Context()
}

// RemoteAddr returns the client address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// LocalAddr returns the local listener address.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RemoteIP returns the client IP without port, or "" if unknown.
func (s *Session) RemoteIP() string {
	addr := s.conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// IsTLS reports whether the connection runs over TLS.
func (s *Session) IsTLS() bool {
	return s.conn.IsTLS()
}

// ConnectionState returns the connection-scoped state map. It lives for the
// duration of the TCP connection.
func (s *Session) ConnectionState() *StateMap {
	return s.connState
}

// TransactionState returns the transaction-scoped state map. It is cleared
// by ResetState except for the carry-over keys.
func (s *Session) TransactionState() *StateMap {
	v, ok := s.connState.Get(transactionStateKey)
	if !ok {
		// Reinstalled defensively; removed only by a buggy handler.
		tx := NewStateMap()
		s.connState.Put(transactionStateKey, tx)
		return tx
	}
	return v.(*StateMap)
}

// ResetState clears the transaction state, preserving exactly the carry-over
// keys. It is idempotent.
func (s *Session) ResetState() {
	old := s.TransactionState()
	fresh := NewStateMap()
	for _, key := range s.carryOver {
		if v, ok := old.Get(key); ok {
			fresh.Put(key, v)
		}
	}
	s.connState.Put(transactionStateKey, fresh)
}

// RcptCount returns the number of accepted recipients in the current
// transaction, or 0 if none.
func (s *Session) RcptCount() int {
	v, ok := s.TransactionState().Get(KeyRcptList)
	if !ok {
		return 0
	}
	rcpts, ok := v.([]*Address)
	if !ok {
		return 0
	}
	return len(rcpts)
}

// RcptList returns the ordered accepted recipients of the current
// transaction.
func (s *Session) RcptList() []*Address {
	v, ok := s.TransactionState().Get(KeyRcptList)
	if !ok {
		return nil
	}
	rcpts, _ := v.([]*Address)
	return rcpts
}

// AddRecipient appends an accepted recipient to the transaction.
func (s *Session) AddRecipient(rcpt *Address) {
	s.TransactionState().Put(KeyRcptList, append(s.RcptList(), rcpt))
}

// AuthIdentity returns the authenticated user identity, if any.
func (s *Session) AuthIdentity() (string, bool) {
	return s.connState.GetString(KeyAuthIdentity)
}

// IsAuthenticated reports whether the session has authenticated.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.connState.Get(KeyAuthIdentity)
	return ok
}

// PushLineHandler pushes a line handler onto the connection's stack. The
// handler receives all subsequent lines until it is popped.
func (s *Session) PushLineHandler(h LineHandler) {
	s.conn.PushLineHandler(h)
}

// PushRawLineHandler is PushLineHandler with the command line length limit
// lifted, for message data transfer.
func (s *Session) PushRawLineHandler(h LineHandler) {
	s.conn.PushRawLineHandler(h)
}

// PopLineHandler pops the top line handler. Popping the bottom dispatcher
// is a programming error and panics.
func (s *Session) PopLineHandler() {
	s.conn.PopLineHandler()
}

// StartTLS asks the connection to upgrade to TLS after the pending response
// has been flushed.
func (s *Session) StartTLS() error {
	return s.conn.StartTLS()
}

// Log logs a message tagged with the session's protocol, id and peer.
func (s *Session) Log(format string, args ...any) {
	user := "none"
	if identity, ok := s.AuthIdentity(); ok {
		user = identity
	}
	logger.Info("Session",
		"protocol", s.protocol,
		"remote", s.RemoteIP(),
		"user", user,
		"session", s.id,
		"msg", fmt.Sprintf(format, args...))
}

// DebugLog logs a debug message tagged like Log.
func (s *Session) DebugLog(format string, args ...any) {
	user := "none"
	if identity, ok := s.AuthIdentity(); ok {
		user = identity
	}
	logger.Debug("Session",
		"protocol", s.protocol,
		"remote", s.RemoteIP(),
		"user", user,
		"session", s.id,
		"msg", fmt.Sprintf(format, args...))
}
