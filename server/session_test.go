package server

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConn is a SessionConnection without a socket.
type stubConn struct {
	stack    []LineHandler
	tls      bool
	tlsAsked bool
}

func (c *stubConn) Context() context.Context { return context.Background() }

func (c *stubConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(192, 0, 2, 10), Port: 41000}
}

func (c *stubConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 25}
}

func (c *stubConn) IsTLS() bool { return c.tls }

func (c *stubConn) PushLineHandler(h LineHandler) {
	c.stack = append(c.stack, h)
}

func (c *stubConn) PushRawLineHandler(h LineHandler) {
	c.stack = append(c.stack, h)
}

func (c *stubConn) PopLineHandler() {
	if len(c.stack) == 0 {
		panic("PopLineHandler: line handler stack underflow")
	}
	c.stack = c.stack[:len(c.stack)-1]
}

func (c *stubConn) StartTLS() error {
	c.tlsAsked = true
	return nil
}

type stubConfig struct{}

func (stubConfig) HelloName() string                   { return "mx.example.test" }
func (stubConfig) Greeting() string                    { return "" }
func (stubConfig) MaxMessageSize() int64               { return 0 }
func (stubConfig) IsRelayingAllowed(string) bool       { return false }
func (stubConfig) IsAuthRequired(string) bool          { return false }
func (stubConfig) UseAddressBracketsEnforcement() bool { return true }
func (stubConfig) UseHeloEhloEnforcement() bool        { return true }

func newTestSession(carryOver ...string) (*Session, *stubConn) {
	conn := &stubConn{}
	return NewSession("testsession", "SMTP", conn, stubConfig{}, carryOver), conn
}

func TestStateMapAbsentVsNil(t *testing.T) {
	m := NewStateMap()

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Put("present-nil", nil)
	v, ok := m.Get("present-nil")
	assert.True(t, ok, "a present nil value must be distinct from an absent key")
	assert.Nil(t, v)

	m.Remove("present-nil")
	_, ok = m.Get("present-nil")
	assert.False(t, ok)
}

func TestResetStatePreservesCarryOver(t *testing.T) {
	session, _ := newTestSession(KeyCurrentHeloMode)

	tx := session.TransactionState()
	tx.Put(KeyCurrentHeloMode, "EHLO")
	tx.Put(KeySender, &Address{fullAddress: "a@example.com"})
	tx.Put(KeyMessageSize, int64(1234))

	session.ResetState()

	mode, ok := session.TransactionState().GetString(KeyCurrentHeloMode)
	require.True(t, ok)
	assert.Equal(t, "EHLO", mode)
	assert.False(t, session.TransactionState().Has(KeySender))
	assert.False(t, session.TransactionState().Has(KeyMessageSize))

	// Idempotent
	session.ResetState()
	mode, ok = session.TransactionState().GetString(KeyCurrentHeloMode)
	require.True(t, ok)
	assert.Equal(t, "EHLO", mode)
	assert.Equal(t, 1, session.TransactionState().Len())
}

func TestResetStateEmptyCarryOver(t *testing.T) {
	session, _ := newTestSession()

	session.TransactionState().Put("anything", 42)
	session.ResetState()
	assert.Equal(t, 0, session.TransactionState().Len())
}

func TestTransactionStateLivesInsideConnectionState(t *testing.T) {
	session, _ := newTestSession()

	session.TransactionState().Put("tx-key", "v")
	// The reserved entry exists, but readers go through the accessor
	_, ok := session.ConnectionState().Get(transactionStateKey)
	assert.True(t, ok)
	// Namespaces are disjoint: the key is not visible in connection state
	assert.False(t, session.ConnectionState().Has("tx-key"))
}

func TestRcptCount(t *testing.T) {
	session, _ := newTestSession()

	assert.Equal(t, 0, session.RcptCount())

	a, err := NewAddress("a@example.com")
	require.NoError(t, err)
	b, err := NewAddress("b@example.com")
	require.NoError(t, err)

	session.AddRecipient(a)
	session.AddRecipient(b)
	assert.Equal(t, 2, session.RcptCount())
	assert.Equal(t, []*Address{a, b}, session.RcptList())

	session.ResetState()
	assert.Equal(t, 0, session.RcptCount())
}

type nopLineHandler struct{}

func (nopLineHandler) OnLine(*Session, []byte) Response { return nil }

func TestLineHandlerStackBalance(t *testing.T) {
	session, conn := newTestSession()

	h1, h2 := nopLineHandler{}, nopLineHandler{}
	session.PushLineHandler(h1)
	session.PushLineHandler(h2)
	require.Len(t, conn.stack, 2)

	session.PopLineHandler()
	session.PopLineHandler()
	assert.Empty(t, conn.stack)

	assert.Panics(t, func() { session.PopLineHandler() })
}

func TestSessionAuthIdentity(t *testing.T) {
	session, _ := newTestSession()

	assert.False(t, session.IsAuthenticated())
	_, ok := session.AuthIdentity()
	assert.False(t, ok)

	session.ConnectionState().Put(KeyAuthIdentity, "alice@example.com")
	assert.True(t, session.IsAuthenticated())
	identity, ok := session.AuthIdentity()
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", identity)
}

func TestSessionRemoteIP(t *testing.T) {
	session, _ := newTestSession()
	assert.Equal(t, "192.0.2.10", session.RemoteIP())
}
