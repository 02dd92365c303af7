package pop3_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjYBdx4IL/james-protocols/mem"
	"github.com/jjYBdx4IL/james-protocols/server/pop3"
	"github.com/jjYBdx4IL/james-protocols/testutils"
)

func newStore(t *testing.T) *mem.Store {
	t.Helper()
	store := mem.NewStore()
	require.NoError(t, store.AddUser("alice@ex.example", "secret"))
	require.NoError(t, store.Deliver("alice@ex.example", []byte("Subject: one\r\n\r\nfirst message\r\n")))
	require.NoError(t, store.Deliver("alice@ex.example", []byte("Subject: two\r\n\r\n.starts with a dot\r\nsecond\r\n")))
	return store
}

func startServer(t *testing.T, store *mem.Store) net.Addr {
	t.Helper()
	chain, err := pop3.NewProtocolHandlerChain(store, store, pop3.ChainOptions{})
	require.NoError(t, err)
	cfg := testutils.NewConfig()
	s := pop3.NewServer("test", "127.0.0.1:0", chain, cfg)
	require.NoError(t, s.Bind(context.Background()))
	t.Cleanup(s.Unbind)
	return s.ListenerAddrs()[0]
}

func login(t *testing.T, c *testutils.ScriptClient) {
	t.Helper()
	c.Expect("+OK")
	c.Send("USER alice@ex.example")
	c.Expect("+OK")
	c.Send("PASS secret")
	c.Expect("+OK 2 messages")
}

func TestPOP3AuthAndRetrieve(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	login(t, c)

	c.Send("STAT")
	line := c.Expect("+OK 2 ")
	assert.NotEmpty(t, line)

	c.Send("LIST")
	listing := c.ExpectMultiLine("+OK")
	require.Len(t, listing, 2)
	assert.Contains(t, listing[0], "1 ")
	assert.Contains(t, listing[1], "2 ")

	c.Send("RETR 1")
	body := c.ExpectMultiLine("+OK")
	assert.Equal(t, []string{"Subject: one", "", "first message"}, body)

	c.Send("QUIT")
	c.Expect("+OK")
	c.ExpectClosed()

	assert.Equal(t, 2, store.MessageCount("alice@ex.example"))
}

func TestPOP3RetrUnstuffsDots(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	login(t, c)

	// The second message has a line beginning with "."; it must arrive
	// stuffed on the wire and unstuff back to the original
	c.Send("RETR 2")
	body := c.ExpectMultiLine("+OK")
	assert.Equal(t, []string{"Subject: two", "", ".starts with a dot", "second"}, body)
}

func TestPOP3DeleteCommitOnQuit(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	login(t, c)

	c.Send("DELE 1")
	c.Expect("+OK")

	// Numbers stay stable: message 2 keeps its number after DELE 1
	c.Send("LIST")
	listing := c.ExpectMultiLine("+OK")
	require.Len(t, listing, 1)
	assert.Contains(t, listing[0], "2 ")

	c.Send("RETR 1")
	c.Expect("-ERR")

	c.Send("QUIT")
	c.Expect("+OK")
	c.ExpectClosed()

	assert.Equal(t, 1, store.MessageCount("alice@ex.example"))
}

func TestPOP3RsetUndeletes(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	login(t, c)

	c.Send("DELE 1")
	c.Expect("+OK")
	c.Send("RSET")
	c.Expect("+OK")
	c.Send("STAT")
	c.Expect("+OK 2 ")

	c.Send("QUIT")
	c.Expect("+OK")
	c.ExpectClosed()
	assert.Equal(t, 2, store.MessageCount("alice@ex.example"))
}

func TestPOP3QuitFromAuthorizationHasNoSideEffects(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	c.Expect("+OK")
	c.Send("QUIT")
	c.Expect("+OK")
	c.ExpectClosed()
	assert.Equal(t, 2, store.MessageCount("alice@ex.example"))
}

func TestPOP3BadPassword(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	c.Expect("+OK")
	c.Send("USER alice@ex.example")
	c.Expect("+OK")
	c.Send("PASS wrong")
	c.Expect("-ERR Authentication failed")

	// USER survives a failed PASS; a correct retry succeeds
	c.Send("PASS secret")
	c.Expect("+OK 2 messages")
}

func TestPOP3TransactionCommandsRequireAuth(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	c.Expect("+OK")
	for _, cmd := range []string{"STAT", "LIST", "RETR 1"} {
		c.Send(cmd)
		c.Expect("-ERR")
	}
	// The fourth error exhausts the budget and closes the connection
	c.Send("DELE 1")
	c.Expect("-ERR Too many errors")
	c.ExpectClosed()
}

func TestPOP3Uidl(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	login(t, c)

	c.Send("UIDL")
	listing := c.ExpectMultiLine("+OK")
	require.Len(t, listing, 2)
	assert.NotEqual(t, listing[0], listing[1])

	c.Send("UIDL 2")
	line := c.Expect("+OK 2 ")
	assert.Contains(t, line, listing[1][2:])
}

func TestPOP3Top(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	login(t, c)

	c.Send("TOP 1 0")
	body := c.ExpectMultiLine("+OK")
	assert.Equal(t, []string{"Subject: one", ""}, body)

	c.Send("TOP 1 1")
	body = c.ExpectMultiLine("+OK")
	assert.Equal(t, []string{"Subject: one", "", "first message"}, body)
}

func TestPOP3Capa(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	c.Expect("+OK")
	c.Send("CAPA")
	caps := c.ExpectMultiLine("+OK")
	assert.Contains(t, caps, "UIDL")
	assert.Contains(t, caps, "TOP")
	assert.NotContains(t, caps, "STLS")
}

func TestPOP3MailboxLocked(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)

	first := testutils.Dial(t, addr)
	login(t, first)

	second := testutils.Dial(t, addr)
	second.Expect("+OK")
	second.Send("USER alice@ex.example")
	second.Expect("+OK")
	second.Send("PASS secret")
	second.Expect("-ERR [IN-USE]")

	// Releasing the first session frees the maildrop
	first.Send("QUIT")
	first.Expect("+OK")
	first.ExpectClosed()

	second.Send("USER alice@ex.example")
	second.Expect("+OK")
	second.Send("PASS secret")
	second.Expect("+OK 2 messages")
}

func TestPOP3ListSingleMessage(t *testing.T) {
	store := newStore(t)
	addr := startServer(t, store)
	c := testutils.Dial(t, addr)

	login(t, c)

	c.Send("LIST 2")
	c.Expect("+OK 2 ")
	c.Send("LIST 99")
	c.Expect("-ERR")
}
