package smtp_test

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjYBdx4IL/james-protocols/mem"
	"github.com/jjYBdx4IL/james-protocols/server"
	"github.com/jjYBdx4IL/james-protocols/server/smtp"
	"github.com/jjYBdx4IL/james-protocols/testutils"
)

// captureHook records the envelope of the last accepted message.
type captureHook struct {
	envelopes []*smtp.Envelope
}

func (h *captureHook) OnMessage(session *server.Session, envelope *smtp.Envelope) server.HookResult {
	h.envelopes = append(h.envelopes, envelope)
	return server.HookResult{Code: server.HookOK, Message: "Message accepted"}
}

func startServer(t *testing.T, cfg *testutils.Config, options smtp.ChainOptions, extra ...any) net.Addr {
	t.Helper()
	chain, err := smtp.NewProtocolHandlerChain(options, extra...)
	require.NoError(t, err)
	s := smtp.NewServer("test", "127.0.0.1:0", chain, cfg)
	require.NoError(t, s.Bind(context.Background()))
	t.Cleanup(s.Unbind)
	return s.ListenerAddrs()[0]
}

// expectReply reads a possibly multi-line SMTP reply and returns its lines.
func expectReply(t *testing.T, c *testutils.ScriptClient, code string) []string {
	t.Helper()
	var lines []string
	for {
		line := c.ReadLine()
		require.True(t, strings.HasPrefix(line, code), "expected %s reply, got %q", code, line)
		lines = append(lines, line)
		if len(line) == 3 || line[3] == ' ' {
			return lines
		}
	}
}

func TestSMTPHappyPath(t *testing.T) {
	capture := &captureHook{}
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{}, capture)
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	ehlo := expectReply(t, c, "250")
	assert.Contains(t, ehlo[0], "Hello client.example")

	c.Send("MAIL FROM:<a@ex.example>")
	c.Expect("250 ")
	c.Send("RCPT TO:<b@ex.example>")
	c.Expect("250 ")
	c.Send("DATA")
	c.Expect("354 ")
	c.SendRaw("Subject: x\r\n\r\nhi\r\n.\r\n")
	c.Expect("250 ")
	c.Send("QUIT")
	c.Expect("221 ")
	c.ExpectClosed()

	require.Len(t, capture.envelopes, 1)
	envelope := capture.envelopes[0]
	require.NotNil(t, envelope.Sender)
	assert.Equal(t, "a@ex.example", envelope.Sender.FullAddress())
	require.Len(t, envelope.Recipients, 1)
	assert.Equal(t, "b@ex.example", envelope.Recipients[0].FullAddress())
	assert.Equal(t, "Subject: x\r\n\r\nhi\r\n", string(envelope.Data))
}

func TestSMTPBadSequenceMailBeforeHelo(t *testing.T) {
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("MAIL FROM:<a@ex.example>")
	c.Expect("503 5.5.1")

	// Session state is unchanged: EHLO still works and the transaction
	// proceeds normally afterwards
	c.Send("EHLO client.example")
	expectReply(t, c, "250")
	c.Send("MAIL FROM:<a@ex.example>")
	c.Expect("250 ")
}

func TestSMTPRcptBeforeMail(t *testing.T) {
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	expectReply(t, c, "250")
	c.Send("RCPT TO:<b@ex.example>")
	c.Expect("503 5.5.1")
}

func TestSMTPDataWithoutRecipients(t *testing.T) {
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	expectReply(t, c, "250")
	c.Send("MAIL FROM:<a@ex.example>")
	c.Expect("250 ")
	c.Send("DATA")
	c.Expect("503 5.5.1")
}

func TestSMTPRsetPreservesHeloMode(t *testing.T) {
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	expectReply(t, c, "250")
	c.Send("MAIL FROM:<a@ex.example>")
	c.Expect("250 ")
	c.Send("RSET")
	c.Expect("250 ")

	// The HELO mode carried over: MAIL is legal again without a new EHLO
	c.Send("MAIL FROM:<c@ex.example>")
	c.Expect("250 ")
}

func TestSMTPSenderDomainFastFail(t *testing.T) {
	dns := mem.NewDNS()
	dns.AddMX("ex.example", "mx1.ex.example")
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{DNS: dns})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	expectReply(t, c, "250")

	c.Send("MAIL FROM:<x@nodomain.invalid>")
	line := c.Expect("501 5.1.7")
	assert.Contains(t, line, "no valid MX records")

	// Session remains usable: a resolvable sender is accepted
	c.Send("MAIL FROM:<a@ex.example>")
	c.Expect("250 ")
}

func TestSMTPSenderDomainTempFailureIsSoft(t *testing.T) {
	dns := mem.NewDNS()
	dns.AddMX("flaky.example", "mx.flaky.example")
	dns.FailTemporarily("flaky.example")
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{DNS: dns})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	expectReply(t, c, "250")
	c.Send("MAIL FROM:<x@flaky.example>")
	c.Expect("451 4.4.0")

	// A temporary rejection keeps the session in the post-HELO state
	c.Send("MAIL FROM:<x@flaky.example>")
	c.Expect("451 4.4.0")
}

func TestSMTPDotStuffingRoundTrip(t *testing.T) {
	capture := &captureHook{}
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{}, capture)
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	expectReply(t, c, "250")
	c.Send("MAIL FROM:<a@ex.example>")
	c.Expect("250 ")
	c.Send("RCPT TO:<b@ex.example>")
	c.Expect("250 ")
	c.Send("DATA")
	c.Expect("354 ")

	// Lines beginning with "." travel stuffed; "." alone terminates
	c.SendRaw("..leading dot\r\n...two dots\r\nplain\r\n.\r\n")
	c.Expect("250 ")

	require.Len(t, capture.envelopes, 1)
	assert.Equal(t, ".leading dot\r\n..two dots\r\nplain\r\n", string(capture.envelopes[0].Data))
}

func TestSMTPMessageSizeLimit(t *testing.T) {
	cfg := testutils.NewConfig()
	cfg.MaxSize = 64
	capture := &captureHook{}
	addr := startServer(t, cfg, smtp.ChainOptions{}, capture)
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	ehlo := expectReply(t, c, "250")
	assert.Contains(t, strings.Join(ehlo, "\n"), "SIZE 64")

	// SIZE parameter over the limit fails fast
	c.Send("MAIL FROM:<a@ex.example> SIZE=100000")
	c.Expect("552 ")

	// An oversized body is consumed and rejected at the terminator
	c.Send("MAIL FROM:<a@ex.example>")
	c.Expect("250 ")
	c.Send("RCPT TO:<b@ex.example>")
	c.Expect("250 ")
	c.Send("DATA")
	c.Expect("354 ")
	c.SendRaw(strings.Repeat("a", 200) + "\r\n.\r\n")
	c.Expect("552 ")
	assert.Empty(t, capture.envelopes)
}

func TestSMTPAuthPlain(t *testing.T) {
	store := mem.NewStore()
	require.NoError(t, store.AddUser("alice@ex.example", "secret"))
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{Auth: store})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	ehlo := expectReply(t, c, "250")
	assert.Contains(t, strings.Join(ehlo, "\n"), "AUTH PLAIN LOGIN")

	// base64("\x00alice@ex.example\x00secret")
	c.Send("AUTH PLAIN AGFsaWNlQGV4LmV4YW1wbGUAc2VjcmV0")
	c.Expect("235 ")

	c.Send("AUTH PLAIN AGFsaWNlQGV4LmV4YW1wbGUAc2VjcmV0")
	c.Expect("503 ")
}

func TestSMTPAuthPlainContinuation(t *testing.T) {
	store := mem.NewStore()
	require.NoError(t, store.AddUser("alice@ex.example", "secret"))
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{Auth: store})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	expectReply(t, c, "250")
	c.Send("AUTH PLAIN")
	c.Expect("334")
	c.Send("AGFsaWNlQGV4LmV4YW1wbGUAc2VjcmV0")
	c.Expect("235 ")
}

func TestSMTPAuthLoginBadPassword(t *testing.T) {
	store := mem.NewStore()
	require.NoError(t, store.AddUser("alice@ex.example", "secret"))
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{Auth: store})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	expectReply(t, c, "250")
	c.Send("AUTH LOGIN")
	c.Expect("334 ")
	c.Send("YWxpY2VAZXguZXhhbXBsZQ==") // alice@ex.example
	c.Expect("334 ")
	c.Send("d3Jvbmc=") // wrong
	c.Expect("535 5.7.8")
}

func TestSMTPUnknownCommand(t *testing.T) {
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("FROBNICATE now")
	c.Expect("500 ")
}

func TestSMTPHeloWithoutArgument(t *testing.T) {
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("HELO")
	c.Expect("501 5.5.4")
}

func TestSMTPBracketsEnforcement(t *testing.T) {
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	expectReply(t, c, "250")
	c.Send("MAIL FROM:a@ex.example")
	c.Expect("553 ")
}

func TestSMTPNullReversePath(t *testing.T) {
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("EHLO client.example")
	expectReply(t, c, "250")
	c.Send("MAIL FROM:<>")
	c.Expect("250 ")
}

func TestSMTPVrfyAndNoop(t *testing.T) {
	addr := startServer(t, testutils.NewConfig(), smtp.ChainOptions{})
	c := testutils.Dial(t, addr)

	c.Expect("220 ")
	c.Send("NOOP")
	c.Expect("250 ")
	c.Send("VRFY postmaster")
	c.Expect("252 ")
}
