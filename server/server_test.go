package server_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjYBdx4IL/james-protocols/server"
	"github.com/jjYBdx4IL/james-protocols/server/smtp"
	"github.com/jjYBdx4IL/james-protocols/testutils"
)

func newBoundServer(t *testing.T, configure func(*server.Server)) *server.Server {
	t.Helper()
	chain, err := smtp.NewProtocolHandlerChain(smtp.ChainOptions{})
	require.NoError(t, err)
	s := smtp.NewServer("test", "127.0.0.1:0", chain, testutils.NewConfig())
	if configure != nil {
		configure(s)
	}
	require.NoError(t, s.Bind(context.Background()))
	t.Cleanup(s.Unbind)
	return s
}

func TestBindTwiceFails(t *testing.T) {
	s := newBoundServer(t, nil)
	assert.ErrorIs(t, s.Bind(context.Background()), server.ErrAlreadyBound)
}

func TestConfigurationRejectedOnceBound(t *testing.T) {
	s := newBoundServer(t, nil)
	assert.ErrorIs(t, s.SetIdleTimeout(time.Minute), server.ErrAlreadyBound)
	assert.ErrorIs(t, s.SetMaxLineLength(1024), server.ErrAlreadyBound)
	assert.ErrorIs(t, s.SetBacklog(128), server.ErrAlreadyBound)
	assert.ErrorIs(t, s.SetMaxConnections(10), server.ErrAlreadyBound)
	assert.ErrorIs(t, s.AddAddress("127.0.0.1:0"), server.ErrAlreadyBound)
}

func TestBindWithoutAddressFails(t *testing.T) {
	chain, err := smtp.NewProtocolHandlerChain(smtp.ChainOptions{})
	require.NoError(t, err)
	s := smtp.NewServer("test", "", chain, testutils.NewConfig())
	assert.ErrorIs(t, s.Bind(context.Background()), server.ErrNoAddress)
}

func TestBindUnwiredChainFails(t *testing.T) {
	chain := server.NewProtocolHandlerChain()
	s := smtp.NewServer("test", "127.0.0.1:0", chain, testutils.NewConfig())
	assert.Error(t, s.Bind(context.Background()))
}

func TestUnbindIsIdempotent(t *testing.T) {
	s := newBoundServer(t, nil)
	s.Unbind()
	s.Unbind()
}

func TestLineTooLongTerminatesAfterResponse(t *testing.T) {
	s := newBoundServer(t, func(s *server.Server) {
		require.NoError(t, s.SetMaxLineLength(128))
	})
	c := testutils.Dial(t, s.ListenerAddrs()[0])

	c.Expect("220 ")
	c.Send("EHLO " + strings.Repeat("x", 4096))
	c.Expect("500 ")
	c.ExpectClosed()
}

func TestIdleTimeoutSendsGoodbye(t *testing.T) {
	s := newBoundServer(t, func(s *server.Server) {
		require.NoError(t, s.SetIdleTimeout(200 * time.Millisecond))
	})
	c := testutils.Dial(t, s.ListenerAddrs()[0])

	c.Expect("220 ")
	// Stay silent past the deadline
	c.Expect("421 ")
	c.ExpectClosed()
}

func TestUnbindClosesLiveConnections(t *testing.T) {
	s := newBoundServer(t, nil)
	c := testutils.Dial(t, s.ListenerAddrs()[0])
	c.Expect("220 ")

	s.Unbind()
	c.ExpectClosed()
}

func TestPipelinedCommandsAnswerInOrder(t *testing.T) {
	s := newBoundServer(t, nil)
	c := testutils.Dial(t, s.ListenerAddrs()[0])

	c.Expect("220 ")
	c.SendRaw("NOOP\r\nNOOP\r\nQUIT\r\n")
	c.Expect("250 ")
	c.Expect("250 ")
	c.Expect("221 ")
	c.ExpectClosed()
}
