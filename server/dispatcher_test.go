package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wireDispatcher(t *testing.T, handlers ...any) *CommandDispatcher {
	t.Helper()
	dispatcher := newTestDispatcher()
	chain := NewProtocolHandlerChain()
	require.NoError(t, chain.AddAll(append(handlers, dispatcher)...))
	require.NoError(t, chain.WireExtensibleHandlers())
	return dispatcher
}

func TestDispatcherRoutesVerbWithVerbatimArgs(t *testing.T) {
	mail := &fakeCommandHandler{verbs: []string{"MAIL"}}
	unknown := &fakeCommandHandler{verbs: []string{UnknownCommand}}
	dispatcher := wireDispatcher(t, mail, unknown)
	session, _ := newTestSession()

	dispatcher.OnLine(session, []byte("mail FROM:<a@Example.com>  SIZE=99"))

	assert.Equal(t, 1, mail.invoked, "handler must be invoked exactly once")
	assert.Equal(t, "MAIL", mail.gotVerb)
	assert.Equal(t, "FROM:<a@Example.com>  SIZE=99", mail.gotArgs, "arguments are passed verbatim")
	assert.Equal(t, 0, unknown.invoked)
}

func TestDispatcherRoutesUnknownVerb(t *testing.T) {
	noop := &fakeCommandHandler{verbs: []string{"NOOP"}}
	unknown := &fakeCommandHandler{verbs: []string{UnknownCommand}}
	dispatcher := wireDispatcher(t, noop, unknown)
	session, _ := newTestSession()

	dispatcher.OnLine(session, []byte("BOGUS args"))

	assert.Equal(t, 0, noop.invoked)
	assert.Equal(t, 1, unknown.invoked)
	assert.Equal(t, "BOGUS", unknown.gotVerb)
}

func TestDispatcherBareVerb(t *testing.T) {
	quit := &fakeCommandHandler{verbs: []string{"QUIT"}}
	unknown := &fakeCommandHandler{verbs: []string{UnknownCommand}}
	dispatcher := wireDispatcher(t, quit, unknown)
	session, _ := newTestSession()

	dispatcher.OnLine(session, []byte("quit"))
	assert.Equal(t, 1, quit.invoked)
	assert.Equal(t, "", quit.gotArgs)
}

func TestDispatcherConvertsPanicToFault(t *testing.T) {
	faulty := &fakeCommandHandler{
		verbs:   []string{"BOOM"},
		respond: func(*Session, string, string) Response { panic("handler bug") },
	}
	unknown := &fakeCommandHandler{verbs: []string{UnknownCommand}}
	dispatcher := wireDispatcher(t, faulty, unknown)
	session, _ := newTestSession()

	response := dispatcher.OnLine(session, []byte("BOOM"))
	require.NotNil(t, response)
	assert.Equal(t, "451", response.RetCode())
	assert.False(t, response.IsEndSession(), "a handler fault must not close the session")
}
