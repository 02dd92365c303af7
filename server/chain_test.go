package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommandHandler struct {
	verbs   []string
	invoked int
	gotVerb string
	gotArgs string
	respond func(*Session, string, string) Response
}

func (h *fakeCommandHandler) ImplCommands() []string { return h.verbs }

func (h *fakeCommandHandler) OnCommand(session *Session, verb, args string) Response {
	h.invoked++
	h.gotVerb, h.gotArgs = verb, args
	if h.respond != nil {
		return h.respond(session, verb, args)
	}
	return nil
}

type fakeResponse struct {
	code string
	end  bool
}

func (r fakeResponse) RetCode() string    { return r.code }
func (r fakeResponse) Lines() []string    { return []string{r.code} }
func (r fakeResponse) IsEndSession() bool { return r.end }

func newTestDispatcher() *CommandDispatcher {
	return NewCommandDispatcher("test", func() Response { return fakeResponse{code: "451"} })
}

func TestChainAddAfterWireFails(t *testing.T) {
	chain := NewProtocolHandlerChain()
	require.NoError(t, chain.Add(&fakeCommandHandler{verbs: []string{UnknownCommand}}))
	require.NoError(t, chain.Add(newTestDispatcher()))
	require.NoError(t, chain.WireExtensibleHandlers())

	assert.ErrorIs(t, chain.Add(&fakeCommandHandler{verbs: []string{"X"}}), ErrChainWired)
	assert.ErrorIs(t, chain.WireExtensibleHandlers(), ErrChainWired)
}

func TestChainDuplicateVerbIsWiringError(t *testing.T) {
	chain := NewProtocolHandlerChain()
	require.NoError(t, chain.AddAll(
		&fakeCommandHandler{verbs: []string{"NOOP"}},
		&fakeCommandHandler{verbs: []string{"NOOP"}},
		&fakeCommandHandler{verbs: []string{UnknownCommand}},
		newTestDispatcher(),
	))

	err := chain.WireExtensibleHandlers()
	require.Error(t, err)
	var wiringErr *WiringError
	assert.True(t, errors.As(err, &wiringErr))
}

func TestChainMissingUnknownHandlerIsWiringError(t *testing.T) {
	chain := NewProtocolHandlerChain()
	require.NoError(t, chain.AddAll(
		&fakeCommandHandler{verbs: []string{"NOOP"}},
		newTestDispatcher(),
	))
	assert.Error(t, chain.WireExtensibleHandlers())
}

func TestHandlersOfTypePreservesOrder(t *testing.T) {
	first := &fakeCommandHandler{verbs: []string{"A"}}
	second := &fakeCommandHandler{verbs: []string{"B"}}
	handlers := []any{"not a handler", first, 42, second}

	got := HandlersOfType[CommandHandler](handlers)
	require.Len(t, got, 2)
	assert.Same(t, first, got[0].(*fakeCommandHandler))
	assert.Same(t, second, got[1].(*fakeCommandHandler))
}
