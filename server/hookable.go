package server

import (
	"github.com/jjYBdx4IL/james-protocols/pkg/metrics"
)

// HookableCommand wraps one command verb (or a small set of aliases) and
// runs the filter → hook chain → core command template:
//
//	response := FilterChecks(session, verb, args)
//	if response != nil, return it
//	for each hook, in registration order:
//	    result := CallHook(hook, session, args)
//	    DENY / DENYSOFT / DISCONNECT stop the chain
//	    OK is recorded and overrides later DECLINED
//	return Synthesize(recorded result), or CoreCmd if no hook took ownership
//
// H is the hook capability type this command cares about; providers are
// collected from the chain during wiring, in registration order.
type HookableCommand[H any] struct {
	// Protocol is the lowercase metrics label.
	Protocol string

	// HookName names the hook type in metrics, e.g. "mail".
	HookName string

	// Verbs are the uppercase command verbs this handler implements.
	Verbs []string

	// FilterChecks runs before the hook chain. A non-nil response aborts
	// the command (syntax error, bad sequence). Optional.
	FilterChecks func(session *Session, verb string, args string) Response

	// CoreCmd produces the response when no hook took ownership.
	CoreCmd func(session *Session, verb string, args string) Response

	// CallHook invokes one hook provider.
	CallHook func(hook H, session *Session, args string) HookResult

	// Synthesize builds the protocol response for a terminating or OK hook
	// result.
	Synthesize func(session *Session, result HookResult) Response

	hooks []H
}

// ImplCommands implements CommandHandler.
func (c *HookableCommand[H]) ImplCommands() []string {
	return c.Verbs
}

// WireExtensions collects the hook providers of type H from the chain.
func (c *HookableCommand[H]) WireExtensions(handlers []any) error {
	c.hooks = HandlersOfType[H](handlers)
	return nil
}

// Hooks returns the wired hook providers in invocation order.
func (c *HookableCommand[H]) Hooks() []H {
	return c.hooks
}

// OnCommand implements CommandHandler.
func (c *HookableCommand[H]) OnCommand(session *Session, verb string, args string) Response {
	if c.FilterChecks != nil {
		if response := c.FilterChecks(session, verb, args); response != nil {
			return response
		}
	}

	recorded, tookOwnership := HookResult{}, false
	for _, hook := range c.hooks {
		result := c.CallHook(hook, session, args)
		metrics.HookResults.WithLabelValues(c.Protocol, c.HookName, result.Code.String()).Inc()

		if result.Code.Terminates() {
			return c.Synthesize(session, result)
		}
		if result.Code == HookOK && !tookOwnership {
			recorded, tookOwnership = result, true
		}
	}

	if tookOwnership {
		return c.Synthesize(session, recorded)
	}
	return c.CoreCmd(session, verb, args)
}
