package smtp

import (
	"github.com/jjYBdx4IL/james-protocols/server"
)

// NewQuitCmdHandler builds the QUIT command handler. QuitHooks run before
// the goodbye; whatever they return, the session ends.
func NewQuitCmdHandler() *server.HookableCommand[QuitHook] {
	return &server.HookableCommand[QuitHook]{
		Protocol: "smtp",
		HookName: "quit",
		Verbs:    []string{"QUIT"},
		CallHook: func(hook QuitHook, session *server.Session, args string) server.HookResult {
			return hook.OnQuit(session)
		},
		Synthesize: func(session *server.Session, result server.HookResult) server.Response {
			response := synthesizeHookResponse(result)
			if sr, ok := response.(*SMTPResponse); ok {
				return sr.WithEndSession()
			}
			return response
		},
		CoreCmd: func(session *server.Session, verb, args string) server.Response {
			return NewResponse(CodeServiceClosing,
				DSNStatus(DSNSuccess, DSNUndefined)+" "+session.Config().HelloName()+
					" Service closing transmission channel").WithEndSession()
		},
	}
}
