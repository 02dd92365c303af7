package pop3

import (
	"github.com/jjYBdx4IL/james-protocols/server"
)

// WelcomeMessageHandler emits the service greeting on accept.
type WelcomeMessageHandler struct{}

// OnConnect implements server.ConnectHandler.
func (h *WelcomeMessageHandler) OnConnect(session *server.Session) server.Response {
	greeting := session.Config().Greeting()
	if greeting == "" {
		greeting = session.Config().HelloName() + " POP3 server ready"
	}
	return NewOKResponse(greeting)
}

// ServiceUnavailableHandler replaces the greeting when the mailbox backend
// is down at session start: greet with -ERR and close.
type ServiceUnavailableHandler struct{}

// OnConnect implements server.ConnectHandler.
func (h *ServiceUnavailableHandler) OnConnect(session *server.Session) server.Response {
	return NewErrResponse("[SYS/TEMP] Service not available, try again later").WithEndSession()
}
