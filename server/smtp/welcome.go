package smtp

import (
	"github.com/jjYBdx4IL/james-protocols/server"
)

// WelcomeMessageHandler emits the service greeting on accept.
type WelcomeMessageHandler struct{}

// OnConnect implements server.ConnectHandler.
func (h *WelcomeMessageHandler) OnConnect(session *server.Session) server.Response {
	greeting := session.Config().Greeting()
	if greeting == "" {
		label := "ESMTP"
		if session.Protocol() == "LMTP" {
			label = "LMTP"
		}
		greeting = session.Config().HelloName() + " " + label + " Service ready"
	}
	return NewResponse(CodeServiceReady, greeting)
}

// ServiceUnavailableHandler replaces the greeting with a 421 and closes the
// session. Embedders install it instead of WelcomeMessageHandler when the
// backing store is known to be down.
type ServiceUnavailableHandler struct{}

// OnConnect implements server.ConnectHandler.
func (h *ServiceUnavailableHandler) OnConnect(session *server.Session) server.Response {
	return NewResponse(CodeServiceUnavailable,
		DSNStatus(DSNTemporary, DSNSystemOther)+" Service not available, closing transmission channel").WithEndSession()
}
