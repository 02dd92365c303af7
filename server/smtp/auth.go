package smtp

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/jjYBdx4IL/james-protocols/pkg/metrics"
	"github.com/jjYBdx4IL/james-protocols/server"
)

// AuthCmdHandler implements AUTH PLAIN and AUTH LOGIN. PLAIN is decoded by
// a go-sasl server; LOGIN reads its two prompts through stacked line
// handlers. AuthHooks run before the AuthBackend and may accept or reject
// credentials themselves.
type AuthCmdHandler struct {
	backend server.AuthBackend
	hooks   []AuthHook
}

// NewAuthCmdHandler builds the AUTH command handler.
func NewAuthCmdHandler(backend server.AuthBackend) *AuthCmdHandler {
	return &AuthCmdHandler{backend: backend}
}

// ImplCommands implements server.CommandHandler.
func (h *AuthCmdHandler) ImplCommands() []string {
	return []string{"AUTH"}
}

// WireExtensions implements server.ExtensibleHandler.
func (h *AuthCmdHandler) WireExtensions(handlers []any) error {
	h.hooks = server.HandlersOfType[AuthHook](handlers)
	return nil
}

// OnCommand implements server.CommandHandler.
func (h *AuthCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if session.IsAuthenticated() {
		return badSequence("Already authenticated")
	}

	mechanism, initial, _ := strings.Cut(args, " ")
	switch strings.ToUpper(mechanism) {
	case "PLAIN":
		if initial == "" {
			session.PushLineHandler(&authContinuationHandler{handler: h, decode: h.decodePlain})
			return NewResponse(CodeAuthContinue, "")
		}
		return h.finishPlain(session, initial)

	case "LOGIN":
		if initial != "" {
			username, err := base64Decode(initial)
			if err != nil {
				return h.authFailure(session, "Invalid base64 encoding")
			}
			session.PushLineHandler(&authLoginPasswordHandler{handler: h, username: username})
			return NewResponse(CodeAuthContinue, base64Encode("Password:"))
		}
		session.PushLineHandler(&authLoginUsernameHandler{handler: h})
		return NewResponse(CodeAuthContinue, base64Encode("Username:"))

	default:
		return NewResponse(CodeParamNotImpl,
			DSNStatus(DSNPermanent, DSNSecurityOther)+" Unsupported authentication mechanism")
	}
}

// finishPlain decodes and verifies an AUTH PLAIN response.
func (h *AuthCmdHandler) finishPlain(session *server.Session, encoded string) server.Response {
	response, err := h.decodePlain(session, encoded)
	if err != nil {
		return h.authFailure(session, "Invalid base64 encoding")
	}
	return response
}

// decodePlain runs the base64 SASL PLAIN exchange through go-sasl.
func (h *AuthCmdHandler) decodePlain(session *server.Session, encoded string) (server.Response, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	var username, credential string
	saslServer := sasl.NewPlainServer(func(identity, user, pass string) error {
		if identity != "" && identity != user {
			return errors.New("authorization identity not supported")
		}
		username, credential = user, pass
		return nil
	})
	if _, _, err := saslServer.Next(raw); err != nil {
		return h.authFailure(session, "Authentication failed"), nil
	}

	return h.authenticate(session, username, credential), nil
}

// authenticate walks the AuthHook chain, then the backend.
func (h *AuthCmdHandler) authenticate(session *server.Session, username, credential string) server.Response {
	for _, hook := range h.hooks {
		result := hook.OnAuth(session, username, credential)
		metrics.HookResults.WithLabelValues("smtp", "auth", result.Code.String()).Inc()
		switch {
		case result.Code == server.HookOK:
			return h.authSuccess(session, username)
		case result.Code.Terminates():
			metrics.AuthenticationAttempts.WithLabelValues("smtp", "failure").Inc()
			return synthesizeHookResponse(result)
		}
	}

	if h.backend == nil {
		return h.authFailure(session, "Authentication failed")
	}
	identity, err := h.backend.Authenticate(session.Context(), username, credential)
	if err != nil {
		if errors.Is(err, server.ErrAuthFailed) {
			return h.authFailure(session, "Authentication failed")
		}
		session.Log("auth backend error: %v", err)
		metrics.AuthenticationAttempts.WithLabelValues("smtp", "error").Inc()
		return NewResponse(CodeLocalError,
			DSNStatus(DSNTemporary, DSNSystemOther)+" Temporary authentication failure")
	}
	return h.authSuccess(session, identity)
}

func (h *AuthCmdHandler) authSuccess(session *server.Session, identity string) server.Response {
	session.ConnectionState().Put(server.KeyAuthIdentity, identity)
	metrics.AuthenticationAttempts.WithLabelValues("smtp", "success").Inc()
	session.Log("authenticated as %s", identity)
	return NewResponse(CodeAuthSuccessful,
		DSNStatus(DSNSuccess, DSNSecurityOther)+" Authentication successful")
}

func (h *AuthCmdHandler) authFailure(session *server.Session, text string) server.Response {
	metrics.AuthenticationAttempts.WithLabelValues("smtp", "failure").Inc()
	return NewResponse(CodeAuthFailed,
		DSNStatus(DSNPermanent, DSNSecurityAuthFailure)+" "+text)
}

// authCancelled is the reply to a "*" continuation per RFC 4954.
func authCancelled() server.Response {
	return NewResponse(CodeSyntaxErrorArgs,
		DSNStatus(DSNPermanent, DSNUndefined)+" Authentication cancelled")
}

// authContinuationHandler reads the single continuation line of AUTH PLAIN.
type authContinuationHandler struct {
	handler *AuthCmdHandler
	decode  func(*server.Session, string) (server.Response, error)
}

func (l *authContinuationHandler) OnLine(session *server.Session, line []byte) server.Response {
	session.PopLineHandler()
	text := string(line)
	if text == "*" {
		return authCancelled()
	}
	response, err := l.decode(session, text)
	if err != nil {
		return l.handler.authFailure(session, "Invalid base64 encoding")
	}
	return response
}

// authLoginUsernameHandler reads the username line of AUTH LOGIN, then
// swaps itself for the password handler.
type authLoginUsernameHandler struct {
	handler *AuthCmdHandler
}

func (l *authLoginUsernameHandler) OnLine(session *server.Session, line []byte) server.Response {
	session.PopLineHandler()
	text := string(line)
	if text == "*" {
		return authCancelled()
	}
	username, err := base64Decode(text)
	if err != nil {
		return l.handler.authFailure(session, "Invalid base64 encoding")
	}
	session.PushLineHandler(&authLoginPasswordHandler{handler: l.handler, username: username})
	return NewResponse(CodeAuthContinue, base64Encode("Password:"))
}

// authLoginPasswordHandler reads the password line of AUTH LOGIN.
type authLoginPasswordHandler struct {
	handler  *AuthCmdHandler
	username string
}

func (l *authLoginPasswordHandler) OnLine(session *server.Session, line []byte) server.Response {
	session.PopLineHandler()
	text := string(line)
	if text == "*" {
		return authCancelled()
	}
	credential, err := base64Decode(text)
	if err != nil {
		return l.handler.authFailure(session, "Invalid base64 encoding")
	}
	return l.handler.authenticate(session, l.username, credential)
}

func base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func base64Decode(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
