package smtp

import (
	"github.com/jjYBdx4IL/james-protocols/server"
)

// SMTPResponse is a three-digit-code reply with one or more text lines.
// Multi-line replies use the hyphen continuation form on the wire.
type SMTPResponse struct {
	code       string
	lines      []string
	endSession bool
}

// NewResponse builds a reply from a code and its text lines.
func NewResponse(code string, lines ...string) *SMTPResponse {
	return &SMTPResponse{code: code, lines: lines}
}

// WithEndSession marks the response as the last of the session.
func (r *SMTPResponse) WithEndSession() *SMTPResponse {
	r.endSession = true
	return r
}

// AppendLine adds a text line to the reply.
func (r *SMTPResponse) AppendLine(line string) {
	r.lines = append(r.lines, line)
}

// RetCode implements server.Response.
func (r *SMTPResponse) RetCode() string {
	return r.code
}

// Lines implements server.Response: "250-first", "250-...", "250 last".
func (r *SMTPResponse) Lines() []string {
	if len(r.lines) == 0 {
		return []string{r.code + " "}
	}
	out := make([]string, len(r.lines))
	for i, line := range r.lines {
		sep := " "
		if i < len(r.lines)-1 {
			sep = "-"
		}
		out[i] = r.code + sep + line
	}
	return out
}

// IsEndSession implements server.Response.
func (r *SMTPResponse) IsEndSession() bool {
	return r.endSession
}

// Responses returns the transport-level responses for SMTP and LMTP.
func Responses() server.ProtocolResponses {
	return server.ProtocolResponses{
		Timeout: func() server.Response {
			return NewResponse(CodeServiceUnavailable,
				DSNStatus(DSNTemporary, DSNNetworkOther)+" Connection timeout, closing transmission channel").WithEndSession()
		},
		LineTooLong: func() server.Response {
			return NewResponse(CodeSyntaxError,
				DSNStatus(DSNPermanent, DSNDeliverySyntax)+" Line length exceeded").WithEndSession()
		},
		Fault: func() server.Response {
			return NewResponse(CodeLocalError,
				DSNStatus(DSNTemporary, DSNSystemOther)+" Requested action aborted: local error in processing")
		},
	}
}

// badSequence builds the canonical 503 reply.
func badSequence(text string) *SMTPResponse {
	return NewResponse(CodeBadSequence, DSNStatus(DSNPermanent, DSNDeliveryBadSequence)+" "+text)
}

// syntaxError builds the canonical 501 reply.
func syntaxError(detail, text string) *SMTPResponse {
	return NewResponse(CodeSyntaxErrorArgs, DSNStatus(DSNPermanent, detail)+" "+text)
}

// SynthesizeHookResponse converts a terminating or OK hook result into a
// reply, applying protocol defaults where the hook supplied no payload.
// LMTP reuses it for its per-recipient replies.
func SynthesizeHookResponse(result server.HookResult) server.Response {
	return synthesizeHookResponse(result)
}

func synthesizeHookResponse(result server.HookResult) server.Response {
	code, status, message := result.RetCode, result.Status, result.Message

	switch result.Code {
	case server.HookDeny:
		if code == "" {
			code = CodeMailboxUnavailable
		}
		if status == "" {
			status = DSNStatus(DSNPermanent, DSNSecurityOther)
		}
		if message == "" {
			message = "Rejected by policy"
		}
	case server.HookDenySoft:
		if code == "" {
			code = CodeLocalError
		}
		if status == "" {
			status = DSNStatus(DSNTemporary, DSNSystemOther)
		}
		if message == "" {
			message = "Temporary failure, try again later"
		}
	case server.HookDisconnect:
		if code == "" {
			code = CodeServiceUnavailable
		}
		if status == "" {
			status = DSNStatus(DSNTemporary, DSNNetworkOther)
		}
		if message == "" {
			message = "Closing transmission channel"
		}
		return NewResponse(code, status+" "+message).WithEndSession()
	default: // HookOK
		if code == "" {
			code = CodeMailOK
		}
		if status == "" {
			status = DSNStatus(DSNSuccess, DSNUndefined)
		}
		if message == "" {
			message = "OK"
		}
	}
	return NewResponse(code, status+" "+message)
}
