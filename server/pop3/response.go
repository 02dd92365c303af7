package pop3

import (
	"github.com/jjYBdx4IL/james-protocols/server"
)

// Status indicators (RFC 1939 §3)
const (
	StatusOK  = "+OK"
	StatusErr = "-ERR"
)

// POP3Response is a +OK/-ERR reply, optionally followed by a dot-stuffed
// multi-line body terminated by a bare dot.
type POP3Response struct {
	status     string
	message    string
	body       []string
	multiline  bool
	endSession bool
}

// NewOKResponse builds a single-line +OK reply.
func NewOKResponse(message string) *POP3Response {
	return &POP3Response{status: StatusOK, message: message}
}

// NewErrResponse builds a single-line -ERR reply.
func NewErrResponse(message string) *POP3Response {
	return &POP3Response{status: StatusErr, message: message}
}

// NewMultiLineResponse builds a +OK reply followed by body lines. The body
// is dot-stuffed on the wire and terminated with a bare dot; an empty body
// still terminates properly.
func NewMultiLineResponse(message string, body []string) *POP3Response {
	return &POP3Response{status: StatusOK, message: message, body: body, multiline: true}
}

// WithEndSession marks the response as the last of the session.
func (r *POP3Response) WithEndSession() *POP3Response {
	r.endSession = true
	return r
}

// AppendLine adds a body line, making the response multi-line.
func (r *POP3Response) AppendLine(line string) {
	r.body = append(r.body, line)
	r.multiline = true
}

// RetCode implements server.Response.
func (r *POP3Response) RetCode() string {
	return r.status
}

// Lines implements server.Response, applying leading-dot stuffing to the
// body.
func (r *POP3Response) Lines() []string {
	first := r.status
	if r.message != "" {
		first += " " + r.message
	}
	lines := []string{first}
	if r.multiline {
		for _, line := range r.body {
			if len(line) > 0 && line[0] == '.' {
				line = "." + line
			}
			lines = append(lines, line)
		}
		lines = append(lines, ".")
	}
	return lines
}

// IsEndSession implements server.Response.
func (r *POP3Response) IsEndSession() bool {
	return r.endSession
}

// Responses returns the transport-level responses for POP3.
func Responses() server.ProtocolResponses {
	return server.ProtocolResponses{
		Timeout: func() server.Response {
			return NewErrResponse("[IN-USE] Idle timeout, please reconnect").WithEndSession()
		},
		LineTooLong: func() server.Response {
			return NewErrResponse("Line too long").WithEndSession()
		},
		Fault: func() server.Response {
			return NewErrResponse("Internal server error")
		},
	}
}
