package pop3

import (
	"fmt"
	"strconv"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// StatCmdHandler implements STAT: drop listing of non-deleted messages.
type StatCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *StatCmdHandler) ImplCommands() []string {
	return []string{"STAT"}
}

// OnCommand implements server.CommandHandler.
func (h *StatCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if response := requireTransaction(session); response != nil {
		return response
	}
	mailbox, _ := sessionMailbox(session)
	count, octets, err := mailbox.Size()
	if err != nil {
		session.Log("STAT error: %v", err)
		return NewErrResponse("Internal server error")
	}
	return NewOKResponse(fmt.Sprintf("%d %d", count, octets))
}

// ListCmdHandler implements LIST, with and without a message-number
// argument. Message numbers stay stable across DELE per RFC 1939 §5.
type ListCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *ListCmdHandler) ImplCommands() []string {
	return []string{"LIST"}
}

// OnCommand implements server.CommandHandler.
func (h *ListCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if response := requireTransaction(session); response != nil {
		return response
	}
	mailbox, _ := sessionMailbox(session)

	if args != "" {
		number, err := strconv.Atoi(args)
		if err != nil || number < 1 {
			return clientError(session, "Invalid message number")
		}
		messages, err := mailbox.List()
		if err != nil {
			session.Log("LIST error: %v", err)
			return NewErrResponse("Internal server error")
		}
		for _, msg := range messages {
			if msg.Number == number {
				return NewOKResponse(fmt.Sprintf("%d %d", msg.Number, msg.Size))
			}
		}
		return clientError(session, "No such message")
	}

	messages, err := mailbox.List()
	if err != nil {
		session.Log("LIST error: %v", err)
		return NewErrResponse("Internal server error")
	}
	body := make([]string, 0, len(messages))
	var octets int64
	for _, msg := range messages {
		body = append(body, fmt.Sprintf("%d %d", msg.Number, msg.Size))
		octets += msg.Size
	}
	session.DebugLog("listed %d messages", len(messages))
	return NewMultiLineResponse(fmt.Sprintf("%d messages (%d octets)", len(messages), octets), body)
}

// UidlCmdHandler implements UIDL, with and without a message-number
// argument.
type UidlCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *UidlCmdHandler) ImplCommands() []string {
	return []string{"UIDL"}
}

// OnCommand implements server.CommandHandler.
func (h *UidlCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if response := requireTransaction(session); response != nil {
		return response
	}
	mailbox, _ := sessionMailbox(session)

	if args != "" {
		number, err := strconv.Atoi(args)
		if err != nil || number < 1 {
			return clientError(session, "Invalid message number")
		}
		uid, err := mailbox.UIDL(number)
		if err != nil {
			return clientError(session, "No such message")
		}
		return NewOKResponse(fmt.Sprintf("%d %s", number, uid))
	}

	messages, err := mailbox.List()
	if err != nil {
		session.Log("UIDL error: %v", err)
		return NewErrResponse("Internal server error")
	}
	body := make([]string, 0, len(messages))
	for _, msg := range messages {
		uid, err := mailbox.UIDL(msg.Number)
		if err != nil {
			session.Log("UIDL error for message %d: %v", msg.Number, err)
			return NewErrResponse("Internal server error")
		}
		body = append(body, fmt.Sprintf("%d %s", msg.Number, uid))
	}
	return NewMultiLineResponse("unique-id listing follows", body)
}
