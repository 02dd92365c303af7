package pop3

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jjYBdx4IL/james-protocols/server"
)

// RetrCmdHandler implements RETR: streams the full message as a dot-stuffed
// multi-line response.
type RetrCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *RetrCmdHandler) ImplCommands() []string {
	return []string{"RETR"}
}

// OnCommand implements server.CommandHandler.
func (h *RetrCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if response := requireTransaction(session); response != nil {
		return response
	}
	number, response := parseMessageNumber(session, args)
	if response != nil {
		return response
	}

	mailbox, _ := sessionMailbox(session)
	data, response := readMessage(session, mailbox, number)
	if response != nil {
		return response
	}

	session.DebugLog("retrieved message %d", number)
	return NewMultiLineResponse(fmt.Sprintf("%d octets", len(data)), messageLines(data))
}

// TopCmdHandler implements TOP: headers plus the first n body lines.
type TopCmdHandler struct{}

// ImplCommands implements server.CommandHandler.
func (h *TopCmdHandler) ImplCommands() []string {
	return []string{"TOP"}
}

// OnCommand implements server.CommandHandler.
func (h *TopCmdHandler) OnCommand(session *server.Session, verb, args string) server.Response {
	if response := requireTransaction(session); response != nil {
		return response
	}

	fields := strings.Fields(args)
	if len(fields) != 2 {
		return clientError(session, "Usage: TOP msg n")
	}
	number, response := parseMessageNumber(session, fields[0])
	if response != nil {
		return response
	}
	bodyLines, err := strconv.Atoi(fields[1])
	if err != nil || bodyLines < 0 {
		return clientError(session, "Invalid line count")
	}

	mailbox, _ := sessionMailbox(session)
	data, response := readMessage(session, mailbox, number)
	if response != nil {
		return response
	}

	lines := messageLines(data)
	var top []string
	inBody := false
	remaining := bodyLines
	for _, line := range lines {
		if inBody {
			if remaining == 0 {
				break
			}
			remaining--
		} else if line == "" {
			inBody = true
		}
		top = append(top, line)
	}

	return NewMultiLineResponse("top of message follows", top)
}

// parseMessageNumber validates a 1-based message number argument.
func parseMessageNumber(session *server.Session, arg string) (int, server.Response) {
	if arg == "" {
		return 0, clientError(session, "Missing message number")
	}
	number, err := strconv.Atoi(arg)
	if err != nil || number < 1 {
		return 0, clientError(session, "Invalid message number")
	}
	return number, nil
}

// readMessage retrieves and drains one message stream.
func readMessage(session *server.Session, mailbox Mailbox, number int) ([]byte, server.Response) {
	reader, err := mailbox.Retrieve(number)
	if err != nil {
		if errors.Is(err, ErrNoSuchMessage) {
			return nil, clientError(session, "No such message")
		}
		session.Log("retrieve error for message %d: %v", number, err)
		return nil, NewErrResponse("[SYS/TEMP] Message not available")
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		session.Log("read error for message %d: %v", number, err)
		return nil, NewErrResponse("[SYS/TEMP] Message not available")
	}
	return data, nil
}

// messageLines splits message bytes into response lines, tolerating bare
// LF line endings.
func messageLines(data []byte) []string {
	text := strings.TrimSuffix(string(data), "\r\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	lines := make([]string, len(raw))
	for i, line := range raw {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
