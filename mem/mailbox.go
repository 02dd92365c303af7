package mem

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"

	"github.com/jjYBdx4IL/james-protocols/server/pop3"
	"lukechampine.com/blake3"
)

// Mailbox implements pop3.Mailbox over a locked snapshot of a user's
// maildrop. Message numbers stay stable for the session; deletes are marks
// applied at CommitDeletes.
func (s *Store) Mailbox(ctx context.Context, username string) (pop3.Mailbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.account(username)
	if acct.locked {
		return nil, pop3.ErrMailboxLocked
	}
	acct.locked = true

	snapshot := make([]*message, len(acct.messages))
	copy(snapshot, acct.messages)

	return &mailbox{
		store:    s,
		username: username,
		messages: snapshot,
		deleted:  make(map[int]bool),
	}, nil
}

type mailbox struct {
	store    *Store
	username string
	messages []*message
	deleted  map[int]bool
	closed   bool
}

func (m *mailbox) List() ([]pop3.MessageInfo, error) {
	var infos []pop3.MessageInfo
	for i, msg := range m.messages {
		if m.deleted[i] {
			continue
		}
		infos = append(infos, pop3.MessageInfo{Number: i + 1, Size: int64(len(msg.data))})
	}
	return infos, nil
}

func (m *mailbox) Size() (int, int64, error) {
	count := 0
	var octets int64
	for i, msg := range m.messages {
		if m.deleted[i] {
			continue
		}
		count++
		octets += int64(len(msg.data))
	}
	return count, octets, nil
}

func (m *mailbox) Retrieve(number int) (io.ReadCloser, error) {
	msg, err := m.message(number)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(msg.data)), nil
}

func (m *mailbox) Delete(number int) error {
	if _, err := m.message(number); err != nil {
		return err
	}
	m.deleted[number-1] = true
	return nil
}

// UIDL derives the unique id from a blake3 content hash, so the id is
// stable across sessions and maildrop renumbering.
func (m *mailbox) UIDL(number int) (string, error) {
	msg, err := m.message(number)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(msg.data)
	return hex.EncodeToString(sum[:12]), nil
}

func (m *mailbox) CommitDeletes() error {
	if len(m.deleted) == 0 {
		return nil
	}

	doomed := make(map[int64]bool)
	for i, del := range m.deleted {
		if del {
			doomed[m.messages[i].id] = true
		}
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	acct := m.store.account(m.username)
	kept := acct.messages[:0]
	for _, msg := range acct.messages {
		if !doomed[msg.id] {
			kept = append(kept, msg)
		}
	}
	acct.messages = kept
	m.deleted = make(map[int]bool)
	return nil
}

func (m *mailbox) Rollback() error {
	m.deleted = make(map[int]bool)
	return nil
}

func (m *mailbox) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.account(m.username).locked = false
	return nil
}

func (m *mailbox) message(number int) (*message, error) {
	if number < 1 || number > len(m.messages) || m.deleted[number-1] {
		return nil, pop3.ErrNoSuchMessage
	}
	return m.messages[number-1], nil
}
