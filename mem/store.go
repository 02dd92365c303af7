// Package mem provides in-memory implementations of the integration
// interfaces the protocol core consumes: an AuthBackend with bcrypt
// credentials, a POP3 MailboxFactory with per-user maildrops, delivery
// hooks feeding SMTP/LMTP messages into those maildrops, and a scripted
// DNS service. It backs the example daemon and the test suites; real
// deployments substitute their own backends.
package mem

import (
	"context"
	"fmt"
	"sync"

	"github.com/jjYBdx4IL/james-protocols/server"
	"golang.org/x/crypto/bcrypt"
)

type message struct {
	id   int64
	data []byte
}

type account struct {
	passwordHash []byte
	messages     []*message
	locked       bool
}

// Store holds users, credentials and maildrops.
type Store struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*account
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{users: make(map[string]*account)}
}

// AddUser creates a user with a bcrypt-hashed password. An existing user's
// password is replaced.
func (s *Store) AddUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password for %s: %w", username, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.account(username)
	acct.passwordHash = hash
	return nil
}

// HasUser reports whether username exists.
func (s *Store) HasUser(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[username]
	return ok
}

// Deliver appends a message to the user's maildrop, creating the account
// if needed.
func (s *Store) Deliver(username string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.account(username)
	s.nextID++
	msg := &message{id: s.nextID, data: append([]byte(nil), data...)}
	acct.messages = append(acct.messages, msg)
	return nil
}

// MessageCount returns the number of messages in the user's maildrop.
func (s *Store) MessageCount(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.users[username]
	if !ok {
		return 0
	}
	return len(acct.messages)
}

// Authenticate implements server.AuthBackend.
func (s *Store) Authenticate(ctx context.Context, username, credential string) (string, error) {
	s.mu.Lock()
	acct, ok := s.users[username]
	var hash []byte
	if ok {
		hash = acct.passwordHash
	}
	s.mu.Unlock()

	if !ok || hash == nil {
		// Burn a comparison so unknown users cost the same as bad passwords
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(credential))
		return "", server.ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(credential)); err != nil {
		return "", server.ErrAuthFailed
	}
	return username, nil
}

// account returns the user's account, creating it if needed. Callers hold
// s.mu.
func (s *Store) account(username string) *account {
	acct, ok := s.users[username]
	if !ok {
		acct = &account{}
		s.users[username] = acct
	}
	return acct
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.MinCost)
