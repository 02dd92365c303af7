package server

import (
	"context"
	"errors"
)

// ErrAuthFailed is returned by AuthBackend implementations when the
// credentials are wrong. Any other error is treated as a temporary backend
// failure.
var ErrAuthFailed = errors.New("authentication failed")

// AuthBackend verifies credentials and yields the authenticated identity.
// SMTP AUTH and POP3 PASS both consume it.
type AuthBackend interface {
	Authenticate(ctx context.Context, username, credential string) (string, error)
}
