//go:build windows

package server

import (
	"context"
	"net"
)

// ListenWithBacklog falls back to a plain listener on Windows.
func ListenWithBacklog(ctx context.Context, network, address string, backlog int) (net.Listener, error) {
	lc := &net.ListenConfig{}
	return lc.Listen(ctx, network, address)
}
