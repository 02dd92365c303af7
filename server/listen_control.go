//go:build linux || freebsd || darwin || openbsd || netbsd

package server

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ListenWithBacklog creates a TCP listener with SO_REUSEADDR set and, where
// the platform allows (FreeBSD SO_LISTENQLIMIT), the requested listen
// backlog. A small kernel backlog drops SYNs under accept bursts and makes
// clients wait through retransmission backoff, so embedders serving many
// short POP3/SMTP connections should raise it.
func ListenWithBacklog(ctx context.Context, network, address string, backlog int) (net.Listener, error) {
	lc := &net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					ctrlErr = fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
					return
				}
				ctrlErr = setListenBacklog(int(fd), backlog)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
	return lc.Listen(ctx, network, address)
}
