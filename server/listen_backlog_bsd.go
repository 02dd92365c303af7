//go:build freebsd

package server

import (
	"golang.org/x/sys/unix"
)

// setListenBacklog raises the listen queue limit before listen(2) runs.
func setListenBacklog(fd, backlog int) error {
	if backlog <= 0 {
		return nil
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_LISTENQLIMIT, backlog)
}
