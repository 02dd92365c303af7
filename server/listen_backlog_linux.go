//go:build linux

package server

// setListenBacklog is a no-op on Linux: the backlog is the listen(2)
// argument, which the net package derives from net.core.somaxconn, and the
// kernel clamps to that sysctl anyway.
func setListenBacklog(fd, backlog int) error {
	return nil
}
