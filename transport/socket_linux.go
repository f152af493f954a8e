//go:build linux

package transport

import (
	"net"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// setSocketBufferSize asks the kernel directly for the requested buffer
// size via SO_RCVBUF/SO_SNDBUF, rather than trusting net.UDPConn's own
// SetReadBuffer/SetWriteBuffer (which silently clamp without reporting the
// post-clamp value). Best-effort: a host with a smaller-than-requested
// buffer still functions, just with more loss under bursts.
func setSocketBufferSize(conn *net.UDPConn, size int) {
	fd := netfd.GetFdFromConn(conn)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, size)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, size)
}
