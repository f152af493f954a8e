//go:build !linux

package transport

import "net"

// setSocketBufferSize falls back to net.UDPConn's portable buffer size
// hooks outside Linux, where SO_RCVBUF/SO_SNDBUF tuning via
// golang.org/x/sys/unix plus a raw fd isn't wired up here.
func setSocketBufferSize(conn *net.UDPConn, size int) {
	_ = conn.SetReadBuffer(size)
	_ = conn.SetWriteBuffer(size)
}
