//go:build !unix
// +build !unix

package server

import (
	"net"
	"strconv"
)

// Listen is the portable fallback. Without raw socket access the
// backlog request cannot be honored; the platform default applies.
func Listen(host string, port, backlog int) (net.Listener, error) {
	_ = backlog
	return net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
}
