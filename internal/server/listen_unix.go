//go:build unix
// +build unix

/*
httpq — multi-threaded HTTP file server with pluggable request scheduling
Copyright (C) 2025  httpq authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package server

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listen creates the TCP listening socket: SO_REUSEADDR so a restarted
// server can rebind its port immediately, bound to host, listening with
// the caller's backlog. The socket is built with raw syscalls because
// the net package never exposes the backlog argument; the resulting fd
// is handed to net.FileListener for runtime poller integration.
func Listen(host string, port, backlog int) (net.Listener, error) {
	ip, err := resolveIPv4(host)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip)
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}

	f := os.NewFile(uintptr(fd), "listener")
	ln, err := net.FileListener(f)
	// FileListener dups the descriptor; the original closes either way.
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("file listener: %w", err)
	}
	return ln, nil
}

// resolveIPv4 maps the configured host onto a 4-byte address. Empty and
// wildcard hosts bind all interfaces.
func resolveIPv4(host string) (net.IP, error) {
	if host == "" {
		return net.IPv4zero.To4(), nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		addr, err := net.ResolveIPAddr("ip4", host)
		if err != nil {
			return nil, fmt.Errorf("resolve host %q: %w", host, err)
		}
		ip = addr.IP
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("host %q is not an IPv4 address", host)
	}
	return v4, nil
}
