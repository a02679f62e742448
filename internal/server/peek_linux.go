//go:build linux
// +build linux

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
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// peekConn reads up to len(buf) inbound bytes with MSG_PEEK, leaving
// them for the handler to consume. The wait for readability is bounded
// by PeekTimeout through the connection's read deadline; on expiry the
// peek reports zero bytes and the estimate stays unknown.
func peekConn(conn net.Conn, buf []byte) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(PeekTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var n int
	var rerr error
	err = rc.Read(func(fd uintptr) bool {
		for {
			n, _, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_PEEK)
			switch rerr {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				return false // park until readable or deadline
			default:
				return true
			}
		}
	})
	if err != nil {
		return 0, err
	}
	return n, rerr
}
