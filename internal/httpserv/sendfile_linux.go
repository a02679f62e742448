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

package httpserv

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// sendBody transmits the file with sendfile(2), looping over partial
// sends and retrying on EINTR. EAGAIN yields back to the runtime poller
// by returning false from the write closure, so the goroutine parks
// instead of spinning. Connections that are not TCP sockets (pipes in
// tests) fall back to the buffered copy.
func sendBody(conn net.Conn, f *os.File, size int64) (int64, error) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return copyBody(conn, f, size)
	}
	rc, err := tc.SyscallConn()
	if err != nil {
		return copyBody(conn, f, size)
	}

	var sent int64
	var offset int64
	var opErr error
	werr := rc.Write(func(outFD uintptr) bool {
		for sent < size {
			n, serr := unix.Sendfile(int(outFD), int(f.Fd()), &offset, int(size-sent))
			if n > 0 {
				sent += int64(n)
			}
			switch serr {
			case nil:
				if n == 0 {
					return true // source exhausted early
				}
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				return false
			default:
				opErr = serr
				return true
			}
		}
		return true
	})
	if werr != nil {
		return sent, werr
	}
	return sent, opErr
}
