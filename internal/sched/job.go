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

package sched

import (
	"net"
	"time"
)

// Job is one accepted connection waiting to be served. Exactly one worker
// consumes a job and is responsible for closing Conn on every exit path.
type Job struct {
	// Conn is the accepted client connection. Ownership transfers into
	// the queue on submit and to the consuming worker on pop.
	Conn net.Conn

	// FD is the OS handle behind Conn, kept for diagnostics.
	FD int

	// EstCost is the estimated response size in bytes, 0 when unknown.
	// Immutable after submission.
	EstCost int64

	// Priority is a reserved tie-break. Neither policy consults it yet.
	Priority int

	// ArrivalMS is the monotonic millisecond timestamp taken at
	// submission. SJF uses it to break cost ties.
	ArrivalMS int64
}

var startTime = time.Now()

// NowMillis returns milliseconds on a process-local monotonic clock.
// Arrival stamps must never jump backwards, so wall time is not used.
func NowMillis() int64 {
	return time.Since(startTime).Milliseconds()
}
