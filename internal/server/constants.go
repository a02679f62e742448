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

// Package server owns the accept loop: listening socket creation, the
// best-effort request peek that estimates response cost, and job
// submission into the pool.
package server

import "time"

const (
	// QueueCapacity bounds the job queue handed to the pool.
	QueueCapacity = 1024

	// ListenBacklog is the pending-connection backlog requested when
	// the listening socket is created.
	ListenBacklog = 128

	// PeekBufferSize is how many inbound bytes the estimator may peek
	// without consuming them.
	PeekBufferSize = 4095

	// PeekTimeout bounds how long the acceptor waits for the first
	// bytes of a request before giving up on an estimate. A slow
	// sender yields estimate 0, it never stalls the accept loop for
	// long.
	PeekTimeout = 25 * time.Millisecond

	// Estimate cache tuning. Entries are sharded by path hash so
	// concurrent accepts rarely contend on one lock.
	estCacheShards = 16
	estCacheTTL    = 2 * time.Second
)
