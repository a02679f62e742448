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
	"os"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/kresge/httpq/internal/httpserv"
)

// Estimator derives a best-effort response size for a fresh connection
// by peeking the request and statting the would-be resource. Every
// failure along the way leaves the estimate at zero, which the SJF
// policy treats as most urgent. Stat results are memoized briefly in a
// sharded cache so a hot path does not cost one stat per accept.
type Estimator struct {
	docroot string
	shards  [estCacheShards]estShard
	// now is swappable for cache expiry tests.
	now func() time.Time
}

type estShard struct {
	mu      sync.Mutex
	entries map[string]estEntry
}

type estEntry struct {
	size    int64
	expires time.Time
}

// NewEstimator creates an estimator rooted at docroot.
func NewEstimator(docroot string) *Estimator {
	e := &Estimator{docroot: docroot, now: time.Now}
	for i := range e.shards {
		e.shards[i].entries = make(map[string]estEntry)
	}
	return e
}

// Estimate peeks the connection and returns the estimated response
// size in bytes, or 0 when unknown.
func (e *Estimator) Estimate(conn net.Conn) int64 {
	buf := make([]byte, PeekBufferSize)
	n, err := peekConn(conn, buf)
	if err != nil || n <= 0 {
		return 0
	}
	return e.EstimateFromRequest(buf[:n])
}

// EstimateFromRequest parses peeked request bytes and resolves the
// target file's size. Traversal paths and unparsable requests estimate
// to zero rather than erroring; the handler re-validates everything
// when the job is served.
func (e *Estimator) EstimateFromRequest(peeked []byte) int64 {
	_, path, _, ok := httpserv.ParseRequestLine(peeked)
	if !ok {
		return 0
	}
	if strings.Contains(path, "..") {
		return 0
	}
	filePath := httpserv.ResolvePath(e.docroot, path)
	return e.sizeOf(filePath)
}

func (e *Estimator) sizeOf(filePath string) int64 {
	shard := &e.shards[xxh3.HashString(filePath)%estCacheShards]
	now := e.now()

	shard.mu.Lock()
	if entry, ok := shard.entries[filePath]; ok && now.Before(entry.expires) {
		shard.mu.Unlock()
		return entry.size
	}
	shard.mu.Unlock()

	st, err := os.Stat(filePath)
	if err != nil {
		// Errors are not cached; the file may appear a moment later.
		return 0
	}
	size := st.Size()

	shard.mu.Lock()
	shard.entries[filePath] = estEntry{size: size, expires: now.Add(estCacheTTL)}
	shard.mu.Unlock()
	return size
}
