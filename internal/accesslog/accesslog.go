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

// Package accesslog writes one binary record per answered request: a
// 4-byte big-endian length frame followed by a msgpack payload. Frames
// keep the log seekable without a schema and tolerate truncated tails.
package accesslog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxRecordSize bounds a single frame; anything larger is corrupt.
const MaxRecordSize = 64 * 1024

// Entry is one served request.
type Entry struct {
	TimestampMS int64  `msgpack:"ts"`
	Remote      string `msgpack:"remote"`
	Method      string `msgpack:"method"`
	Path        string `msgpack:"path"`
	Status      int    `msgpack:"status"`
	Bytes       int64  `msgpack:"bytes"`
	LatencyMS   int64  `msgpack:"latency_ms"`
}

// Log appends framed entries to a file. Workers record concurrently,
// so the buffered writer sits behind a mutex.
type Log struct {
	mu     sync.Mutex
	writer *bufio.Writer
	file   *os.File
}

// Open creates or appends to the log file at path.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open access log: %w", err)
	}
	return &Log{writer: bufio.NewWriter(f), file: f}, nil
}

// Record appends one entry.
func (l *Log) Record(e Entry) error {
	payload, err := msgpack.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode access log entry: %w", err)
	}
	if len(payload) > MaxRecordSize {
		return fmt.Errorf("access log entry exceeds max size: %d", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := l.writer.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// Close flushes buffered frames and closes the file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		l.file.Close()
		return fmt.Errorf("flush access log: %w", err)
	}
	return l.file.Close()
}

// ReadAll decodes every complete frame from r. A truncated final frame
// ends the scan without error, matching what a crash mid-write leaves
// behind.
func ReadAll(r io.Reader) ([]Entry, error) {
	var out []Entry
	br := bufio.NewReader(r)
	for {
		var header [4]byte
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return out, nil
			}
			return out, fmt.Errorf("read frame header: %w", err)
		}
		size := binary.BigEndian.Uint32(header[:])
		if size == 0 || size > MaxRecordSize {
			return out, fmt.Errorf("corrupt frame size %d", size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(br, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return out, nil
			}
			return out, fmt.Errorf("read frame payload: %w", err)
		}
		var e Entry
		if err := msgpack.Unmarshal(payload, &e); err != nil {
			return out, fmt.Errorf("decode access log entry: %w", err)
		}
		out = append(out, e)
	}
}
