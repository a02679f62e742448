package accesslog

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "access.log")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entries := []Entry{
		{TimestampMS: 1, Remote: "127.0.0.1:1234", Method: "GET", Path: "/a.txt", Status: 200, Bytes: 5, LatencyMS: 2},
		{TimestampMS: 2, Remote: "127.0.0.1:1235", Method: "HEAD", Path: "/", Status: 200, Bytes: 0, LatencyMS: 1},
		{TimestampMS: 3, Remote: "127.0.0.1:1236", Method: "GET", Path: "/nope", Status: 404, Bytes: 0, LatencyMS: 0},
	}
	for _, e := range entries {
		if err := l.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	got, err := ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, got[i], entries[i])
		}
	}
}

func TestTruncatedTailIsTolerated(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "access.log")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Record(Entry{TimestampMS: 1, Method: "GET", Path: "/x", Status: 200}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// A second frame cut off mid-payload.
	truncated := append(append([]byte{}, data...), data[:len(data)-3]...)
	got, err := ReadAll(bytes.NewReader(truncated))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
}

func TestConcurrentRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "access.log")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = l.Record(Entry{TimestampMS: int64(w*1000 + i), Method: "GET", Path: "/f", Status: 200})
			}
		}(w)
	}
	wg.Wait()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	got, err := ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != writers*perWriter {
		t.Fatalf("got %d entries, want %d", len(got), writers*perWriter)
	}
}
