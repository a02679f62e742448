package server

import (
	"os"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestEstimateFromRequest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root+"/small.txt", "hello")
	writeFile(t, root+"/index.html", "0123456789")

	e := NewEstimator(root)
	cases := []struct {
		name string
		req  string
		want int64
	}{
		{"named file", "GET /small.txt HTTP/1.1\r\n\r\n", 5},
		{"root maps to index", "GET / HTTP/1.1\r\n\r\n", 10},
		{"missing file", "GET /nope.txt HTTP/1.1\r\n\r\n", 0},
		{"traversal", "GET /../etc/passwd HTTP/1.1\r\n\r\n", 0},
		{"malformed", "NONSENSE\r\n\r\n", 0},
		{"empty", "", 0},
	}
	for _, c := range cases {
		if got := e.EstimateFromRequest([]byte(c.req)); got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, got, c.want)
		}
	}
}

func TestEstimateCacheExpiry(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root+"/f.txt", "12345")

	e := NewEstimator(root)
	clock := time.Now()
	e.now = func() time.Time { return clock }

	req := []byte("GET /f.txt HTTP/1.1\r\n\r\n")
	if got := e.EstimateFromRequest(req); got != 5 {
		t.Fatalf("first estimate: got %d", got)
	}

	// Grow the file; the cached size is served until the entry expires.
	writeFile(t, root+"/f.txt", "1234567890")
	if got := e.EstimateFromRequest(req); got != 5 {
		t.Fatalf("cached estimate: got %d, want 5", got)
	}

	clock = clock.Add(estCacheTTL + time.Millisecond)
	if got := e.EstimateFromRequest(req); got != 10 {
		t.Fatalf("post-expiry estimate: got %d, want 10", got)
	}
}

func TestEstimateErrorsNotCached(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	e := NewEstimator(root)
	req := []byte("GET /late.txt HTTP/1.1\r\n\r\n")
	if got := e.EstimateFromRequest(req); got != 0 {
		t.Fatalf("missing file: got %d", got)
	}
	writeFile(t, root+"/late.txt", "abc")
	if got := e.EstimateFromRequest(req); got != 3 {
		t.Fatalf("file appeared but estimate stuck at %d", got)
	}
}
