package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestHTTPDownloaderFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/datagen.py":
			w.Write([]byte("print('hi')\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := NewHTTPDownloaderWithClient(srv.Client())

	data, err := d.Fetch(context.Background(), srv.URL+"/datagen.py")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "print('hi')\n" {
		t.Errorf("body = %q", data)
	}

	if _, err := d.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestHTTPDownloaderLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	d := NewHTTPDownloaderWithClient(srv.Client())
	d.maxBytes = 16
	if _, err := d.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestExitErrorTrimsOnRuneBoundary(t *testing.T) {
	out := strings.Repeat("€", 200) // 600 bytes, 3 per rune
	msg := (&ExitError{Command: "npx prettier", ExitCode: 1, Output: out}).Error()

	if !utf8.ValidString(msg) {
		t.Fatalf("Error() is not valid UTF-8: %q", msg)
	}
	tail := msg[strings.Index(msg, ": ")+2:]
	if tail != strings.Repeat("€", 166) {
		t.Errorf("tail has %d bytes, want the last 166 runes", len(tail))
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{Command: "uv run x", ExitCode: 2, Output: "boom\n"}
	if got := err.Error(); got != `command "uv run x" exited with status 2: boom` {
		t.Errorf("Error() = %q", got)
	}
	if got := Base64Encode([]byte("hi")); got != "aGk=" {
		t.Errorf("Base64Encode = %q", got)
	}
}
