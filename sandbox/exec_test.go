package sandbox

import (
	"bytes"
	"strings"
	"testing"
)

func TestLimitedWriterCapsOutput(t *testing.T) {
	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, limit: 10}

	n, err := w.Write([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 16 {
		t.Errorf("reported length: got %d, want 16", n)
	}
	if buf.String() != "0123456789" {
		t.Errorf("buffer: got %q", buf.String())
	}

	// Past the limit everything is discarded but still acknowledged.
	n, err = w.Write([]byte("more"))
	if err != nil || n != 4 {
		t.Errorf("got (%d, %v), want (4, nil)", n, err)
	}
	if buf.Len() != 10 {
		t.Errorf("buffer grew past limit: %d", buf.Len())
	}
}

func TestLimitedWriterUnderLimit(t *testing.T) {
	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, limit: 1024}
	payload := strings.Repeat("x", 100)
	n, err := w.Write([]byte(payload))
	if err != nil || n != 100 {
		t.Fatalf("got (%d, %v)", n, err)
	}
	if buf.String() != payload {
		t.Error("payload altered under the limit")
	}
}
