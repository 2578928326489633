package netconn

import (
	"io"
	"net"
	"testing"
)

func TestCompConnRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ca := NewCompConn(a)
	cb := NewCompConn(b)

	payload := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility " +
		"the quick brown fox jumps over the lazy dog, repeated for compressibility")

	go func() {
		_, _ = ca.Write(payload)
	}()

	out := make([]byte, len(payload))
	if _, err := io.ReadFull(cb, out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(out) != string(payload) {
		t.Fatalf("round trip mismatch")
	}
}
