package netconn

import (
	"net"
	"testing"
	"time"

	"github.com/deskstream/deskstream/internal/buffer"
)

func TestMsgConnSendRecv(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	server := NewMsgConn(a)
	client := NewMsgConn(b)

	received := make(chan string, 1)
	server.AddMsgHandler(1, func(msg string) bool {
		received <- msg
		return true
	})
	go server.RecvLoop()

	if err := client.Send("hello\n"); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-received:
		if msg != "hello" {
			t.Fatalf("expected trimmed %q, got %q", "hello", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
}

func TestMsgConnRejectsUnterminated(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	client := NewMsgConn(b)
	_ = NewMsgConn(a)

	if err := client.Send("no newline"); err == nil {
		t.Fatalf("expected error for message missing trailing newline")
	}
}

func TestMsgConnErrorOnPeerClose(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	server := NewMsgConn(a)
	errCh := make(chan error, 1)
	server.AddErrorHandler(10, func(err error) bool {
		errCh <- err
		return true
	})
	go server.RecvLoop()

	b.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected non-nil error")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for error handler")
	}
}

func TestDataConnRecvExactAndSend(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	var released *buffer.Buffer
	server := NewDataConn(a, func(buf *buffer.Buffer) { released = buf })
	client := NewDataConn(b, nil)

	payload := buffer.New(5)
	payload.Append([]byte("abcde"))

	go func() {
		_ = server.Send(payload)
	}()

	out := buffer.New(5)
	if err := client.RecvExact(out, 5); err != nil {
		t.Fatalf("recvExact: %v", err)
	}
	if string(out.Bytes()) != "abcde" {
		t.Fatalf("expected abcde, got %q", out.Bytes())
	}

	time.Sleep(50 * time.Millisecond)
	if released != payload {
		t.Fatalf("expected onSent callback to fire with the sent buffer")
	}
}

func TestDataConnErrorOnPeerClose(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	client := NewDataConn(a, nil)
	errCh := make(chan error, 1)
	client.AddErrorHandler(1, func(err error) bool {
		errCh <- err
		return true
	})

	b.Close()

	out := buffer.New(4)
	err := client.RecvExact(out, 4)
	if err == nil {
		t.Fatalf("expected recv error after peer close")
	}

	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatalf("expected error handler dispatch")
	}
}
