package fileservice

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deskstream/deskstream/internal/buffer"
	"github.com/deskstream/deskstream/internal/netconn"
)

func newTestService(t *testing.T) (*Service, *netconn.MsgConn, net.Conn) {
	t.Helper()
	msgA, msgB := net.Pipe()
	dataA, dataB := net.Pipe()

	pool := buffer.NewPool(16, 4096)
	msgConn := netconn.NewMsgConn(msgA)
	dataConn := netconn.NewDataConn(dataA, func(buf *buffer.Buffer) { pool.Release(buf) })

	svc := NewService(Config{
		MsgConn:      msgConn,
		DataConn:     dataConn,
		Pool:         pool,
		ChunkSize:    8,
		MsgHandlerID: 1,
		ErrHandlerID: 2,
	})
	go msgConn.RecvLoop()

	t.Cleanup(func() { dataB.Close() })

	serverMsg := netconn.NewMsgConn(msgB)
	go serverMsg.RecvLoop()

	return svc, serverMsg, dataB
}

func TestSendFileStreamsContentsAndFinalStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	content := []byte("the quick brown fox jumps over the lazy dog, twice over")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	svc, serverMsg, dataB := newTestService(t)
	defer svc.Terminate()

	replies := make(chan string, 4)
	serverMsg.AddMsgHandler(1, func(msg string) bool { replies <- msg; return true })

	if err := serverMsg.Send("get " + path + "\n"); err != nil {
		t.Fatalf("send get command: %v", err)
	}

	got := make([]byte, 0, len(content))
	buf := make([]byte, 8)
	dataB.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(got) < len(content) {
		n, err := dataB.Read(buf)
		if err != nil {
			t.Fatalf("reading streamed content: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != string(content) {
		t.Fatalf("streamed content mismatch: got %q want %q", got, content)
	}

	select {
	case reply := <-replies:
		want := "send file " + path + " finish!\n"
		if reply+"\n" != want {
			t.Fatalf("unexpected status reply: %q want %q", reply, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for status reply")
	}
}

func TestSendFileMissingReportsWellFormedStatus(t *testing.T) {
	svc, serverMsg, _ := newTestService(t)
	defer svc.Terminate()

	replies := make(chan string, 4)
	serverMsg.AddMsgHandler(1, func(msg string) bool { replies <- msg; return true })

	missing := filepath.Join(t.TempDir(), "does-not-exist.bin")
	if err := serverMsg.Send("get " + missing + "\n"); err != nil {
		t.Fatalf("send get command: %v", err)
	}

	select {
	case reply := <-replies:
		want := "File " + missing + " not exists."
		if reply != want {
			t.Fatalf("unexpected status reply: %q want %q", reply, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for not-exists status reply")
	}
}

func TestStopCommandTerminatesService(t *testing.T) {
	svc, serverMsg, _ := newTestService(t)
	defer svc.Terminate()

	if err := serverMsg.Send("stop\n"); err != nil {
		t.Fatalf("send stop command: %v", err)
	}

	// Terminate deregisters handlers; a subsequent get should no longer be
	// claimed by this service (it would now fall through to "Invalid
	// request!" at the session/server level, out of scope for this test).
	time.Sleep(50 * time.Millisecond)
	if !svc.base.Cancelled() {
		t.Fatalf("expected stop to terminate the service worker")
	}
}
