package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/deskstream/deskstream/internal/buffer"
)

func TestRingFIFOOrder(t *testing.T) {
	const n = 50
	r := NewRing(4, 8)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			b := buffer.New(8)
			b.Append([]byte{byte(i)})
			r.Push(b)
		}
	}()

	for i := 0; i < n; i++ {
		out := buffer.New(8)
		r.Pop(out)
		if got := out.Bytes()[0]; got != byte(i) {
			t.Fatalf("pop %d: expected %d got %d", i, i, got)
		}
	}
	wg.Wait()
}

func TestRingBlocksWhenFull(t *testing.T) {
	r := NewRing(2, 8)
	for i := 0; i < 2; i++ {
		b := buffer.New(8)
		r.Push(b)
	}

	done := make(chan struct{})
	go func() {
		r.Push(buffer.New(8))
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("push should have blocked on a full ring")
	case <-time.After(50 * time.Millisecond):
	}

	out := buffer.New(8)
	r.Pop(out)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("push did not unblock after a pop freed a slot")
	}
}

func TestRingEmptySentinelUnblocksPop(t *testing.T) {
	r := NewRing(2, 8)

	done := make(chan struct{})
	go func() {
		out := buffer.New(8)
		r.Pop(out)
		if out.Len() != 0 {
			t.Errorf("expected sentinel empty buffer, got len %d", out.Len())
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	r.Push(buffer.New(0)) // zero-length sentinel, see EndStreaming (§4.9)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("pop did not receive sentinel")
	}
}
