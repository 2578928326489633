package buffer

import "testing"

func TestPoolAcquireReuses(t *testing.T) {
	p := NewPool(2, 64)

	b1 := p.Acquire()
	b1.Append([]byte("hello"))
	p.Release(b1)

	b2 := p.Acquire()
	if b2.Len() != 0 {
		t.Fatalf("released buffer should be reset, got len %d", b2.Len())
	}
	if b2.Cap() < 64 {
		t.Fatalf("expected capacity preserved, got %d", b2.Cap())
	}
}

func TestPoolDropsOverCapacity(t *testing.T) {
	p := NewPool(1, 16)

	a := p.Acquire()
	b := p.Acquire()
	p.Release(a)
	p.Release(b) // pool is already full; dropped silently

	p.Acquire()
	third := p.Acquire()
	if third.Cap() < 16 {
		t.Fatalf("expected freshly allocated buffer with reserve capacity")
	}
}

func TestBufferSwap(t *testing.T) {
	a := New(4)
	a.Append([]byte("abcd"))
	b := New(4)

	a.Swap(b)

	if string(b.Bytes()) != "abcd" {
		t.Fatalf("expected swap to move contents, got %q", b.Bytes())
	}
	if a.Len() != 0 {
		t.Fatalf("expected a to be empty after swap, got len %d", a.Len())
	}
}

func TestBufferResizeGrows(t *testing.T) {
	buf := New(0)
	buf.Resize(10)
	if buf.Len() != 10 {
		t.Fatalf("expected len 10, got %d", buf.Len())
	}
}
