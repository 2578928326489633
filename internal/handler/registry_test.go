package handler

import (
	"errors"
	"testing"
)

func TestMsgsShortCircuit(t *testing.T) {
	var visited []int
	m := NewMsgs()
	m.Add(1, func(string) bool { visited = append(visited, 1); return false })
	m.Add(2, func(string) bool { visited = append(visited, 2); return true })
	m.Add(3, func(string) bool { visited = append(visited, 3); return true })

	m.Dispatch("hello")

	if len(visited) != 2 || visited[0] != 1 || visited[1] != 2 {
		t.Fatalf("expected chain to stop after id 2, visited: %v", visited)
	}
}

func TestMsgsAscendingOrder(t *testing.T) {
	var order []int
	m := NewMsgs()
	m.Add(10, func(string) bool { order = append(order, 10); return false })
	m.Add(1, func(string) bool { order = append(order, 1); return false })
	m.Add(5, func(string) bool { order = append(order, 5); return false })

	m.Dispatch("x")

	want := []int{1, 5, 10}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestMsgsRemove(t *testing.T) {
	called := false
	m := NewMsgs()
	m.Add(1, func(string) bool { called = true; return true })
	m.Remove(1)
	m.Dispatch("x")
	if called {
		t.Fatalf("removed handler should not be invoked")
	}
}

func TestErrsShortCircuit(t *testing.T) {
	var visited []int
	e := NewErrs()
	e.Add(1, func(error) bool { visited = append(visited, 1); return true })
	e.Add(2, func(error) bool { visited = append(visited, 2); return true })

	e.Dispatch(errors.New("boom"))

	if len(visited) != 1 || visited[0] != 1 {
		t.Fatalf("expected only id 1 to run, got %v", visited)
	}
}
