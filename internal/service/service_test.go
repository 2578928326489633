package service

import (
	"sync"
	"testing"
	"time"
)

func TestServiceSinglePending(t *testing.T) {
	var mu sync.Mutex
	var executed []string
	started := make(chan struct{})
	release := make(chan struct{})

	s := New("test")
	defer s.Terminate()

	s.Submit(&Job{
		Msg: "J0",
		Routine: func(msg string, err error, cancelled func() bool) {
			mu.Lock()
			executed = append(executed, msg)
			mu.Unlock()
			close(started)
			<-release
		},
	})

	<-started // J0 is now running

	record := func(msg string) *Job {
		return &Job{Msg: msg, Routine: func(msg string, err error, cancelled func() bool) {
			mu.Lock()
			executed = append(executed, msg)
			mu.Unlock()
		}}
	}
	s.Submit(record("J1"))
	s.Submit(record("J2"))
	s.Submit(record("J3"))

	close(release) // let J0 finish, only the last-submitted pending job should run

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(executed) != 2 {
		t.Fatalf("expected exactly 2 executions (J0, J3), got %v", executed)
	}
	if executed[0] != "J0" || executed[1] != "J3" {
		t.Fatalf("expected [J0 J3], got %v", executed)
	}
}

func TestServiceTerminateJoinsWorker(t *testing.T) {
	s := New("test")
	s.Terminate()
	// Submitting after terminate should not panic and should never execute.
	executed := false
	s.Submit(&Job{Routine: func(msg string, err error, cancelled func() bool) {
		executed = true
	}})
	time.Sleep(50 * time.Millisecond)
	if executed {
		t.Fatalf("job should not run after terminate")
	}
}

func TestServiceCancelledObservedByRunningJob(t *testing.T) {
	s := New("test")
	stopped := make(chan struct{})

	s.Submit(&Job{Routine: func(msg string, err error, cancelled func() bool) {
		for !cancelled() {
			time.Sleep(time.Millisecond)
		}
		close(stopped)
	}})

	time.Sleep(20 * time.Millisecond)
	s.Terminate()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("job did not observe cancellation")
	}
}
