// Package service implements the worker-thread-backed job runner attached
// to a session (C7), and the client-side request base that mirrors it
// without a worker thread (C8).
package service

import "sync"

// Job is one unit of work submitted to a Service's worker goroutine.
// Routine receives the message payload that triggered the job (may be
// empty) and any error that triggered it (nil for message-driven jobs); it
// must periodically check Cancelled to honor cooperative cancellation.
type Job struct {
	Routine func(msg string, err error, cancelled func() bool)
	Msg     string
	Err     error
}

// Service runs at most one Job at a time on a dedicated worker goroutine.
// Submitting a job while one is running replaces the pending "next" slot —
// the currently running job is never preempted (§4.7).
type Service struct {
	Name string

	mu      sync.Mutex
	cond    *sync.Cond
	active  bool
	running bool
	next    *Job

	done chan struct{}
}

// New creates and starts a Service's worker goroutine.
func New(name string) *Service {
	s := &Service{Name: name, active: true, done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

func (s *Service) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for s.active && s.next == nil {
			s.cond.Wait()
		}
		if !s.active {
			s.mu.Unlock()
			return
		}
		job := s.next
		s.next = nil
		s.running = true
		s.mu.Unlock()

		job.Routine(job.Msg, job.Err, s.Cancelled)

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}
}

// Submit sets the pending job, overwriting whatever was pending (not
// whatever is currently running).
func (s *Service) Submit(job *Job) {
	s.mu.Lock()
	s.next = job
	s.mu.Unlock()
	s.cond.Signal()
}

// Running reports whether a job is currently executing.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Cancelled reports whether the service has been asked to terminate; a
// running Job's Routine should poll this to cooperatively stop.
func (s *Service) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.active
}

// Terminate stops accepting new jobs, wakes the worker, and waits for it to
// exit. Safe to call multiple times.
func (s *Service) Terminate() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()
	s.cond.Signal()
	<-s.done
}
