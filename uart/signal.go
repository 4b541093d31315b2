package uart

import (
	"sync"
	"time"
)

// signal is a resettable level-triggered flag. Waiters block on a channel
// that is closed when the flag is raised, so waiting costs nothing until the
// state actually changes. It replaces fixed-interval polling for the
// caller-facing "wait until ready" helpers.
type signal struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

func (s *signal) raise() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		s.set = true
		close(s.ch)
	}
}

func (s *signal) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		s.set = false
		s.ch = make(chan struct{})
	}
}

// wait blocks until the flag is raised or the timeout elapses. It reports
// which of the two happened.
func (s *signal) wait(timeout time.Duration) bool {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
