package tracking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is the cadence used by WaitPoll when none is given.
const DefaultPollInterval = 100 * time.Millisecond

// MovementStatus is the shared "gaze has settled" flag.
//
// The control task is the only caller of Set. Reset is called by whoever
// issues a new target (the scene mover). Any number of goroutines may read
// or wait. The zero value is ready to use.
type MovementStatus struct {
	done atomic.Bool

	mu     sync.Mutex
	notify chan struct{} // closed when done goes true, replaced on reset
}

// NewMovementStatus returns a status that starts not done.
func NewMovementStatus() *MovementStatus {
	return &MovementStatus{}
}

// Done reports the current value.
func (s *MovementStatus) Done() bool {
	return s.done.Load()
}

// Set stores a new value and reports whether it changed.
func (s *MovementStatus) Set(done bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done.Load() == done {
		return false
	}
	if done {
		// Take the channel while still false so channel() hands back an open one.
		ch := s.channel()
		s.done.Store(true)
		close(ch)
	} else {
		s.done.Store(false)
		s.notify = make(chan struct{})
	}
	return true
}

// Reset marks the movement as not done.
func (s *MovementStatus) Reset() {
	s.Set(false)
}

// channel returns the current notify channel. Caller holds mu.
func (s *MovementStatus) channel() chan struct{} {
	if s.notify == nil {
		s.notify = make(chan struct{})
		if s.done.Load() {
			close(s.notify)
		}
	}
	return s.notify
}

// Wait blocks until the status is done or ctx ends.
func (s *MovementStatus) Wait(ctx context.Context) error {
	s.mu.Lock()
	ch := s.channel()
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitPoll checks the status every interval until it is done or ctx ends.
func (s *MovementStatus) WaitPoll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if s.Done() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.Done() {
				return nil
			}
		}
	}
}
