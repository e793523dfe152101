package camera

import (
	"sync"

	"github.com/teslashibe/go-gaze/pkg/tracking/detection"
)

// Latest is a single-slot frame buffer. Put overwrites, Take consumes.
// A frame that is never taken is dropped when the next one arrives.
type Latest struct {
	mu      sync.Mutex
	pending *detection.Frame
	last    *detection.Frame
	puts    uint64
	dropped uint64
}

// Put stores f as the newest frame.
func (l *Latest) Put(f *detection.Frame) {
	if f == nil {
		return
	}
	l.mu.Lock()
	if l.pending != nil {
		l.dropped++
	}
	l.pending = f
	l.last = f
	l.puts++
	l.mu.Unlock()
}

// Take returns the pending frame and empties the slot, or nil.
func (l *Latest) Take() *detection.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.pending
	l.pending = nil
	return f
}

// Peek returns the most recent frame without consuming it.
func (l *Latest) Peek() *detection.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Stats returns how many frames were stored and how many were overwritten unread.
func (l *Latest) Stats() (puts, dropped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.puts, l.dropped
}
