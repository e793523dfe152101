// Package telemetry records the gaze loop's snapshots for plotting and
// streaming to the dashboard.
package telemetry

import (
	"sync"
	"time"

	"github.com/teslashibe/go-gaze/pkg/tracking"
)

// DefaultCapacity holds five minutes of samples at the 100 ms record interval.
const DefaultCapacity = 3000

// History is a bounded ring of snapshots. The oldest sample is dropped
// when full.
type History struct {
	mu    sync.RWMutex
	buf   []tracking.Snapshot
	start int
	n     int
}

// NewHistory creates a history holding up to capacity samples.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{buf: make([]tracking.Snapshot, capacity)}
}

// Add appends a sample.
func (h *History) Add(s tracking.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Samples returns a copy of the history, oldest first.
func (h *History) Samples() []tracking.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]tracking.Snapshot, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Since returns the samples recorded after t.
func (h *History) Since(t time.Time) []tracking.Snapshot {
	all := h.Samples()
	for i, s := range all {
		if s.Time.After(t) {
			return all[i:]
		}
	}
	return nil
}

// Len returns the number of samples held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.n
}

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }

// Clear drops every sample.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.start, h.n = 0, 0
}
