package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/protocol"
	"github.com/teslashibe/go-gaze/pkg/tracking"
)

// DefaultInterval is the snapshot polling interval.
const DefaultInterval = 100 * time.Millisecond

// Source is the tracker's telemetry surface.
type Source interface {
	Snapshot() tracking.Snapshot
	SessionID() string
}

// Publisher fans messages out to dashboard clients. *hub.Hub implements it.
type Publisher interface {
	Publish(msg *protocol.Message) error
}

// Recorder polls a Source into a History and publishes each new sample,
// plus a status message whenever MovementDone changes.
type Recorder struct {
	source   Source
	history  *History
	pub      Publisher
	interval time.Duration
	logger   *slog.Logger

	last     time.Time
	lastDone bool
}

// NewRecorder creates a recorder. pub may be nil.
func NewRecorder(source Source, history *History, pub Publisher) *Recorder {
	return &Recorder{
		source:   source,
		history:  history,
		pub:      pub,
		interval: DefaultInterval,
		logger:   log.With("component", "telemetry"),
	}
}

// SetInterval changes the polling interval. Call before Run.
func (r *Recorder) SetInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// History returns the recorder's history.
func (r *Recorder) History() *History { return r.history }

// Poll records the current snapshot if the tracker has ticked since the
// last poll. Returns true when a sample was added.
func (r *Recorder) Poll() bool {
	s := r.source.Snapshot()
	if s.Time.IsZero() || !s.Time.After(r.last) {
		return false
	}
	r.last = s.Time
	r.history.Add(s)

	if r.pub == nil {
		return true
	}

	msg, err := protocol.NewTelemetryMessage(protocol.TelemetryData{
		ErrorX:       s.ErrorX,
		ErrorY:       s.ErrorY,
		EyeYaw:       s.EyeYaw,
		EyeTilt:      s.EyeTilt,
		NeckPitch:    s.NeckPitch,
		NeckYaw:      s.NeckYaw,
		MovementDone: s.MovementDone,
		Ticks:        s.Ticks,
	})
	if err == nil {
		err = r.pub.Publish(msg)
	}
	if err != nil {
		r.logger.Debug("publish telemetry failed", "error", err)
	}

	if s.MovementDone != r.lastDone {
		r.lastDone = s.MovementDone
		if msg, err := protocol.NewStatusMessage(s.MovementDone, r.source.SessionID()); err == nil {
			r.pub.Publish(msg)
		}
	}
	return true
}

// Run polls until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("recorder stopped", "samples", r.history.Len())
			return ctx.Err()
		case <-ticker.C:
			r.Poll()
		}
	}
}
