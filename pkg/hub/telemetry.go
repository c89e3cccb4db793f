package hub

import (
	"sync"
	"time"

	"github.com/teslashibe/go-joycam/pkg/control"
	"github.com/teslashibe/go-joycam/pkg/mjpeg"
)

// Telemetry turns control publishes and stream statistics into events.
// Frame events are throttled per session.
type Telemetry struct {
	hub      *Hub
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewTelemetry publishes to h, sending at most one frame event per session
// per interval.
func NewTelemetry(h *Hub, interval time.Duration) *Telemetry {
	return &Telemetry{
		hub:      h,
		interval: interval,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// ControlChanged is subscribed to control.State.
func (t *Telemetry) ControlChanged(p control.Position) {
	t.hub.Publish(Event{Type: EventControl, Time: t.now(), Data: p})
}

type frameData struct {
	Session    string `json:"session"`
	Bytes      int    `json:"bytes"`
	FPS        uint32 `json:"fps"`
	Transcoded bool   `json:"transcoded"`
}

type sessionData struct {
	Session  string  `json:"session"`
	Frames   uint64  `json:"frames,omitempty"`
	Bytes    uint64  `json:"bytes,omitempty"`
	Duration float64 `json:"duration_seconds,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// SessionStarted implements mjpeg.Observer.
func (t *Telemetry) SessionStarted(id string) {
	t.hub.Publish(Event{Type: EventSessionStart, Time: t.now(), Data: sessionData{Session: id}})
}

// FrameSent implements mjpeg.Observer.
func (t *Telemetry) FrameSent(s mjpeg.FrameStat) {
	now := t.now()

	t.mu.Lock()
	last, seen := t.lastSent[s.Session]
	if seen && now.Sub(last) < t.interval {
		t.mu.Unlock()
		return
	}
	t.lastSent[s.Session] = now
	t.mu.Unlock()

	t.hub.Publish(Event{Type: EventFrame, Time: now, Data: frameData{
		Session:    s.Session,
		Bytes:      s.Bytes,
		FPS:        s.FPS,
		Transcoded: s.Transcoded,
	}})
}

// SessionEnded implements mjpeg.Observer.
func (t *Telemetry) SessionEnded(s mjpeg.SessionStat) {
	t.mu.Lock()
	delete(t.lastSent, s.Session)
	t.mu.Unlock()

	d := sessionData{
		Session:  s.Session,
		Frames:   s.Frames,
		Bytes:    s.Bytes,
		Duration: s.Duration.Seconds(),
	}
	if s.Err != nil {
		d.Error = s.Err.Error()
	}
	t.hub.Publish(Event{Type: EventSessionEnd, Time: t.now(), Data: d})
}
