package mjpeg

import "time"

// FrameStat describes one frame that reached the client.
type FrameStat struct {
	Session    string
	Bytes      int
	FPS        uint32
	Transcoded bool
	Captured   time.Time
}

// SessionStat summarizes a finished session.
type SessionStat struct {
	Session  string
	Frames   uint64
	Bytes    uint64
	Duration time.Duration
	Err      error
}

// Observer receives stream statistics. Calls are made from the session's
// goroutine and must not block.
type Observer interface {
	SessionStarted(id string)
	FrameSent(FrameStat)
	SessionEnded(SessionStat)
}

// Observers fans out to several observers.
type Observers []Observer

func (o Observers) SessionStarted(id string) {
	for _, ob := range o {
		ob.SessionStarted(id)
	}
}

func (o Observers) FrameSent(s FrameStat) {
	for _, ob := range o {
		ob.FrameSent(s)
	}
}

func (o Observers) SessionEnded(s SessionStat) {
	for _, ob := range o {
		ob.SessionEnded(s)
	}
}

type nopObserver struct{}

func (nopObserver) SessionStarted(string) {}
func (nopObserver) FrameSent(FrameStat) {}
func (nopObserver) SessionEnded(SessionStat) {}
