package mjpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-joycam/pkg/camera"
)

// Streamer serves MJPEG sessions from one frame source. A Streamer is safe
// to share between connections; the source serializes acquisitions.
type Streamer struct {
	src      camera.Source
	enc      camera.Encoder
	quality  int
	clock    Clock
	observer Observer
	logger   *slog.Logger

	active atomic.Int32
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithQuality sets the JPEG quality used for raw frames.
func WithQuality(q int) Option {
	return func(s *Streamer) { s.quality = q }
}

// WithClock replaces the monotonic clock used for frame timing.
func WithClock(c Clock) Option {
	return func(s *Streamer) { s.clock = c }
}

// WithObserver sets the stats observer.
func WithObserver(o Observer) Option {
	return func(s *Streamer) { s.observer = o }
}

// WithLogger sets the logger. Per-frame lines are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(s *Streamer) { s.logger = l }
}

// New creates a Streamer. enc is only used for frames that are not JPEG.
func New(src camera.Source, enc camera.Encoder, opts ...Option) *Streamer {
	s := &Streamer{
		src:      src,
		enc:      enc,
		quality:  DefaultConvertQuality,
		clock:    NewClock(),
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active returns the number of running sessions.
func (s *Streamer) Active() int {
	return int(s.active.Load())
}

// NewSession creates a session with fresh timing state.
func (s *Streamer) NewSession() *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		streamer: s,
		logger:   s.logger.With("session", id),
		scratch:  make([]byte, 0, 128),
	}
}

// Serve runs a new session over t until it fails or ctx is done.
func (s *Streamer) Serve(ctx context.Context, t Transport) error {
	return s.NewSession().Run(ctx, t)
}

// Session is the per-connection state of one stream.
type Session struct {
	id       string
	streamer *Streamer
	logger   *slog.Logger

	state   atomic.Int32
	fps     atomic.Uint32
	frames  atomic.Uint64
	lastUS  int64
	bytes   uint64
	scratch []byte
}

// ID returns the session id used in logs and telemetry.
func (ss *Session) ID() string { return ss.id }

// State returns the current stage.
func (ss *Session) State() State { return State(ss.state.Load()) }

// FPS returns the most recent frame rate estimate.
func (ss *Session) FPS() uint32 { return ss.fps.Load() }

// Frames returns how many frames were sent completely.
func (ss *Session) Frames() uint64 { return ss.frames.Load() }

func (ss *Session) setState(st State) { ss.state.Store(int32(st)) }

// Run streams frames to t. It always returns a non-nil error: ctx.Err()
// after cancellation, otherwise a *StageError naming the failed stage.
func (ss *Session) Run(ctx context.Context, t Transport) error {
	s := ss.streamer
	s.active.Add(1)
	defer s.active.Add(-1)

	start := time.Now()
	s.observer.SessionStarted(ss.id)
	ss.logger.Info("stream session started")

	var err error
	for {
		if err = ctx.Err(); err != nil {
			ss.setState(StateClosed)
			break
		}
		if err = ss.next(ctx, t); err != nil {
			break
		}
	}

	s.observer.SessionEnded(SessionStat{
		Session:  ss.id,
		Frames:   ss.Frames(),
		Bytes:    ss.bytes,
		Duration: time.Since(start),
		Err:      err,
	})
	if ss.State() == StateClosed {
		ss.logger.Info("stream session closed", "frames", ss.Frames())
	} else {
		ss.logger.Error("stream session failed", "frames", ss.Frames(), "error", err)
	}
	return err
}

// cycle is what one frame carries through the stages.
type cycle struct {
	buf        camera.Buffer
	frame      *camera.Frame
	captured   time.Time
	sec, usec  int64
	size       int
	transcoded bool
}

type stage struct {
	state State
	run   func(ctx context.Context, c *cycle, t Transport) error
}

// next runs one frame through the stages, stopping at the first failure.
// Whatever buffer is held when it returns is released exactly once. A stage
// that gives up because ctx ended closes the session instead of failing it.
func (ss *Session) next(ctx context.Context, t Transport) error {
	c := &cycle{}
	defer func() {
		if c.buf != nil {
			c.buf.Release()
		}
	}()

	stages := [...]stage{
		{StateAwaitingFrame, ss.acquire},
		{StateEncoding, ss.encode},
		{StateSendingBoundary, ss.sendBoundary},
		{StateSendingHeader, ss.sendHeader},
		{StateSendingBody, ss.sendBody},
		{StateReleasing, ss.release},
	}
	for _, st := range stages {
		ss.setState(st.state)
		if err := st.run(ctx, c, t); err != nil {
			if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
				ss.setState(StateClosed)
				return cerr
			}
			ss.setState(StateFailed)
			return &StageError{Stage: st.state, Err: err}
		}
	}

	ss.tick(c)
	return nil
}

func (ss *Session) acquire(ctx context.Context, c *cycle, _ Transport) error {
	src := ss.streamer.src
	f, err := src.Acquire(ctx)
	if err != nil {
		return err
	}
	if f == nil {
		return camera.ErrFrameUnavailable
	}
	c.buf = camera.Hold(src, f)
	c.frame = f
	c.captured = f.Timestamp
	c.sec, c.usec = f.Timeval()

	if f.Format != camera.FormatJPEG && ss.streamer.enc == nil {
		return fmt.Errorf("%w: no encoder for %s frame", camera.ErrEncode, f.Format)
	}
	return nil
}

func (ss *Session) encode(_ context.Context, c *cycle, _ Transport) error {
	if c.frame.Format == camera.FormatJPEG {
		return nil
	}

	raw := c.buf
	c.buf = nil
	format := c.frame.Format

	out, err := ss.streamer.enc.Encode(c.frame, ss.streamer.quality)
	raw.Release()
	c.frame = nil
	if err != nil {
		return err
	}
	if out == nil {
		return fmt.Errorf("%w: encoder returned no buffer for %s frame", camera.ErrEncode, format)
	}
	c.buf = out
	c.transcoded = true
	return nil
}

func (ss *Session) sendBoundary(_ context.Context, _ *cycle, t Transport) error {
	return t.SendChunk(boundaryChunk)
}

func (ss *Session) sendHeader(_ context.Context, c *cycle, t Transport) error {
	c.size = len(c.buf.Bytes())
	ss.scratch = AppendPartHeader(ss.scratch[:0], c.size, c.sec, c.usec)
	return t.SendChunk(ss.scratch)
}

func (ss *Session) sendBody(_ context.Context, c *cycle, t Transport) error {
	return t.SendChunk(c.buf.Bytes())
}

func (ss *Session) release(_ context.Context, c *cycle, _ Transport) error {
	c.buf.Release()
	c.buf = nil
	return nil
}

// tick updates frame timing after a frame has gone out.
func (ss *Session) tick(c *cycle) {
	now := ss.streamer.clock.NowMicros()
	fps := FrameRate(now - ss.lastUS)
	ss.lastUS = now
	ss.fps.Store(fps)
	ss.frames.Add(1)
	ss.bytes += uint64(c.size)

	ss.logger.Debug("MJPG", "bytes", c.size, "fps", fps)
	ss.streamer.observer.FrameSent(FrameStat{
		Session:    ss.id,
		Bytes:      c.size,
		FPS:        fps,
		Transcoded: c.transcoded,
		Captured:   c.captured,
	})
}
