package camera

import (
	"context"
	"sync"
	"time"
)

// PatternSource generates raw RGB24 test frames: a diagonal gradient that
// scrolls one step per frame. It stands in for a sensor that does not
// produce JPEG, so every frame goes through the encoder.
type PatternSource struct {
	width, height int
	pace          *pacer

	mu    sync.Mutex
	seq   int
	bufs  sync.Pool
	inUse int
}

// NewPatternSource creates a pattern source paced at fps (0 = unpaced).
func NewPatternSource(width, height, fps int) *PatternSource {
	size := width * height * 3
	return &PatternSource{
		width:  width,
		height: height,
		pace:   newPacer(fps),
		bufs: sync.Pool{
			New: func() any { return make([]byte, size) },
		},
	}
}

// Acquire implements Source.
func (s *PatternSource) Acquire(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pace.wait(ctx); err != nil {
		return nil, err
	}

	buf := s.bufs.Get().([]byte)
	shift := s.seq * 4
	for y := 0; y < s.height; y++ {
		row := buf[y*s.width*3:]
		for x := 0; x < s.width; x++ {
			v := byte(x + y + shift)
			row[x*3] = v
			row[x*3+1] = byte(y * 255 / max(s.height-1, 1))
			row[x*3+2] = 255 - v
		}
	}
	s.seq++
	s.inUse++

	return &Frame{
		Data:      buf,
		Width:     s.width,
		Height:    s.height,
		Format:    FormatRGB24,
		Timestamp: time.Now(),
	}, nil
}

// Release implements Source.
func (s *PatternSource) Release(f *Frame) {
	if f == nil || f.Data == nil {
		return
	}
	s.bufs.Put(f.Data[:cap(f.Data)])
	f.Data = nil

	s.mu.Lock()
	s.inUse--
	s.mu.Unlock()
}

// InUse returns how many frames are currently checked out.
func (s *PatternSource) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// pacer spaces frames at a fixed interval.
type pacer struct {
	interval time.Duration
	next     time.Time
}

func newPacer(fps int) *pacer {
	if fps <= 0 {
		return &pacer{}
	}
	return &pacer{interval: time.Second / time.Duration(fps)}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.interval == 0 {
		return ctx.Err()
	}
	now := time.Now()
	if p.next.IsZero() || now.After(p.next) {
		p.next = now.Add(p.interval)
		return ctx.Err()
	}

	timer := time.NewTimer(p.next.Sub(now))
	defer timer.Stop()
	select {
	case <-timer.C:
		p.next = p.next.Add(p.interval)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
