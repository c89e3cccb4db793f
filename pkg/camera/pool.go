package camera

import (
	"context"
	"log/slog"
	"sync"
)

// Pool limits how many frames from an underlying source can be held at once,
// like a driver with a fixed number of frame buffers. Acquire blocks while
// every buffer is checked out.
type Pool struct {
	src    Source
	tokens chan struct{}
	logger *slog.Logger

	mu          sync.Mutex
	outstanding map[*Frame]struct{}
	acquired    uint64
	released    uint64
}

// NewPool wraps src with size frame buffers (minimum 1).
func NewPool(src Source, size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		src:         src,
		tokens:      make(chan struct{}, size),
		logger:      logger,
		outstanding: make(map[*Frame]struct{}, size),
	}
	for i := 0; i < size; i++ {
		p.tokens <- struct{}{}
	}
	return p
}

// Acquire implements Source.
func (p *Pool) Acquire(ctx context.Context) (*Frame, error) {
	select {
	case <-p.tokens:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f, err := p.src.Acquire(ctx)
	if err != nil {
		p.tokens <- struct{}{}
		return nil, err
	}

	p.mu.Lock()
	p.outstanding[f] = struct{}{}
	p.acquired++
	p.mu.Unlock()
	return f, nil
}

// Release implements Source. Releasing a frame the pool does not know about
// is logged and ignored.
func (p *Pool) Release(f *Frame) {
	p.mu.Lock()
	if _, ok := p.outstanding[f]; !ok {
		p.mu.Unlock()
		p.logger.Warn("release of unknown frame ignored")
		return
	}
	delete(p.outstanding, f)
	p.released++
	p.mu.Unlock()

	p.src.Release(f)
	p.tokens <- struct{}{}
}

// PoolStats is a snapshot of pool accounting.
type PoolStats struct {
	Capacity    int
	Outstanding int
	Acquired    uint64
	Released    uint64
}

// Stats returns current accounting.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Capacity:    cap(p.tokens),
		Outstanding: len(p.outstanding),
		Acquired:    p.acquired,
		Released:    p.released,
	}
}
