package actuator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-joycam/pkg/control"
)

// DefaultRate is the polling interval when none is configured.
const DefaultRate = 50 * time.Millisecond

// heartbeatTicks is how often the controller logs a status line.
const heartbeatTicks = 100

// errorLogInterval limits how often driver errors are logged.
const errorLogInterval = 5 * time.Second

// RateController polls the shared control position at a fixed rate and
// forwards it to a Driver. Positions within the dead zone of the last
// successfully sent one are skipped, except a return to center.
type RateController struct {
	reader   control.Reader
	driver   Driver
	rate     time.Duration
	deadZone int
	recorder Recorder
	logger   *slog.Logger

	mu            sync.Mutex
	lastSent      control.Position
	tickCount     uint64
	sentCount     uint64
	skippedTicks  uint64
	errorCount    uint64
	lastErrorTime time.Time
}

// NewRateController creates a controller. rate <= 0 uses DefaultRate;
// deadZone is the largest per-axis change that is not worth sending.
func NewRateController(reader control.Reader, driver Driver, rate time.Duration, deadZone int, logger *slog.Logger) *RateController {
	if rate <= 0 {
		rate = DefaultRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateController{
		reader:   reader,
		driver:   driver,
		rate:     rate,
		deadZone: deadZone,
		logger:   logger.With("component", "actuator", "driver", driver.Name()),
	}
}

// SetRecorder attaches a metrics recorder.
func (c *RateController) SetRecorder(r Recorder) {
	c.recorder = r
}

// Run polls until ctx is done.
func (c *RateController) Run(ctx context.Context) {
	ticker := time.NewTicker(c.rate)
	defer ticker.Stop()

	c.logger.Info("actuator controller started", "rate", c.rate, "dead_zone", c.deadZone)
	for {
		select {
		case <-ctx.Done():
			s := c.Stats()
			c.logger.Info("actuator controller stopped", "ticks", s.Ticks, "sent", s.Sent, "errors", s.Errors)
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs one control cycle: read, filter, send.
func (c *RateController) tick(ctx context.Context) {
	p := c.reader.Read()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickCount++
	if c.tickCount%heartbeatTicks == 0 {
		c.logger.Debug("actuator heartbeat",
			"ticks", c.tickCount, "sent", c.sentCount, "skipped", c.skippedTicks,
			"errors", c.errorCount, "position", p.String())
	}

	// centering always goes out so the device stops
	if p == c.lastSent || (!p.IsZero() && p.MaxDelta(c.lastSent) <= c.deadZone) {
		c.skippedTicks++
		return
	}

	if err := c.driver.Send(ctx, p); err != nil {
		c.errorCount++
		if c.recorder != nil {
			c.recorder.ActuatorFailed(c.driver.Name())
		}
		if c.lastErrorTime.IsZero() || time.Since(c.lastErrorTime) > errorLogInterval {
			c.logger.Warn("actuator send failed", "error", err, "errors", c.errorCount)
			c.lastErrorTime = time.Now()
		}
		return
	}

	c.lastSent = p
	c.sentCount++
	if c.recorder != nil {
		c.recorder.ActuatorSent(c.driver.Name())
	}
}

// Stats is a snapshot of controller counters.
type Stats struct {
	Ticks    uint64           `json:"ticks"`
	Sent     uint64           `json:"sent"`
	Skipped  uint64           `json:"skipped"`
	Errors   uint64           `json:"errors"`
	LastSent control.Position `json:"last_sent"`
}

// Stats returns the current counters.
func (c *RateController) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Ticks:    c.tickCount,
		Sent:     c.sentCount,
		Skipped:  c.skippedTicks,
		Errors:   c.errorCount,
		LastSent: c.lastSent,
	}
}
