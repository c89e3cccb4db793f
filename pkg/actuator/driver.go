// Package actuator forwards the current joystick position to whatever moves
// the device.
//
// A RateController polls a control.Reader at a fixed rate and hands positions
// that moved past a dead zone to a Driver. Drivers are small: they log, POST
// to an HTTP endpoint, or publish to an MQTT topic.
package actuator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-joycam/pkg/control"
)

// Driver sends a position to the device.
type Driver interface {
	Name() string
	Send(ctx context.Context, p control.Position) error
	Close() error
}

// Recorder receives send outcomes, typically metrics.
type Recorder interface {
	ActuatorSent(driver string)
	ActuatorFailed(driver string)
}

// Config selects and configures a driver.
type Config struct {
	Driver   string
	Rate     time.Duration
	DeadZone int
	HTTPURL  string
	MQTT     MQTTConfig
}

// NewDriver builds the driver named by cfg.Driver.
func NewDriver(ctx context.Context, cfg Config, logger *slog.Logger) (Driver, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogDriver(logger), nil
	case "http":
		return NewHTTPDriver(cfg.HTTPURL)
	case "mqtt":
		return NewMQTTDriver(ctx, cfg.MQTT, logger)
	default:
		return nil, fmt.Errorf("unknown actuator driver %q", cfg.Driver)
	}
}

// LogDriver logs every position it is given. It stands in for hardware
// during development.
type LogDriver struct {
	logger *slog.Logger
}

// NewLogDriver creates a LogDriver. A nil logger uses slog.Default().
func NewLogDriver(logger *slog.Logger) *LogDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDriver{logger: logger}
}

func (d *LogDriver) Name() string { return "log" }

func (d *LogDriver) Send(_ context.Context, p control.Position) error {
	d.logger.Info("actuator position", "x1", p.X1, "y1", p.Y1, "x2", p.X2, "y2", p.Y2)
	return nil
}

func (d *LogDriver) Close() error { return nil }
