// Package joycam wires the camera, stream, control, actuator and web
// components into one service.
package joycam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-joycam/internal/config"
	"github.com/teslashibe/go-joycam/pkg/actuator"
	"github.com/teslashibe/go-joycam/pkg/camera"
	"github.com/teslashibe/go-joycam/pkg/camera/cvsource"
	"github.com/teslashibe/go-joycam/pkg/control"
	"github.com/teslashibe/go-joycam/pkg/hub"
	"github.com/teslashibe/go-joycam/pkg/metrics"
	"github.com/teslashibe/go-joycam/pkg/mjpeg"
	"github.com/teslashibe/go-joycam/pkg/web"
)

// Version is reported by /health.
const Version = "0.3.0"

// telemetryInterval limits per-session frame events on /ws/telemetry.
const telemetryInterval = time.Second

// App owns every component and their lifecycle.
type App struct {
	config config.Config
	logger *slog.Logger

	// Camera
	capture cvsource.Capture
	source  *camera.Pool
	encoder camera.Encoder

	// Stream and control
	streamer *mjpeg.Streamer
	state    *control.State
	ingester *control.Ingester

	// Actuation
	driver   actuator.Driver
	actuator *actuator.RateController

	// Observability
	metrics   *metrics.Metrics
	telemetry *hub.Hub

	webServer *web.Server
}

// New validates cfg and returns an App ready for Init.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{config: cfg, logger: logger}, nil
}

// Init builds all components. Call this after New and before Run.
func (a *App) Init(ctx context.Context) error {
	if err := a.initCamera(); err != nil {
		return fmt.Errorf("camera init: %w", err)
	}

	if a.config.Metrics.Enabled {
		a.metrics = metrics.New()
	}
	a.telemetry = hub.New("telemetry", a.logger)
	tel := hub.NewTelemetry(a.telemetry, telemetryInterval)

	observers := mjpeg.Observers{tel}
	if a.metrics != nil {
		observers = append(observers, a.metrics)
	}
	a.streamer = mjpeg.New(a.source, a.encoder,
		mjpeg.WithQuality(a.config.Camera.ConvertQuality),
		mjpeg.WithObserver(observers),
		mjpeg.WithLogger(a.logger.With("component", "mjpeg")),
	)

	a.state = control.NewState()
	a.state.Subscribe(tel.ControlChanged)
	a.ingester = control.NewIngester(a.state, a.config.Server.MaxPayload)

	if err := a.initActuator(ctx); err != nil {
		return fmt.Errorf("actuator init: %w", err)
	}

	deps := web.Deps{
		Streamer:  a.streamer,
		Ingester:  a.ingester,
		State:     a.state,
		Telemetry: a.telemetry,
		Actuator:  a.actuator,
		Logger:    a.logger,
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics
	}
	a.webServer = web.NewServer(web.Config{
		IndexAddr:      a.config.Server.IndexAddr,
		StreamAddr:     a.config.Server.StreamAddr,
		OversizeStatus: a.config.Server.OversizeStatus,
		AccessLog:      a.config.Debug,
		Version:        Version,
	}, deps)

	return nil
}

// cameraConfig resolves the preset and explicit camera settings. A preset
// supplies size and frame rate; quality and pool size always come from cfg.
func cameraConfig(cfg config.CameraConfig) camera.Config {
	cc := camera.Config{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Framerate: cfg.Framerate,
	}
	if p := camera.GetPreset(cfg.Preset); p != nil {
		cc.Width, cc.Height, cc.Framerate = p.Width, p.Height, p.Framerate
	}
	cc.Quality = cfg.Quality
	cc.ConvertQuality = cfg.ConvertQuality
	cc.PoolSize = cfg.PoolSize
	return cc
}

func (a *App) initCamera() error {
	cc := cameraConfig(a.config.Camera)
	if errs := cc.Validate(); len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	if a.config.Camera.Preset != "" && camera.GetPreset(a.config.Camera.Preset) == nil {
		return fmt.Errorf("unknown preset %q (have %s)", a.config.Camera.Preset, strings.Join(camera.PresetNames(), ", "))
	}

	a.encoder = camera.JPEGEncoder{}

	var src camera.Source
	switch a.config.Camera.Source {
	case "pattern":
		src = camera.NewPatternSource(cc.Width, cc.Height, cc.Framerate)
	case "dir":
		ds, err := camera.NewDirSource(a.config.Camera.Dir, cc.Framerate)
		if err != nil {
			return err
		}
		src = ds
	case "gocv":
		capture, err := cvsource.Open(strconv.Itoa(a.config.Camera.Device), cc, a.logger)
		if err != nil {
			return err
		}
		a.capture = capture
		src = capture
		if enc, err := cvsource.NewEncoder(); err == nil {
			a.encoder = enc
		}
	default:
		return fmt.Errorf("unknown camera source %q", a.config.Camera.Source)
	}

	a.source = camera.NewPool(src, cc.PoolSize, a.logger)
	a.logger.Info("camera ready",
		"source", a.config.Camera.Source,
		"width", cc.Width,
		"height", cc.Height,
		"fps", cc.Framerate,
		"pool", cc.PoolSize,
	)
	return nil
}

func (a *App) initActuator(ctx context.Context) error {
	ac := a.config.Actuator
	if ac.Driver == "none" {
		return nil
	}

	driver, err := actuator.NewDriver(ctx, actuator.Config{
		Driver:   ac.Driver,
		Rate:     ac.Rate,
		DeadZone: ac.DeadZone,
		HTTPURL:  ac.HTTPURL,
		MQTT: actuator.MQTTConfig{
			Broker:   ac.MQTT.Broker,
			Topic:    ac.MQTT.Topic,
			ClientID: ac.MQTT.ClientID,
			Encoding: ac.MQTT.Encoding,
			QoS:      ac.MQTT.QoS,
		},
	}, a.logger)
	if err != nil {
		return err
	}
	a.driver = driver
	a.actuator = actuator.NewRateController(a.state, driver, ac.Rate, ac.DeadZone, a.logger)
	if a.metrics != nil {
		a.actuator.SetRecorder(a.metrics)
	}
	return nil
}

// Run listens on the configured addresses and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.startBackground(ctx)
	return a.webServer.Run(ctx)
}

// Serve is Run on caller-provided listeners.
func (a *App) Serve(ctx context.Context, indexLn, streamLn net.Listener) error {
	a.startBackground(ctx)
	return a.webServer.Serve(ctx, indexLn, streamLn)
}

func (a *App) startBackground(ctx context.Context) {
	go a.telemetry.Run(ctx)
	if a.actuator != nil {
		go a.actuator.Run(ctx)
	}
}

// State returns the shared control state.
func (a *App) State() *control.State {
	return a.state
}

// Shutdown releases hardware and network clients. Call after Run returns.
func (a *App) Shutdown() {
	if a.driver != nil {
		if err := a.driver.Close(); err != nil {
			a.logger.Warn("actuator close", "error", err)
		}
	}
	if a.capture != nil {
		if err := a.capture.Close(); err != nil {
			a.logger.Warn("camera close", "error", err)
		}
	}
	if a.source != nil {
		if st := a.source.Stats(); st.Outstanding > 0 {
			a.logger.Warn("frames still checked out at shutdown", "outstanding", st.Outstanding)
		}
	}
}
