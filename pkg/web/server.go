// Package web serves the joystick page, the control endpoint and the MJPEG
// stream.
//
// The page and control endpoint live on the index app; the stream has an app
// and listener of its own so a slow stream client cannot hold up control
// requests.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-joycam/pkg/actuator"
	"github.com/teslashibe/go-joycam/pkg/control"
	"github.com/teslashibe/go-joycam/pkg/hub"
	"github.com/teslashibe/go-joycam/pkg/metrics"
	"github.com/teslashibe/go-joycam/pkg/mjpeg"
)

const (
	// shutdownTimeout bounds how long Serve waits for connections to drain.
	shutdownTimeout = 5 * time.Second

	// indexReadTimeout bounds reading one request on the index app.
	indexReadTimeout = 5 * time.Second
)

// Config holds listener and behaviour settings.
type Config struct {
	IndexAddr  string
	StreamAddr string

	// OversizeStatus is sent for control bodies that do not fit the ingest
	// buffer: 431 like the firmware, or 413.
	OversizeStatus int

	// AccessLog enables fiber's request logger.
	AccessLog bool

	Version string
}

// Deps are the collaborators the handlers use. Streamer, Ingester and State
// are required; the rest may be nil.
type Deps struct {
	Streamer  *mjpeg.Streamer
	Ingester  *control.Ingester
	State     control.Reader
	Telemetry *hub.Hub
	Metrics   *metrics.Metrics
	Actuator  *actuator.RateController
	Logger    *slog.Logger
}

// Server is the pair of fiber apps.
type Server struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	index  *fiber.App
	stream *fiber.App

	// streamCtx ends stream sessions on shutdown
	streamCtx    context.Context
	cancelStream context.CancelFunc
}

// NewServer builds both apps and registers their routes.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.OversizeStatus == 0 {
		cfg.OversizeStatus = http.StatusRequestHeaderFieldsTooLarge
	}
	lg := deps.Logger
	if lg == nil {
		lg = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:          cfg,
		deps:         deps,
		logger:       lg.With("component", "web"),
		streamCtx:    ctx,
		cancelStream: cancel,
	}

	// Declared lengths past the ingest buffer are refused by fasthttp while
	// it parses headers, so the body is never read. handleError turns that
	// into OversizeStatus.
	s.index = s.newApp("joycam", fiber.Config{
		BodyLimit:    deps.Ingester.MaxPayload() - 1,
		ReadTimeout:  indexReadTimeout,
		ErrorHandler: s.handleError,
	})
	s.index.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	s.index.Get("/", s.handleIndex)
	s.index.Get("/joy.js", s.handleScript)
	s.index.Post("/cmd", s.handleCommand)
	s.index.Get("/health", s.handleHealth)
	if deps.Metrics != nil {
		s.index.Get("/metrics", metricsHandler(deps.Metrics))
	}
	if deps.Telemetry != nil {
		s.index.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		s.index.Get("/ws/telemetry", websocket.New(s.handleTelemetryWS))
	}
	s.index.Use(s.handleNotFound)

	s.stream = s.newApp("joycam-stream", fiber.Config{})
	s.stream.Get("/stream", s.handleStream)
	s.stream.Use(s.handleNotFound)

	return s
}

func (s *Server) newApp(name string, cfg fiber.Config) *fiber.App {
	cfg.AppName = name
	cfg.DisableStartupMessage = true
	app := fiber.New(cfg)
	app.Use(recover.New())
	if s.cfg.AccessLog {
		app.Use(logger.New())
	}
	if s.deps.Metrics != nil {
		app.Use(func(c *fiber.Ctx) error {
			err := c.Next()
			status := c.Response().StatusCode()
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			s.deps.Metrics.ObserveHTTP(name, c.Route().Path, status)
			return err
		})
	}
	return app
}

// IndexApp returns the page/control app.
func (s *Server) IndexApp() *fiber.App { return s.index }

// StreamApp returns the stream app.
func (s *Server) StreamApp() *fiber.App { return s.stream }

// Run listens on the configured addresses and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	indexLn, err := net.Listen("tcp", s.cfg.IndexAddr)
	if err != nil {
		return fmt.Errorf("listen index %s: %w", s.cfg.IndexAddr, err)
	}
	streamLn, err := net.Listen("tcp", s.cfg.StreamAddr)
	if err != nil {
		indexLn.Close()
		return fmt.Errorf("listen stream %s: %w", s.cfg.StreamAddr, err)
	}
	return s.Serve(ctx, indexLn, streamLn)
}

// Serve serves both apps on the given listeners until ctx is done or one of
// them fails, then shuts both down.
func (s *Server) Serve(ctx context.Context, indexLn, streamLn net.Listener) error {
	s.logger.Info("web server started", "index", indexLn.Addr().String(), "stream", streamLn.Addr().String())

	errc := make(chan error, 2)
	go func() { errc <- s.index.Listener(indexLn) }()
	go func() { errc <- s.stream.Listener(streamLn) }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
		s.logger.Error("listener stopped", "error", err)
	}

	s.cancelStream()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := s.stream.ShutdownWithContext(sctx); serr != nil {
		s.logger.Warn("stream shutdown", "error", serr)
	}
	if serr := s.index.ShutdownWithContext(sctx); serr != nil {
		s.logger.Warn("index shutdown", "error", serr)
	}
	s.logger.Info("web server stopped")
	return err
}
