package web

import (
	"bufio"
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-joycam/pkg/control"
	"github.com/teslashibe/go-joycam/pkg/hub"
	"github.com/teslashibe/go-joycam/pkg/metrics"
	"github.com/teslashibe/go-joycam/pkg/mjpeg"
)

func (s *Server) handleIndex(c *fiber.Ctx) error {
	s.logger.Info("got index request")
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(indexHTML)
}

func (s *Server) handleScript(c *fiber.Ctx) error {
	s.logger.Info("got js request")
	c.Set(fiber.HeaderContentType, "application/javascript")
	return c.Send(joyJS)
}

// handleCommand ingests one joystick record.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	body := c.Body()
	declared := int64(c.Request().Header.ContentLength())
	if declared < 0 {
		// chunked; fasthttp stopped reading at BodyLimit
		declared = int64(len(body))
	}

	pos, err := s.deps.Ingester.Ingest(declared, bytes.NewReader(body))
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveControl(err)
	}
	if err != nil {
		status := control.StatusCode(err)
		if errors.Is(err, control.ErrPayloadTooLarge) {
			status = s.cfg.OversizeStatus
		}
		s.logger.Warn("control request rejected",
			"status", status,
			"outcome", control.Outcome(err),
			"error", err,
		)
		if status == http.StatusBadRequest {
			return c.Status(status).SendString("Invalid JSON")
		}
		return c.SendStatus(status)
	}

	s.logger.Debug("control received", "position", pos.String())
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(control.Ack)
}

// handleStream runs one MJPEG session on the response body stream.
func (s *Server) handleStream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, mjpeg.ContentType)
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set("X-Framerate", mjpeg.AdvertisedFramerate)

	ctx := s.streamCtx
	remote := c.IP()
	streamer := s.deps.Streamer
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		sess := streamer.NewSession()
		s.logger.Info("stream client connected", "remote", remote, "session", sess.ID())
		_ = sess.Run(ctx, mjpeg.NewWriterTransport(w))
	})
	return nil
}

type healthResponse struct {
	Status           string           `json:"status"`
	Version          string           `json:"version,omitempty"`
	StreamSessions   int              `json:"stream_sessions"`
	TelemetryClients int              `json:"telemetry_clients"`
	Control          control.Position `json:"control"`
	Actuator         any              `json:"actuator,omitempty"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := healthResponse{
		Status:         "ok",
		Version:        s.cfg.Version,
		StreamSessions: s.deps.Streamer.Active(),
		Control:        s.deps.State.Read(),
	}
	if s.deps.Telemetry != nil {
		resp.TelemetryClients = s.deps.Telemetry.ClientCount()
	}
	if s.deps.Actuator != nil {
		resp.Actuator = s.deps.Actuator.Stats()
	}
	return c.JSON(resp)
}

// handleTelemetryWS greets the client with the current position, then
// streams live events.
func (s *Server) handleTelemetryWS(c *websocket.Conn) {
	snapshot, err := hub.Event{Type: hub.EventControl, Time: time.Now(), Data: s.deps.State.Read()}.Encode()
	if err != nil {
		s.logger.Error("encode telemetry snapshot", "error", err)
		c.Close()
		return
	}
	hub.NewClient(s.deps.Telemetry, c, snapshot).Run()
}

// handleError is the index app's error handler. fasthttp reports a body
// over BodyLimit as 413 before any handler runs; on this app that only
// happens for control posts, which get OversizeStatus like any other
// oversized record.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code != fiber.StatusRequestEntityTooLarge {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(code).SendString(err.Error())
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveControl(control.ErrPayloadTooLarge)
	}
	s.logger.Warn("control request rejected",
		"status", s.cfg.OversizeStatus,
		"outcome", control.Outcome(control.ErrPayloadTooLarge),
		"declared", c.Request().Header.ContentLength(),
	)
	return c.SendStatus(s.cfg.OversizeStatus)
}

func (s *Server) handleNotFound(c *fiber.Ctx) error {
	s.logger.Warn("request content not found", "method", c.Method(), "uri", c.OriginalURL())
	return c.Status(fiber.StatusNotFound).SendString("Nothing matches the given URI")
}

func metricsHandler(m *metrics.Metrics) fiber.Handler {
	return adaptor.HTTPHandler(m.Handler())
}
