// Package metrics exposes Prometheus metrics for the stream, control and
// actuator paths.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-joycam/pkg/control"
	"github.com/teslashibe/go-joycam/pkg/mjpeg"
)

// Metrics contains all Prometheus metrics for the service.
type Metrics struct {
	reg *prometheus.Registry

	// Stream metrics
	ActiveSessions  prometheus.Gauge
	Sessions        prometheus.Counter
	SessionFailures *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	Frames          prometheus.Counter
	FramesEncoded   prometheus.Counter
	FrameBytes      prometheus.Histogram
	StreamBytes     prometheus.Counter
	FrameRate       prometheus.Gauge

	// Control metrics
	ControlRequests *prometheus.CounterVec

	// Actuator metrics
	ActuatorSends  *prometheus.CounterVec
	ActuatorErrors *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry, together with
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "joycam_stream_sessions_active",
			Help: "Current number of MJPEG stream sessions",
		}),
		Sessions: f.NewCounter(prometheus.CounterOpts{
			Name: "joycam_stream_sessions_total",
			Help: "Total number of MJPEG stream sessions started",
		}),
		SessionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "joycam_stream_session_failures_total",
			Help: "Stream sessions ended by a failure, by stage",
		}, []string{"stage"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "joycam_stream_session_duration_seconds",
			Help:    "Duration of stream sessions",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Name: "joycam_stream_frames_total",
			Help: "Total number of frames sent to stream clients",
		}),
		FramesEncoded: f.NewCounter(prometheus.CounterOpts{
			Name: "joycam_stream_frames_transcoded_total",
			Help: "Frames that had to be encoded to JPEG before sending",
		}),
		FrameBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "joycam_stream_frame_bytes",
			Help:    "Size of JPEG frames sent",
			Buckets: prometheus.ExponentialBuckets(2048, 2, 9),
		}),
		StreamBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "joycam_stream_bytes_total",
			Help: "Total JPEG payload bytes sent",
		}),
		FrameRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "joycam_stream_fps",
			Help: "Most recent per-frame rate estimate",
		}),

		ControlRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "joycam_control_requests_total",
			Help: "Control requests by outcome",
		}, []string{"outcome"}),

		ActuatorSends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "joycam_actuator_sends_total",
			Help: "Positions forwarded to the actuator driver",
		}, []string{"driver"}),
		ActuatorErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "joycam_actuator_errors_total",
			Help: "Actuator driver errors",
		}, []string{"driver"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "joycam_http_requests_total",
			Help: "HTTP requests by server, route and status",
		}, []string{"server", "route", "status"}),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// SessionStarted implements mjpeg.Observer.
func (m *Metrics) SessionStarted(string) {
	m.Sessions.Inc()
	m.ActiveSessions.Inc()
}

// FrameSent implements mjpeg.Observer.
func (m *Metrics) FrameSent(s mjpeg.FrameStat) {
	m.Frames.Inc()
	if s.Transcoded {
		m.FramesEncoded.Inc()
	}
	m.FrameBytes.Observe(float64(s.Bytes))
	m.StreamBytes.Add(float64(s.Bytes))
	m.FrameRate.Set(float64(s.FPS))
}

// SessionEnded implements mjpeg.Observer.
func (m *Metrics) SessionEnded(s mjpeg.SessionStat) {
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(s.Duration.Seconds())

	var se *mjpeg.StageError
	if errors.As(s.Err, &se) {
		m.SessionFailures.WithLabelValues(se.Stage.String()).Inc()
	}
}

// ObserveControl counts one control request by its outcome.
func (m *Metrics) ObserveControl(err error) {
	m.ControlRequests.WithLabelValues(control.Outcome(err)).Inc()
}

// ActuatorSent counts a forwarded position.
func (m *Metrics) ActuatorSent(driver string) {
	m.ActuatorSends.WithLabelValues(driver).Inc()
}

// ActuatorFailed counts a driver error.
func (m *Metrics) ActuatorFailed(driver string) {
	m.ActuatorErrors.WithLabelValues(driver).Inc()
}

// ObserveHTTP counts one finished HTTP request.
func (m *Metrics) ObserveHTTP(server, route string, status int) {
	m.HTTPRequests.WithLabelValues(server, route, strconv.Itoa(status)).Inc()
}
