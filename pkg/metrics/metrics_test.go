package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teslashibe/go-joycam/pkg/camera"
	"github.com/teslashibe/go-joycam/pkg/control"
	"github.com/teslashibe/go-joycam/pkg/mjpeg"
)

func TestStreamObserver(t *testing.T) {
	m := New()

	m.SessionStarted("a")
	m.FrameSent(mjpeg.FrameStat{Session: "a", Bytes: 4000, FPS: 25})
	m.FrameSent(mjpeg.FrameStat{Session: "a", Bytes: 6000, FPS: 30, Transcoded: true})
	m.SessionEnded(mjpeg.SessionStat{
		Session:  "a",
		Frames:   2,
		Duration: 2 * time.Second,
		Err:      &mjpeg.StageError{Stage: mjpeg.StateSendingBody, Err: mjpeg.ErrSend},
	})

	if got := testutil.ToFloat64(m.Frames); got != 2 {
		t.Errorf("frames: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FramesEncoded); got != 1 {
		t.Errorf("transcoded: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StreamBytes); got != 10000 {
		t.Errorf("bytes: got %v, want 10000", got)
	}
	if got := testutil.ToFloat64(m.FrameRate); got != 30 {
		t.Errorf("fps: got %v, want 30", got)
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 0 {
		t.Errorf("active: got %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.SessionFailures.WithLabelValues("sending_body")); got != 1 {
		t.Errorf("failures: got %v, want 1", got)
	}

	// a session closed by shutdown is not a failure
	m.SessionStarted("b")
	m.SessionEnded(mjpeg.SessionStat{Session: "b", Err: context.Canceled})
	if got := testutil.CollectAndCount(m.SessionFailures); got != 1 {
		t.Errorf("failure series: got %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 0 {
		t.Errorf("active after close: got %v, want 0", got)
	}
}

func TestObserveControl(t *testing.T) {
	m := New()
	m.ObserveControl(nil)
	m.ObserveControl(nil)
	m.ObserveControl(control.ErrPayloadTooLarge)
	m.ObserveControl(errors.Join(control.ErrInvalidFields))

	tests := map[string]float64{
		"ok":             2,
		"too_large":      1,
		"invalid_fields": 1,
		"malformed":      0,
	}
	for outcome, want := range tests {
		if got := testutil.ToFloat64(m.ControlRequests.WithLabelValues(outcome)); got != want {
			t.Errorf("%s: got %v, want %v", outcome, got, want)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ActuatorSent("log")
	m.ActuatorFailed("mqtt")
	m.ObserveHTTP("index", "/control", 200)
	m.SessionEnded(mjpeg.SessionStat{Err: &mjpeg.StageError{Stage: mjpeg.StateAwaitingFrame, Err: camera.ErrFrameUnavailable}})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`joycam_actuator_sends_total{driver="log"} 1`,
		`joycam_actuator_errors_total{driver="mqtt"} 1`,
		`joycam_http_requests_total{route="/control",server="index",status="200"} 1`,
		`joycam_stream_session_failures_total{stage="awaiting_frame"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
