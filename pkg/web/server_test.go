package web

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teslashibe/go-joycam/internal/log"
	"github.com/teslashibe/go-joycam/pkg/camera"
	"github.com/teslashibe/go-joycam/pkg/control"
	"github.com/teslashibe/go-joycam/pkg/hub"
	"github.com/teslashibe/go-joycam/pkg/metrics"
	"github.com/teslashibe/go-joycam/pkg/mjpeg"
)

// fakeSource yields n small JPEG frames, then reports no frame.
type fakeSource struct {
	mu       sync.Mutex
	n        int
	acquired int
	released int
}

func (f *fakeSource) Acquire(ctx context.Context) (*camera.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquired >= f.n {
		return nil, camera.ErrFrameUnavailable
	}
	f.acquired++
	data := []byte{0xff, 0xd8, byte(f.acquired), 0xff, 0xd9}
	return &camera.Frame{Data: data, Format: camera.FormatJPEG, Timestamp: time.Now()}, nil
}

func (f *fakeSource) Release(*camera.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

type fixture struct {
	srv   *Server
	state *control.State
	src   *fakeSource
	m     *metrics.Metrics
	hub   *hub.Hub
}

func newFixture(t *testing.T, cfg Config, frames int) *fixture {
	t.Helper()
	lg := log.Discard()
	state := control.NewState()
	src := &fakeSource{n: frames}
	m := metrics.New()
	h := hub.New("telemetry", lg)
	state.Subscribe(hub.NewTelemetry(h, time.Second).ControlChanged)

	srv := NewServer(cfg, Deps{
		Streamer:  mjpeg.New(src, camera.JPEGEncoder{}, mjpeg.WithLogger(lg), mjpeg.WithObserver(m)),
		Ingester:  control.NewIngester(state, 100),
		State:     state,
		Telemetry: h,
		Metrics:   m,
		Logger:    lg,
	})
	return &fixture{srv: srv, state: state, src: src, m: m, hub: h}
}

func postCmd(t *testing.T, f *fixture, body string) (int, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, "/cmd", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.srv.IndexApp().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestCommand(t *testing.T) {
	f := newFixture(t, Config{}, 0)

	status, body := postCmd(t, f, `{"x1":150,"y1":-150,"x2":0,"y2":37}`)
	if status != http.StatusOK || body != control.Ack {
		t.Fatalf("valid: got %d %q", status, body)
	}
	want := control.Position{X1: 100, Y1: -100, X2: 0, Y2: 37}
	if got := f.state.Read(); got != want {
		t.Fatalf("state: got %+v, want %+v", got, want)
	}

	tests := []struct {
		name   string
		body   string
		status int
		resp   string
	}{
		{"missing field", `{"x1":1,"y1":2,"x2":3}`, http.StatusBadRequest, "Invalid JSON"},
		{"non-numeric", `{"x1":1,"y1":2,"x2":3,"y2":"4"}`, http.StatusBadRequest, "Invalid JSON"},
		{"malformed", `{"x1":1,`, http.StatusBadRequest, "Invalid JSON"},
		{"oversize", `{"x1":1,"y1":2,"x2":3,"y2":4,"pad":"` + strings.Repeat("a", 80) + `"}`, http.StatusRequestHeaderFieldsTooLarge, ""},
		{"empty", ``, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := postCmd(t, f, tt.body)
			if status != tt.status {
				t.Errorf("status: got %d, want %d", status, tt.status)
			}
			if tt.resp != "" && body != tt.resp {
				t.Errorf("body: got %q, want %q", body, tt.resp)
			}
			if got := f.state.Read(); got != want {
				t.Errorf("state changed to %+v", got)
			}
		})
	}
}

func TestCommand_OversizeStatus(t *testing.T) {
	f := newFixture(t, Config{OversizeStatus: http.StatusRequestEntityTooLarge}, 0)
	status, _ := postCmd(t, f, strings.Repeat(" ", 100))
	if status != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want 413", status)
	}
}

// TestCommand_OversizeRejectedBeforeBody declares a large body and never
// sends it; the status must come back from the headers alone.
func TestCommand_OversizeRejectedBeforeBody(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	indexLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	streamLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, indexLn, streamLn) }()

	conn, err := net.Dial("tcp", indexLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	req := "POST /cmd HTTP/1.1\r\nHost: joycam\r\nContent-Type: application/json\r\nContent-Length: 1000\r\n\r\n"
	if _, err := io.WriteString(conn, req); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("no response without a body: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestHeaderFieldsTooLarge {
		t.Errorf("status: got %d, want 431", resp.StatusCode)
	}
	if got := testutil.ToFloat64(f.m.ControlRequests.WithLabelValues("too_large")); got != 1 {
		t.Errorf("too_large requests: got %v, want 1", got)
	}
	if got := f.state.Read(); got != (control.Position{}) {
		t.Errorf("state changed to %+v", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestStaticRoutes(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	tests := []struct {
		path   string
		status int
		ctype  string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/joy.js", http.StatusOK, "application/javascript"},
		{"/favicon.ico", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		resp, err := f.srv.IndexApp().Test(httptestGet(tt.path))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status %d, want %d", tt.path, resp.StatusCode, tt.status)
		}
		if ct := resp.Header.Get("Content-Type"); tt.ctype != "" && !strings.HasPrefix(ct, tt.ctype) {
			t.Errorf("%s: content type %q, want %q", tt.path, ct, tt.ctype)
		}
		resp.Body.Close()
	}
}

func TestStream(t *testing.T) {
	f := newFixture(t, Config{}, 3)

	resp, err := f.srv.StreamApp().Test(httptestGet("/stream"), 5000)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != mjpeg.ContentType {
		t.Errorf("content type: got %q", ct)
	}
	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("allow origin: got %q", v)
	}
	if v := resp.Header.Get("X-Framerate"); v != "60" {
		t.Errorf("x-framerate: got %q", v)
	}

	data, _ := io.ReadAll(resp.Body)
	parts := strings.Split(string(data), "\r\n--"+mjpeg.Boundary+"\r\n")
	if len(parts) != 4 || parts[0] != "" {
		t.Fatalf("got %d parts, want 3 frames", len(parts)-1)
	}
	for i, part := range parts[1:] {
		head, body, ok := strings.Cut(part, "\r\n\r\n")
		if !ok {
			t.Fatalf("frame %d: no header terminator", i)
		}
		var length int
		for _, line := range strings.Split(head, "\r\n") {
			if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
				length, _ = strconv.Atoi(v)
			}
		}
		if length != len(body) || length != 5 {
			t.Errorf("frame %d: Content-Length %d, body %d", i, length, len(body))
		}
	}

	if f.src.released != 3 {
		t.Errorf("released %d frames, want 3", f.src.released)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, Config{Version: "test"}, 0)
	postCmd(t, f, `{"x1":5,"y1":6,"x2":7,"y2":8}`)

	resp, err := f.srv.IndexApp().Test(httptestGet("/health"))
	if err != nil {
		t.Fatal(err)
	}
	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if h.Status != "ok" || h.Version != "test" || h.Control != (control.Position{X1: 5, Y1: 6, X2: 7, Y2: 8}) {
		t.Errorf("health: %+v", h)
	}

	resp, err = f.srv.IndexApp().Test(httptestGet("/metrics"))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), `joycam_control_requests_total{outcome="ok"} 1`) {
		t.Errorf("metrics missing control counter:\n%s", data)
	}
	if !strings.Contains(string(data), `joycam_http_requests_total{route="/cmd",server="joycam",status="200"} 1`) {
		t.Errorf("metrics missing http counter")
	}
}

func TestTelemetryWebSocket(t *testing.T) {
	f := newFixture(t, Config{}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.hub.Run(ctx)

	indexLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	streamLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, indexLn, streamLn) }()

	addr := indexLn.Addr().String()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/telemetry", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev hub.Event
	if err := conn.ReadJSON(&ev); err != nil || ev.Type != hub.EventControl {
		t.Fatalf("snapshot: %+v, %v", ev, err)
	}

	// the client registers asynchronously; wait until the hub sees it
	for i := 0; i < 100 && f.hub.ClientCount() == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post("http://"+addr+"/cmd", "application/json", strings.NewReader(`{"x1":-9,"y1":9,"x2":1,"y2":2}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	var raw struct {
		Type string           `json:"type"`
		Data control.Position `json:"data"`
	}
	if err := conn.ReadJSON(&raw); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if raw.Type != hub.EventControl || raw.Data != (control.Position{X1: -9, Y1: 9, X2: 1, Y2: 2}) {
		t.Errorf("event: %+v", raw)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func httptestGet(path string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	return req
}
