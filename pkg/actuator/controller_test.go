package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/teslashibe/go-joycam/internal/log"
	"github.com/teslashibe/go-joycam/pkg/control"
)

// mockDriver records all positions it is sent
type mockDriver struct {
	mu    sync.Mutex
	sent  []control.Position
	fail  bool
	calls int
}

func (m *mockDriver) Name() string { return "mock" }

func (m *mockDriver) Send(_ context.Context, p control.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail {
		return errors.New("motor offline")
	}
	m.sent = append(m.sent, p)
	return nil
}

func (m *mockDriver) Close() error { return nil }

func (m *mockDriver) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockRecorder struct {
	sent, failed int
}

func (r *mockRecorder) ActuatorSent(string) { r.sent++ }
func (r *mockRecorder) ActuatorFailed(string) { r.failed++ }

func TestController_DeadZone(t *testing.T) {
	state := control.NewState()
	mock := &mockDriver{}
	ctrl := NewRateController(state, mock, time.Millisecond, 2, log.Discard())
	ctx := context.Background()

	// centered and never sent: nothing to do
	ctrl.tick(ctx)
	if mock.sentCount() != 0 {
		t.Fatalf("sent %d positions while idle", mock.sentCount())
	}

	steps := []struct {
		pos      control.Position
		wantSent int
	}{
		{control.Position{X1: 50}, 1},
		{control.Position{X1: 51}, 1},        // inside dead zone
		{control.Position{X1: 52, Y2: 2}, 1}, // still inside
		{control.Position{X1: 53}, 2},        // 3 away from last sent
		{control.Position{X1: 53}, 2},        // unchanged
		{control.Position{X1: 1}, 3},
		{control.Position{}, 4}, // centering always sent
	}
	for i, step := range steps {
		state.Publish(step.pos)
		ctrl.tick(ctx)
		if got := mock.sentCount(); got != step.wantSent {
			t.Errorf("step %d (%s): sent %d, want %d", i, step.pos, got, step.wantSent)
		}
	}

	s := ctrl.Stats()
	if s.Ticks != uint64(len(steps)+1) || s.Sent != 4 || s.LastSent != (control.Position{}) {
		t.Errorf("stats: %+v", s)
	}
}

func TestController_ErrorsRetry(t *testing.T) {
	state := control.NewState()
	mock := &mockDriver{fail: true}
	rec := &mockRecorder{}
	ctrl := NewRateController(state, mock, time.Millisecond, 0, log.Discard())
	ctrl.SetRecorder(rec)
	ctx := context.Background()

	state.Publish(control.Position{X1: 10})
	ctrl.tick(ctx)
	ctrl.tick(ctx)
	if mock.calls != 2 || rec.failed != 2 {
		t.Errorf("calls %d failed %d, want 2 and 2", mock.calls, rec.failed)
	}

	// a failed send does not count as last sent, so it goes out once the driver recovers
	mock.fail = false
	ctrl.tick(ctx)
	if mock.sentCount() != 1 || rec.sent != 1 {
		t.Errorf("sent %d recorded %d, want 1 and 1", mock.sentCount(), rec.sent)
	}
	if ctrl.Stats().Errors != 2 {
		t.Errorf("errors: got %d, want 2", ctrl.Stats().Errors)
	}
}

func TestController_RunStops(t *testing.T) {
	state := control.NewState()
	state.Publish(control.Position{Y1: -40})
	mock := &mockDriver{}
	ctrl := NewRateController(state, mock, 5*time.Millisecond, 0, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ctrl.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if mock.sentCount() != 1 {
		t.Errorf("sent %d, want exactly 1 for a steady position", mock.sentCount())
	}
}

func TestHTTPDriver(t *testing.T) {
	var got control.Position
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d, err := NewHTTPDriver(srv.URL + "/motors")
	if err != nil {
		t.Fatal(err)
	}
	want := control.Position{X1: 1, Y1: -2, X2: 3, Y2: -100}
	if err := d.Send(context.Background(), want); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != want {
		t.Errorf("server got %+v, want %+v", got, want)
	}

	for _, bad := range []string{"", "ftp://x", "::"} {
		if _, err := NewHTTPDriver(bad); err == nil {
			t.Errorf("NewHTTPDriver(%q) should fail", bad)
		}
	}
}

func TestMQTTEncoding(t *testing.T) {
	p := control.Position{X1: 100, Y1: -100, X2: 0, Y2: 37}

	enc, err := encoderFor("json")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := enc(p)
	if string(data) != `{"x1":100,"y1":-100,"x2":0,"y2":37}` {
		t.Errorf("json: got %s", data)
	}

	enc, err = encoderFor("msgpack")
	if err != nil {
		t.Fatal(err)
	}
	data, _ = enc(p)
	var back control.Position
	if err := msgpack.Unmarshal(data, &back); err != nil || back != p {
		t.Errorf("msgpack: got %+v, %v", back, err)
	}

	if _, err := encoderFor("xml"); err == nil {
		t.Error("unknown encoding should fail")
	}
}

func TestBrokerURL(t *testing.T) {
	tests := map[string]string{
		"localhost:1883":        "tcp://localhost:1883",
		"ssl://broker:8883":     "ssl://broker:8883",
		"ws://broker:9001/mqtt": "ws://broker:9001/mqtt",
	}
	for in, want := range tests {
		if got := brokerURL(in); got != want {
			t.Errorf("brokerURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewDriver(t *testing.T) {
	d, err := NewDriver(context.Background(), Config{Driver: "log"}, log.Discard())
	if err != nil || d.Name() != "log" {
		t.Errorf("log driver: %v, %v", d, err)
	}
	if _, err := NewDriver(context.Background(), Config{Driver: "can"}, nil); err == nil {
		t.Error("unknown driver should fail")
	}
	if _, err := NewDriver(context.Background(), Config{Driver: "mqtt", MQTT: MQTTConfig{Broker: "x:1", Encoding: "json"}}, nil); err == nil {
		t.Error("mqtt without topic should fail")
	}
}
