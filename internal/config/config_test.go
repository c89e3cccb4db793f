package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Server.MaxPayload != 100 {
		t.Errorf("MaxPayload: got %d, want 100", cfg.Server.MaxPayload)
	}
	if cfg.Camera.ConvertQuality != 80 {
		t.Errorf("ConvertQuality: got %d, want 80", cfg.Camera.ConvertQuality)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "joycam.yaml")
	data := []byte(`
server:
  index_addr: ":8080"
  stream_addr: ":8081"
camera:
  source: dir
  dir: /tmp/frames
actuator:
  driver: mqtt
  rate: 20ms
  mqtt:
    broker: broker.local:1883
    topic: rover/joy
    encoding: msgpack
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.IndexAddr != ":8080" || cfg.Server.StreamAddr != ":8081" {
		t.Errorf("addrs: got %q %q", cfg.Server.IndexAddr, cfg.Server.StreamAddr)
	}
	if cfg.Actuator.Rate != 20*time.Millisecond {
		t.Errorf("Rate: got %v, want 20ms", cfg.Actuator.Rate)
	}
	if cfg.Actuator.MQTT.Encoding != "msgpack" {
		t.Errorf("Encoding: got %q, want msgpack", cfg.Actuator.MQTT.Encoding)
	}
	// Untouched fields keep their defaults.
	if cfg.Server.MaxPayload != DefaultMaxPayload {
		t.Errorf("MaxPayload: got %d, want %d", cfg.Server.MaxPayload, DefaultMaxPayload)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("JOYCAM_STREAM_ADDR", ":9091")
	t.Setenv("JOYCAM_CAMERA_DEVICE", "2")

	cfg := DefaultConfig()
	cfg.LoadEnvConfig()

	if cfg.Server.StreamAddr != ":9091" {
		t.Errorf("StreamAddr: got %q, want :9091", cfg.Server.StreamAddr)
	}
	if cfg.Camera.Device != 2 {
		t.Errorf("Device: got %d, want 2", cfg.Camera.Device)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"same address", func(c *Config) { c.Server.StreamAddr = c.Server.IndexAddr }, "server.stream_addr"},
		{"tiny payload", func(c *Config) { c.Server.MaxPayload = 1 }, "server.max_payload"},
		{"bad status", func(c *Config) { c.Server.OversizeStatus = 400 }, "server.oversize_status"},
		{"dir without path", func(c *Config) { c.Camera.Source = "dir" }, "camera.dir"},
		{"unknown source", func(c *Config) { c.Camera.Source = "usb" }, "camera.source"},
		{"http without url", func(c *Config) { c.Actuator.Driver = "http" }, "actuator.http_url"},
		{"bad encoding", func(c *Config) {
			c.Actuator.Driver = "mqtt"
			c.Actuator.MQTT.Encoding = "xml"
		}, "actuator.mqtt.encoding"},
		{"zero rate", func(c *Config) { c.Actuator.Rate = 0 }, "actuator.rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field: got %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}
