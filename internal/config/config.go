// Package config provides configuration loading for joycam commands.
//
// Values come from DefaultConfig, then an optional YAML file, then JOYCAM_*
// environment variables. Flag parsing happens in cmd/joycam and is applied last.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default network configuration. The control page and the stream live on
// separate ports so a stalled stream cannot hold up joystick updates.
const (
	DefaultIndexAddr  = ":80"
	DefaultStreamAddr = ":81"

	// DefaultMaxPayload is the control ingest buffer capacity in bytes.
	DefaultMaxPayload = 100
)

// Config represents the complete service configuration.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Camera   CameraConfig   `yaml:"camera"`
	Actuator ActuatorConfig `yaml:"actuator"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	IndexAddr  string `yaml:"index_addr"`
	StreamAddr string `yaml:"stream_addr"`

	// MaxPayload is the control buffer capacity. Requests declaring a body
	// length >= MaxPayload are rejected before the body is looked at.
	MaxPayload int `yaml:"max_payload"`

	// OversizeStatus is the HTTP status for oversized control payloads.
	// The device answers 431; 413 is the other sensible choice.
	OversizeStatus int `yaml:"oversize_status"`
}

// CameraConfig selects and tunes the frame source.
type CameraConfig struct {
	Source         string `yaml:"source"` // "pattern", "dir", "gocv"
	Device         int    `yaml:"device"`
	Dir            string `yaml:"dir"`
	Preset         string `yaml:"preset"`
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	Framerate      int    `yaml:"framerate"`
	Quality        int    `yaml:"quality"`
	ConvertQuality int    `yaml:"convert_quality"`
	PoolSize       int    `yaml:"pool_size"`
}

// ActuatorConfig selects where control positions are forwarded.
type ActuatorConfig struct {
	Driver   string        `yaml:"driver"` // "log", "http", "mqtt", "none"
	Rate     time.Duration `yaml:"rate"`
	DeadZone int           `yaml:"dead_zone"`
	HTTPURL  string        `yaml:"http_url"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
}

// MQTTConfig holds broker settings for the MQTT actuator driver.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Encoding string `yaml:"encoding"` // "json" or "msgpack"
	QoS      byte   `yaml:"qos"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns sensible defaults matching the device firmware.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			IndexAddr:      DefaultIndexAddr,
			StreamAddr:     DefaultStreamAddr,
			MaxPayload:     DefaultMaxPayload,
			OversizeStatus: 431,
		},
		Camera: CameraConfig{
			Source:         "pattern",
			Preset:         "qvga",
			Width:          320,
			Height:         240,
			Framerate:      30,
			Quality:        85,
			ConvertQuality: 80,
			PoolSize:       1,
		},
		Actuator: ActuatorConfig{
			Driver:   "log",
			Rate:     50 * time.Millisecond,
			DeadZone: 1,
			MQTT: MQTTConfig{
				Broker:   "localhost:1883",
				Topic:    "joycam/control",
				Encoding: "json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads a YAML file on top of DefaultConfig.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnvConfig applies JOYCAM_* environment overrides.
// Call this after Load and before flag overrides.
func (c *Config) LoadEnvConfig() {
	c.Server.IndexAddr = envOr("JOYCAM_INDEX_ADDR", c.Server.IndexAddr)
	c.Server.StreamAddr = envOr("JOYCAM_STREAM_ADDR", c.Server.StreamAddr)
	c.Camera.Source = envOr("JOYCAM_CAMERA_SOURCE", c.Camera.Source)
	c.Camera.Dir = envOr("JOYCAM_CAMERA_DIR", c.Camera.Dir)
	c.Camera.Device = envIntOr("JOYCAM_CAMERA_DEVICE", c.Camera.Device)
	c.Actuator.Driver = envOr("JOYCAM_ACTUATOR", c.Actuator.Driver)
	c.Actuator.HTTPURL = envOr("JOYCAM_ACTUATOR_URL", c.Actuator.HTTPURL)
	c.Actuator.MQTT.Broker = envOr("JOYCAM_MQTT_BROKER", c.Actuator.MQTT.Broker)
	c.Actuator.MQTT.Topic = envOr("JOYCAM_MQTT_TOPIC", c.Actuator.MQTT.Topic)
	c.Logging.Level = envOr("JOYCAM_LOG_LEVEL", c.Logging.Level)
	if os.Getenv("GO_ENV") == "production" {
		c.Logging.Format = "json"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.IndexAddr == "" {
		return &ConfigError{Field: "server.index_addr", Message: "index address is required"}
	}
	if c.Server.StreamAddr == "" {
		return &ConfigError{Field: "server.stream_addr", Message: "stream address is required"}
	}
	if c.Server.IndexAddr == c.Server.StreamAddr {
		return &ConfigError{Field: "server.stream_addr", Message: "stream must listen on a different address than the index"}
	}
	if c.Server.MaxPayload < 2 {
		return &ConfigError{Field: "server.max_payload", Message: "max_payload must be at least 2 bytes"}
	}
	if c.Server.OversizeStatus != 413 && c.Server.OversizeStatus != 431 {
		return &ConfigError{Field: "server.oversize_status", Message: "oversize_status must be 413 or 431"}
	}
	switch c.Camera.Source {
	case "pattern", "gocv":
	case "dir":
		if c.Camera.Dir == "" {
			return &ConfigError{Field: "camera.dir", Message: "camera.dir is required for the dir source"}
		}
	default:
		return &ConfigError{Field: "camera.source", Message: fmt.Sprintf("unknown camera source %q", c.Camera.Source)}
	}
	switch c.Actuator.Driver {
	case "log", "none":
	case "http":
		if c.Actuator.HTTPURL == "" {
			return &ConfigError{Field: "actuator.http_url", Message: "actuator.http_url is required for the http driver"}
		}
	case "mqtt":
		if c.Actuator.MQTT.Broker == "" || c.Actuator.MQTT.Topic == "" {
			return &ConfigError{Field: "actuator.mqtt", Message: "mqtt broker and topic are required for the mqtt driver"}
		}
		if e := c.Actuator.MQTT.Encoding; e != "json" && e != "msgpack" {
			return &ConfigError{Field: "actuator.mqtt.encoding", Message: "mqtt encoding must be json or msgpack"}
		}
	default:
		return &ConfigError{Field: "actuator.driver", Message: fmt.Sprintf("unknown actuator driver %q", c.Actuator.Driver)}
	}
	if c.Actuator.Driver != "none" && c.Actuator.Rate <= 0 {
		return &ConfigError{Field: "actuator.rate", Message: "actuator.rate must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// envOr returns the env var value or the fallback if it is unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
