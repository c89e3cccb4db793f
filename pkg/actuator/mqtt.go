package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/teslashibe/go-joycam/pkg/control"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// MQTTConfig configures the MQTT driver.
type MQTTConfig struct {
	Broker   string // host:port or a full tcp:// / ssl:// / ws:// URL
	Topic    string
	ClientID string // generated when empty
	Encoding string // "json" or "msgpack"
	QoS      byte
}

// MQTTDriver publishes positions to a topic, encoded as JSON or msgpack.
type MQTTDriver struct {
	client mqtt.Client
	topic  string
	qos    byte
	encode func(control.Position) ([]byte, error)
	logger *slog.Logger

	connected atomic.Bool
}

// NewMQTTDriver connects to the broker. The client reconnects on its own
// after the first successful connection.
func NewMQTTDriver(ctx context.Context, cfg MQTTConfig, logger *slog.Logger) (*MQTTDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	encode, err := encoderFor(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt topic is empty")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos %d out of range", cfg.QoS)
	}

	d := &MQTTDriver{
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		encode: encode,
		logger: logger.With("driver", "mqtt", "broker", cfg.Broker),
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "joycam-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		d.connected.Store(true)
		d.logger.Info("mqtt connection established", "client_id", clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		d.connected.Store(false)
		d.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
	}

	d.client = mqtt.NewClient(opts)
	d.logger.Info("connecting to mqtt broker")

	token := d.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(mqttConnectTimeout):
		d.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		d.client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	d.connected.Store(true)
	return d, nil
}

func (d *MQTTDriver) Name() string { return "mqtt" }

func (d *MQTTDriver) Send(ctx context.Context, p control.Position) error {
	if !d.connected.Load() {
		return fmt.Errorf("mqtt not connected")
	}
	payload, err := d.encode(p)
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}

	token := d.client.Publish(d.topic, d.qos, false, payload)
	select {
	case <-token.Done():
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("publish timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func (d *MQTTDriver) Close() error {
	d.client.Disconnect(250)
	d.connected.Store(false)
	return nil
}

func encoderFor(name string) (func(control.Position) ([]byte, error), error) {
	switch name {
	case "", "json":
		return func(p control.Position) ([]byte, error) { return json.Marshal(p) }, nil
	case "msgpack":
		return func(p control.Position) ([]byte, error) { return msgpack.Marshal(p) }, nil
	default:
		return nil, fmt.Errorf("unknown mqtt encoding %q", name)
	}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
