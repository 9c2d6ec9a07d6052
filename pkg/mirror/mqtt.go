package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/towet/wastemanagement/pkg/model"
)

// DefaultTopic is the topic template; %s is replaced by the device id.
const DefaultTopic = "ecotrack/devices/%s/fill"

// MQTTConfig holds the broker parameters.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
}

// MQTT publishes readings as JSON to a per-device topic.
type MQTT struct {
	client   mqtt.Client
	topic    string
	qos      byte
	retained bool
}

type payload struct {
	model.Reading
	FillState model.FillState `json:"fill_state"`
}

// DialMQTT connects to the broker.
func DialMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "ecobridge-" + uuid.NewString()[:8]
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return NewMQTT(client, cfg.Topic, cfg.QoS, cfg.Retained), nil
}

// NewMQTT wraps a connected client.
func NewMQTT(client mqtt.Client, topic string, qos byte, retained bool) *MQTT {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTT{client: client, topic: topic, qos: qos, retained: retained}
}

// Topic returns the topic readings of deviceID are published on.
func (m *MQTT) Topic(deviceID string) string {
	if !strings.Contains(m.topic, "%s") {
		return m.topic
	}
	return fmt.Sprintf(m.topic, deviceID)
}

// Publish sends reading and waits for the broker, or ctx, to finish.
func (m *MQTT) Publish(ctx context.Context, reading model.Reading) error {
	data, err := json.Marshal(payload{
		Reading:   reading,
		FillState: model.ClassifyFill(reading.FillLevel),
	})
	if err != nil {
		return err
	}

	topic := m.Topic(reading.Device)
	token := m.client.Publish(topic, m.qos, m.retained, data)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
