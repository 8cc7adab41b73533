package notify

import (
  "encoding/json"
  "fmt"
  "time"

  mqtt "github.com/eclipse/paho.mqtt.golang"
  "github.com/robertof/go-rapt-exporter/brewing"
  "github.com/rs/zerolog/log"
)

const (
  DefaultMQTTTopicPrefix = "rapt"
  DefaultMQTTClientID = "rapt-exporter"

  publishTimeout = 5 * time.Second
)

type MQTTConfig struct {
  Broker string `yaml:"broker"`
  ClientID string `yaml:"client_id"`
  Username string `yaml:"username"`
  Password string `yaml:"password"`
  TopicPrefix string `yaml:"topic_prefix"`
  Retain bool `yaml:"retain"`
}

// Publisher is the subset of mqtt.Client used for delivery.
type Publisher interface {
  Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type MQTTNotifier struct {
  client Publisher
  prefix string
  retain bool
}

type alertMessage struct {
  SessionID string `json:"session_id"`
  SessionName string `json:"session_name"`
  Type brewing.AlertType `json:"type"`
  Message string `json:"message"`
  Timestamp time.Time `json:"timestamp"`
  Gravity *float64 `json:"gravity,omitempty"`
  Temperature *float64 `json:"temperature,omitempty"`
  Battery *int `json:"battery,omitempty"`
}

// DialMQTT connects to the broker and returns a notifier publishing on it.
func DialMQTT(cfg MQTTConfig) (*MQTTNotifier, error) {
  if cfg.Broker == "" {
    return nil, fmt.Errorf("MQTT broker address is required")
  }

  if cfg.ClientID == "" {
    cfg.ClientID = DefaultMQTTClientID
  }

  opts := mqtt.NewClientOptions().
    AddBroker(cfg.Broker).
    SetClientID(cfg.ClientID).
    SetAutoReconnect(true).
    SetMaxReconnectInterval(10 * time.Second).
    SetKeepAlive(30 * time.Second).
    SetCleanSession(true)

  if cfg.Username != "" {
    opts.SetUsername(cfg.Username)
    opts.SetPassword(cfg.Password)
  }

  opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
    log.Warn().Err(err).Str("Broker", cfg.Broker).Msg("notify: MQTT connection lost")
  })

  opts.SetOnConnectHandler(func(_ mqtt.Client) {
    log.Info().Str("Broker", cfg.Broker).Msg("notify: connected to MQTT broker")
  })

  client := mqtt.NewClient(opts)

  if token := client.Connect(); token.Wait() && token.Error() != nil {
    return nil, fmt.Errorf("failed to connect to MQTT broker %q: %w", cfg.Broker, token.Error())
  }

  return NewMQTTNotifier(client, cfg.TopicPrefix, cfg.Retain), nil
}

func NewMQTTNotifier(client Publisher, prefix string, retain bool) *MQTTNotifier {
  if prefix == "" {
    prefix = DefaultMQTTTopicPrefix
  }

  return &MQTTNotifier{client: client, prefix: prefix, retain: retain}
}

func (m *MQTTNotifier) Topic(s *brewing.Session, a brewing.Alert) string {
  return fmt.Sprintf("%s/%s/alerts/%s", m.prefix, s.ID, a.Type)
}

func (m *MQTTNotifier) Notify(s *brewing.Session, a brewing.Alert) error {
  payload, err := json.Marshal(alertMessage{
    SessionID: s.ID,
    SessionName: s.Name,
    Type: a.Type,
    Message: a.Message,
    Timestamp: a.Timestamp,
    Gravity: s.CurrentGravity,
    Temperature: s.CurrentTemperature,
    Battery: s.CurrentBattery,
  })

  if err != nil {
    return fmt.Errorf("failed to encode %v: %w", a, err)
  }

  topic := m.Topic(s, a)
  token := m.client.Publish(topic, 1, m.retain, payload)

  if !token.WaitTimeout(publishTimeout) {
    return fmt.Errorf("timed out publishing %v to %q", a, topic)
  }

  if err := token.Error(); err != nil {
    return fmt.Errorf("failed to publish %v to %q: %w", a, topic, err)
  }

  log.Trace().Str("Topic", topic).Bytes("Payload", payload).Msg("notify: published alert")

  return nil
}
