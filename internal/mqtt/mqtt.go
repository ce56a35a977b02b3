package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/daemonp/bosch2mqtt/internal/config"
	"github.com/daemonp/bosch2mqtt/internal/log"
)

var ErrNotConnected = errors.New("mqtt: not connected")

// MessageHandler receives messages for one subscription.
type MessageHandler func(topic string, payload []byte)

type MQTT struct {
	config *config.MQTTConfig
	log    *log.Logger
	topics *Topics
	client paho.Client

	mu        sync.Mutex
	subs      map[string]MessageHandler
	onConnect []func()
}

func NewMQTT(cfg *config.MQTTConfig, logger *log.Logger) *MQTT {
	return &MQTT{
		config: cfg,
		log:    logger,
		topics: NewTopics(cfg.Prefix),
		subs:   make(map[string]MessageHandler),
	}
}

func (m *MQTT) Topics() *Topics {
	return m.topics
}

// Retain reports whether state messages should be published retained.
func (m *MQTT) Retain() bool {
	return m.config.RetainState()
}

// OnConnect registers fn to run after every (re)connect, once the
// subscriptions are restored. Retained discovery is republished from here
// so a broker that lost its state catches up.
func (m *MQTT) OnConnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = append(m.onConnect, fn)
}

// Connect starts the client. If the broker is not reachable within the
// connect timeout the client keeps retrying in the background and Connect
// returns nil; a configuration error is returned immediately.
func (m *MQTT) Connect() error {
	opts, err := buildClientOptions(m.config, m.topics)
	if err != nil {
		return err
	}
	opts.SetOnConnectHandler(m.handleConnect)
	opts.SetConnectionLostHandler(m.handleConnectionLost)

	m.client = paho.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		m.log.Warn("MQTT broker %s:%d not reachable yet, retrying in background", m.config.Host, m.config.Port)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	m.log.Info("Connected to MQTT broker: %s:%d", m.config.Host, m.config.Port)
	return nil
}

func (m *MQTT) handleConnect(client paho.Client) {
	m.log.Info("MQTT connection established")

	m.mu.Lock()
	subs := make(map[string]MessageHandler, len(m.subs))
	for topic, h := range m.subs {
		subs[topic] = h
	}
	callbacks := append([]func(){}, m.onConnect...)
	m.mu.Unlock()

	for topic, h := range subs {
		m.subscribe(topic, h)
	}
	m.publish(m.topics.Status(), onlinePayload, true)
	for _, fn := range callbacks {
		fn()
	}
}

func (m *MQTT) handleConnectionLost(client paho.Client, err error) {
	m.log.Error("MQTT connection lost: %v", err)
}

// Subscribe registers h for topic. The subscription is made now if
// connected and restored after every reconnect.
func (m *MQTT) Subscribe(topic string, h MessageHandler) error {
	m.mu.Lock()
	m.subs[topic] = h
	m.mu.Unlock()

	if m.client == nil || !m.client.IsConnectionOpen() {
		return nil
	}
	return m.subscribe(topic, h)
}

func (m *MQTT) subscribe(topic string, h MessageHandler) error {
	token := m.client.Subscribe(topic, byte(m.config.QOS), func(_ paho.Client, msg paho.Message) {
		m.log.Debug("Received message on topic %s: %s", msg.Topic(), msg.Payload())
		h(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		m.log.Error("Timed out subscribing to topic %s", topic)
		return fmt.Errorf("subscribing to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		m.log.Error("Failed to subscribe to topic %s: %v", topic, err)
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	m.log.Debug("Subscribed to topic: %s", topic)
	return nil
}

// Publish sends payload to topic. Strings and byte slices go out as is,
// anything else as JSON.
func (m *MQTT) Publish(topic string, payload interface{}, retain bool) error {
	if m.client == nil || !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return m.publish(topic, payload, retain)
}

func (m *MQTT) publish(topic string, message interface{}, retain bool) error {
	var payload []byte
	switch v := message.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			m.log.Error("Failed to marshal message for topic %s: %v", topic, err)
			return fmt.Errorf("marshalling payload for %s: %w", topic, err)
		}
		payload = data
	}

	token := m.client.Publish(topic, byte(m.config.QOS), retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		m.log.Error("Timed out publishing to topic %s", topic)
		return fmt.Errorf("publishing to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		m.log.Error("Failed to publish message to topic %s: %v", topic, err)
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	m.log.Trace("Published message to topic: %s", topic)
	return nil
}

func (m *MQTT) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.publish(m.topics.Status(), offlinePayload, true)
		m.client.Disconnect(disconnectQuiesce)
	}
}
