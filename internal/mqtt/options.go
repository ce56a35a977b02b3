package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/daemonp/bosch2mqtt/internal/config"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250

	offlinePayload = "offline"
	onlinePayload  = "online"
)

// ClientID returns the configured id, or bosch2mqtt plus a random suffix so
// that two instances never kick each other off the broker.
func ClientID(cfg *config.MQTTConfig) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return "bosch2mqtt_" + uuid.NewString()[:8]
}

func brokerURL(cfg *config.MQTTConfig) string {
	scheme := "tcp"
	if usesTLS(cfg) {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

func usesTLS(cfg *config.MQTTConfig) bool {
	return cfg.CA != "" || cfg.Cert != ""
}

func buildClientOptions(cfg *config.MQTTConfig, topics *Topics) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(ClientID(cfg))
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(cfg.Clean)
	opts.SetKeepAlive(time.Duration(cfg.Keepalive) * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(topics.Status(), offlinePayload, byte(cfg.QOS), true)

	if usesTLS(cfg) {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}
	return opts, nil
}

func newTLSConfig(cfg *config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !cfg.VerifyTLS(),
	}

	if cfg.CA != "" {
		pem, err := os.ReadFile(cfg.CA)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in MQTT CA %s", cfg.CA)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.Cert != "" || cfg.Key != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}
