package mqttio

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/cyncbridge/cyncbridge/internal/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	maxQoS                   = 2
	tlsMinVersion            = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from bridge config.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelaySeconds) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelaySeconds) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	willTopic := Topics{}.SystemStatus()
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		clientID, time.Now().UTC().Format(time.RFC3339),
	)
	opts.SetWill(willTopic, willPayload, 1, true)
}

func buildOnlinePayload(clientID string) string {
	return fmt.Sprintf(`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID, time.Now().UTC().Format(time.RFC3339))
}

func buildOfflinePayload(clientID string) string {
	return fmt.Sprintf(`{"status":"offline","client_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
		clientID, time.Now().UTC().Format(time.RFC3339))
}

// resolveClientID returns configured when it is set and otherwise
// generates "cyncbridge-<uuid>", so two bridge processes left without a
// client id never collide on the broker with the same persistent id.
func resolveClientID(configured string) string {
	if configured != "" {
		return configured
	}
	return "cyncbridge-" + uuid.New().String()
}
