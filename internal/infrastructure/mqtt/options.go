package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/maddox/harmony-api/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout also bounds subscribe and unsubscribe acknowledgements.
	defaultPublishTimeout = 5 * time.Second

	defaultDisconnectQuiesce = 1000 // milliseconds

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12

	// StatusOnline and StatusOffline are the retained payloads of the gateway status topic.
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// clientID returns the configured client ID with a random suffix so that
// several gateways can share a broker without kicking each other off.
func clientID(cfg config.MQTTConfig) string {
	base := cfg.Broker.ClientID
	if base == "" {
		base = "harmony-api"
	}
	return base + "-" + uuid.NewString()[:8]
}

// buildClientOptions creates paho options from the MQTT config section:
// broker URL (tcp:// or ssl://), credentials, auto-reconnect backoff and
// the Last Will on the gateway status topic.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(clientID(cfg))

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// Retained so subscribers arriving later still learn the gateway died.
	opts.SetWill(NewTopics(cfg.Namespace).Status(), StatusOffline, 1, true)

	return opts
}
