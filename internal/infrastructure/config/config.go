package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "HARMONY_API_"

// Config is the root configuration structure for harmony-api.
// Values come from defaults, then the YAML file, then environment variables.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Harmony   HarmonyConfig   `yaml:"harmony"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	History   HistoryConfig   `yaml:"history"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// Namespace prefixes every topic the gateway publishes or subscribes to.
	Namespace string `yaml:"namespace"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the browser event stream.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DiscoveryConfig controls how hubs are found on the local network.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Port is the local TCP port hubs connect back to.
	Port int `yaml:"port"`

	// PingInterval is how often the discovery broadcast is sent.
	PingInterval time.Duration `yaml:"ping_interval"`

	// OfflineTimeout is how long a hub may stay silent before it is reported offline.
	// Zero means three ping intervals.
	OfflineTimeout time.Duration `yaml:"offline_timeout"`

	// SingleHub stops discovery once the first hub session is established.
	SingleHub bool `yaml:"single_hub"`
}

// HarmonyConfig contains hub client settings.
type HarmonyConfig struct {
	// HubIP bypasses discovery and connects to a single hub at this address.
	HubIP string `yaml:"hub_ip"`

	// RequestTimeout bounds every hub RPC.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// RefreshConfig holds the per-hub cache refresh periods.
type RefreshConfig struct {
	Activities time.Duration `yaml:"activities"`
	Devices    time.Duration `yaml:"devices"`
	State      time.Duration `yaml:"state"`
}

// HistoryConfig contains settings for the SQLite transition log.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration and applies environment variable overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, when path is non-empty
//  3. A .env file in the working directory, if present
//  4. Environment variables (HARMONY_API_SECTION_KEY)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// A missing .env is the normal case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "harmony-api",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Namespace: "harmony-api",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8282,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  120,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Discovery: DiscoveryConfig{
			Enabled:      true,
			Port:         61991,
			PingInterval: 5 * time.Second,
		},
		Harmony: HarmonyConfig{
			RequestTimeout: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			Activities: time.Minute,
			Devices:    time.Minute,
			State:      5 * time.Second,
		},
		History: HistoryConfig{
			Enabled:     false,
			Path:        "./data/harmony-api.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v, ok := envBool("MQTT_ENABLED"); ok {
		cfg.MQTT.Enabled = v
	}
	if v := env("MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v, ok := envInt("MQTT_PORT"); ok {
		cfg.MQTT.Broker.Port = v
	}
	if v := env("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := env("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := env("MQTT_NAMESPACE"); v != "" {
		cfg.MQTT.Namespace = v
	}

	// API
	if v := env("API_HOST"); v != "" {
		cfg.API.Host = v
	}
	// PORT is honoured for compatibility with the original server.
	if v, ok := envInt("API_PORT"); ok {
		cfg.API.Port = v
	} else if p, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		cfg.API.Port = p
	}

	// Hubs
	if v := env("HUB_IP"); v != "" {
		cfg.Harmony.HubIP = v
	}
	if v, ok := envBool("DISCOVERY_ENABLED"); ok {
		cfg.Discovery.Enabled = v
	}

	// History / telemetry
	if v := env("HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := env("INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func env(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func envInt(key string) (int, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := env(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Namespace == "" {
			errs = append(errs, "mqtt.namespace cannot be empty")
		}
		if strings.ContainsAny(c.MQTT.Namespace, "+#") {
			errs = append(errs, "mqtt.namespace cannot contain wildcards")
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Discovery.Enabled && (c.Discovery.Port < 1 || c.Discovery.Port > 65535) {
		errs = append(errs, "discovery.port must be between 1 and 65535")
	}
	if c.Discovery.Enabled && c.Discovery.PingInterval <= 0 {
		errs = append(errs, "discovery.ping_interval must be positive")
	}
	if !c.Discovery.Enabled && c.Harmony.HubIP == "" {
		errs = append(errs, "harmony.hub_ip is required when discovery is disabled")
	}

	if c.Refresh.Activities <= 0 || c.Refresh.Devices <= 0 || c.Refresh.State <= 0 {
		errs = append(errs, "refresh intervals must be positive")
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// EffectiveOfflineTimeout returns the configured offline timeout, or three
// ping intervals when unset.
func (d DiscoveryConfig) EffectiveOfflineTimeout() time.Duration {
	if d.OfflineTimeout > 0 {
		return d.OfflineTimeout
	}
	return 3 * d.PingInterval
}
