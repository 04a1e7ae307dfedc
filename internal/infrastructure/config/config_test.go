package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1884
    client_id: "test-client"
  qos: 1
  namespace: "living-room"
api:
  port: 9000
discovery:
  ping_interval: 2s
refresh:
  state: 3s
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.Namespace != "living-room" {
		t.Errorf("MQTT.Namespace = %q, want %q", cfg.MQTT.Namespace, "living-room")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Discovery.PingInterval != 2*time.Second {
		t.Errorf("Discovery.PingInterval = %v, want 2s", cfg.Discovery.PingInterval)
	}
	if cfg.Refresh.State != 3*time.Second {
		t.Errorf("Refresh.State = %v, want 3s", cfg.Refresh.State)
	}
	// Untouched values keep their defaults.
	if cfg.Refresh.Activities != time.Minute {
		t.Errorf("Refresh.Activities = %v, want 1m", cfg.Refresh.Activities)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.API.Port != 8282 {
		t.Errorf("API.Port = %d, want 8282", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
discovery:
  enabled: false
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error without discovery or hub_ip, got nil")
	}
	if !strings.Contains(err.Error(), "harmony.hub_ip") {
		t.Errorf("error = %v, want mention of harmony.hub_ip", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "wildcard namespace",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Namespace = "harmony/#"
			},
			wantErr: true,
		},
		{
			name: "empty namespace ignored when mqtt disabled",
			mutate: func(c *Config) {
				c.MQTT.Enabled = false
				c.MQTT.Namespace = ""
			},
			wantErr: false,
		},
		{
			name: "static hub without discovery",
			mutate: func(c *Config) {
				c.Discovery.Enabled = false
				c.Harmony.HubIP = "192.168.1.20"
			},
			wantErr: false,
		},
		{
			name:    "zero state interval",
			mutate:  func(c *Config) { c.Refresh.State = 0 },
			wantErr: true,
		},
		{
			name: "history without path",
			mutate: func(c *Config) {
				c.History.Enabled = true
				c.History.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "influxdb without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestEffectiveOfflineTimeout(t *testing.T) {
	d := DiscoveryConfig{PingInterval: 5 * time.Second}
	if got := d.EffectiveOfflineTimeout(); got != 15*time.Second {
		t.Errorf("EffectiveOfflineTimeout() = %v, want 15s", got)
	}

	d.OfflineTimeout = 42 * time.Second
	if got := d.EffectiveOfflineTimeout(); got != 42*time.Second {
		t.Errorf("EffectiveOfflineTimeout() = %v, want 42s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("HARMONY_API_MQTT_ENABLED", "true")
	t.Setenv("HARMONY_API_MQTT_HOST", "mqtt.example.com")
	t.Setenv("HARMONY_API_MQTT_USERNAME", "testuser")
	t.Setenv("HARMONY_API_MQTT_PASSWORD", "testpass")
	t.Setenv("HARMONY_API_MQTT_NAMESPACE", "remote")
	t.Setenv("HARMONY_API_HUB_IP", "10.0.0.5")
	t.Setenv("HARMONY_API_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("PORT", "9999")

	applyEnvOverrides(cfg)

	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.MQTT.Namespace != "remote" {
		t.Errorf("MQTT.Namespace = %q, want %q", cfg.MQTT.Namespace, "remote")
	}
	if cfg.Harmony.HubIP != "10.0.0.5" {
		t.Errorf("Harmony.HubIP = %q, want %q", cfg.Harmony.HubIP, "10.0.0.5")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999 from PORT", cfg.API.Port)
	}
}

func TestApplyEnvOverrides_APIPortWinsOverPORT(t *testing.T) {
	cfg := Default()
	t.Setenv("PORT", "9999")
	t.Setenv("HARMONY_API_API_PORT", "7000")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 7000 {
		t.Errorf("API.Port = %d, want 7000", cfg.API.Port)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.MQTT.Namespace != "harmony-api" {
		t.Errorf("MQTT.Namespace = %q, want harmony-api", cfg.MQTT.Namespace)
	}
	if cfg.Refresh.Activities != time.Minute || cfg.Refresh.Devices != time.Minute {
		t.Errorf("catalog refresh = %v/%v, want 1m/1m", cfg.Refresh.Activities, cfg.Refresh.Devices)
	}
	if cfg.Refresh.State != 5*time.Second {
		t.Errorf("Refresh.State = %v, want 5s", cfg.Refresh.State)
	}
	if cfg.Discovery.Port != 61991 {
		t.Errorf("Discovery.Port = %d, want 61991", cfg.Discovery.Port)
	}
}
