package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig writes a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// validYAML is a minimal configuration that passes validation.
const validYAML = `
mqtt:
  broker:
    host: "broker.example.net"
    port: 8883
    tls: true
    client_id: "skyrelay-test"
  auth:
    username: "relay"
    password: "hunter2"
lte:
  rx_port: 14550
  silence_timeout: 10
iridium:
  url: "https://rockblock.rock7.com/rockblock/MT"
  local_port: 8090
  silence_timeout: 600
  rockblock:
    imei: "300234010753370"
    username: "ops@example.net"
    password: "s3cret"
database:
  path: "/tmp/skyrelay-test.db"
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.example.net" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.example.net")
	}
	if !cfg.MQTT.Broker.TLS {
		t.Error("MQTT.Broker.TLS = false, want true")
	}
	if cfg.LTE.RxPort != 14550 {
		t.Errorf("LTE.RxPort = %d, want 14550", cfg.LTE.RxPort)
	}
	if cfg.Iridium.RockBlock.IMEI != "300234010753370" {
		t.Errorf("Iridium.RockBlock.IMEI = %q, want %q", cfg.Iridium.RockBlock.IMEI, "300234010753370")
	}

	// Defaults survive a file that does not mention them.
	if cfg.MQTT.QoS != 2 {
		t.Errorf("MQTT.QoS = %d, want default 2", cfg.MQTT.QoS)
	}
	if cfg.Iridium.Retry.InitialDelay != 10 {
		t.Errorf("Iridium.Retry.InitialDelay = %d, want default 10", cfg.Iridium.Retry.InitialDelay)
	}
	if cfg.Iridium.Retry.MaxAttempts != 6 {
		t.Errorf("Iridium.Retry.MaxAttempts = %d, want default 6", cfg.Iridium.Retry.MaxAttempts)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SKYRELAY_MQTT_PASSWORD", "from-env")
	t.Setenv("SKYRELAY_ROCKBLOCK_IMEI", "300234099999999")
	t.Setenv("SKYRELAY_DATABASE_PATH", "/tmp/env-override.db")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Auth.Password != "from-env" {
		t.Errorf("MQTT.Auth.Password = %q, want env override", cfg.MQTT.Auth.Password)
	}
	if cfg.Iridium.RockBlock.IMEI != "300234099999999" {
		t.Errorf("Iridium.RockBlock.IMEI = %q, want env override", cfg.Iridium.RockBlock.IMEI)
	}
	if cfg.Database.Path != "/tmp/env-override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

// validConfig returns a Config that passes validation; tests mutate one
// field at a time to exercise individual rules.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Iridium.RockBlock = RockBlockConfig{
		IMEI:     "300234010753370",
		Username: "ops@example.net",
		Password: "s3cret",
	}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "broker port out of range",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "missing client ID",
			mutate:  func(c *Config) { c.MQTT.Broker.ClientID = "" },
			wantErr: true,
		},
		{
			name:    "LTE port zero",
			mutate:  func(c *Config) { c.LTE.RxPort = 0 },
			wantErr: true,
		},
		{
			name:    "LTE silence timeout zero",
			mutate:  func(c *Config) { c.LTE.SilenceTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "missing Iridium URL",
			mutate:  func(c *Config) { c.Iridium.URL = "" },
			wantErr: true,
		},
		{
			name:    "missing RockBLOCK IMEI",
			mutate:  func(c *Config) { c.Iridium.RockBlock.IMEI = "" },
			wantErr: true,
		},
		{
			name:    "missing RockBLOCK username",
			mutate:  func(c *Config) { c.Iridium.RockBlock.Username = "" },
			wantErr: true,
		},
		{
			name:    "missing RockBLOCK password",
			mutate:  func(c *Config) { c.Iridium.RockBlock.Password = "" },
			wantErr: true,
		},
		{
			name:    "retry max delay below initial delay",
			mutate:  func(c *Config) { c.Iridium.Retry.MaxDelay = 1 },
			wantErr: true,
		},
		{
			name:    "retry max attempts zero",
			mutate:  func(c *Config) { c.Iridium.Retry.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := validConfig()
	cfg.LTE.SilenceTimeout = 10
	cfg.Iridium.SilenceTimeout = 600
	cfg.Iridium.Retry.InitialDelay = 10
	cfg.Iridium.Retry.MaxDelay = 160

	if got := cfg.LTE.GetSilenceTimeout(); got != 10*time.Second {
		t.Errorf("LTE.GetSilenceTimeout() = %v, want 10s", got)
	}
	if got := cfg.Iridium.GetSilenceTimeout(); got != 600*time.Second {
		t.Errorf("Iridium.GetSilenceTimeout() = %v, want 600s", got)
	}
	if got := cfg.Iridium.Retry.GetInitialDelay(); got != 10*time.Second {
		t.Errorf("Retry.GetInitialDelay() = %v, want 10s", got)
	}
	if got := cfg.Iridium.Retry.GetMaxDelay(); got != 160*time.Second {
		t.Errorf("Retry.GetMaxDelay() = %v, want 160s", got)
	}
}
