package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SkyLink Relay.
// All configuration is loaded from YAML and can be overridden by environment
// variables. Credentials (MQTT and RockBLOCK) should come from the environment
// in production deployments.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	LTE      LTEConfig      `yaml:"lte"`
	Iridium  IridiumConfig  `yaml:"iridium"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// LTEConfig contains settings for the LTE UDP link.
type LTEConfig struct {
	// RxPort is the UDP port the relay listens on for aircraft datagrams.
	// The aircraft's address is learned from inbound traffic, so there is
	// no configured peer address.
	RxPort int `yaml:"rx_port"`

	// SilenceTimeout is how long (seconds) the link may be silent before
	// the learned aircraft address is considered stale and forgotten.
	SilenceTimeout int `yaml:"silence_timeout"`
}

// IridiumConfig contains settings for the Iridium satellite link.
type IridiumConfig struct {
	// URL is the Rock7 gateway endpoint for outbound (MT) deliveries.
	URL string `yaml:"url"`

	// LocalPort is the HTTP port the relay listens on for inbound (MO)
	// messages pushed by the Rock7 gateway.
	LocalPort int `yaml:"local_port"`

	// SilenceTimeout is how long (seconds) without an aircraft-originated
	// SatCom message before the retained ground-side queue is cleared.
	SilenceTimeout int `yaml:"silence_timeout"`

	RockBlock RockBlockConfig    `yaml:"rockblock"`
	Retry     IridiumRetryConfig `yaml:"retry"`
}

// RockBlockConfig contains the Rock7 account credentials merged into every
// outbound MT request.
type RockBlockConfig struct {
	IMEI     string `yaml:"imei"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IridiumRetryConfig contains MT delivery retry settings.
// Failed deliveries are retried with exponential backoff starting at
// InitialDelay seconds, doubling up to MaxDelay seconds, for at most
// MaxAttempts total attempts before the message is dead-lettered.
type IridiumRetryConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite database settings for the dead-letter store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SKYRELAY_SECTION_KEY
// For example: SKYRELAY_MQTT_PASSWORD, SKYRELAY_ROCKBLOCK_IMEI
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Credentials have no defaults; they must come from the file or environment.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "skyrelay",
			},
			QoS: 2,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		LTE: LTEConfig{
			RxPort:         14550,
			SilenceTimeout: 10,
		},
		Iridium: IridiumConfig{
			URL:            "https://rockblock.rock7.com/rockblock/MT",
			LocalPort:      8090,
			SilenceTimeout: 600,
			Retry: IridiumRetryConfig{
				InitialDelay: 10,
				MaxDelay:     160,
				MaxAttempts:  6,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/skyrelay.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SKYRELAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("SKYRELAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SKYRELAY_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SKYRELAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SKYRELAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// RockBLOCK credentials
	if v := os.Getenv("SKYRELAY_ROCKBLOCK_IMEI"); v != "" {
		cfg.Iridium.RockBlock.IMEI = v
	}
	if v := os.Getenv("SKYRELAY_ROCKBLOCK_USERNAME"); v != "" {
		cfg.Iridium.RockBlock.Username = v
	}
	if v := os.Getenv("SKYRELAY_ROCKBLOCK_PASSWORD"); v != "" {
		cfg.Iridium.RockBlock.Password = v
	}

	// Database
	if v := os.Getenv("SKYRELAY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate checks the configuration for errors.
//
// Any missing or malformed field is a fatal startup error: the relay refuses
// to run with a partial configuration because a misconfigured link would
// silently drop traffic.
//
// Returns:
//   - error: Description of all validation failures, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// LTE validation
	if c.LTE.RxPort < 1 || c.LTE.RxPort > 65535 {
		errs = append(errs, "lte.rx_port must be between 1 and 65535")
	}
	if c.LTE.SilenceTimeout < 1 {
		errs = append(errs, "lte.silence_timeout must be at least 1 second")
	}

	// Iridium validation
	if c.Iridium.URL == "" {
		errs = append(errs, "iridium.url is required")
	}
	if c.Iridium.LocalPort < 1 || c.Iridium.LocalPort > 65535 {
		errs = append(errs, "iridium.local_port must be between 1 and 65535")
	}
	if c.Iridium.SilenceTimeout < 1 {
		errs = append(errs, "iridium.silence_timeout must be at least 1 second")
	}
	if c.Iridium.RockBlock.IMEI == "" {
		errs = append(errs, "iridium.rockblock.imei is required (set SKYRELAY_ROCKBLOCK_IMEI environment variable)")
	}
	if c.Iridium.RockBlock.Username == "" {
		errs = append(errs, "iridium.rockblock.username is required (set SKYRELAY_ROCKBLOCK_USERNAME environment variable)")
	}
	if c.Iridium.RockBlock.Password == "" {
		errs = append(errs, "iridium.rockblock.password is required (set SKYRELAY_ROCKBLOCK_PASSWORD environment variable)")
	}
	if c.Iridium.Retry.InitialDelay < 1 {
		errs = append(errs, "iridium.retry.initial_delay must be at least 1 second")
	}
	if c.Iridium.Retry.MaxDelay < c.Iridium.Retry.InitialDelay {
		errs = append(errs, "iridium.retry.max_delay must not be less than initial_delay")
	}
	if c.Iridium.Retry.MaxAttempts < 1 {
		errs = append(errs, "iridium.retry.max_attempts must be at least 1")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetSilenceTimeout returns the LTE silence timeout as a Duration.
func (c LTEConfig) GetSilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeout) * time.Second
}

// GetSilenceTimeout returns the Iridium silence timeout as a Duration.
func (c IridiumConfig) GetSilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeout) * time.Second
}

// GetInitialDelay returns the first retry delay as a Duration.
func (c IridiumRetryConfig) GetInitialDelay() time.Duration {
	return time.Duration(c.InitialDelay) * time.Second
}

// GetMaxDelay returns the retry delay ceiling as a Duration.
func (c IridiumRetryConfig) GetMaxDelay() time.Duration {
	return time.Duration(c.MaxDelay) * time.Second
}
