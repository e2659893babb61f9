// Package config loads the bridge's YAML configuration file, applying
// CYNCBRIDGE_* environment variable overrides and validation the same
// way the project's other services do it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the bridge process.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	EventLog EventLogConfig `yaml:"event_log"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Devices  DevicesConfig  `yaml:"devices"`
	Security SecurityConfig `yaml:"security"`
}

// SiteConfig identifies the installation this bridge process serves.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// BridgeConfig controls the TLS listener bridge devices dial into.
type BridgeConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	CertFile    string `yaml:"cert_file"`
	KeyFile     string `yaml:"key_file"`
	MeshRefresh bool   `yaml:"mesh_refresh_enabled"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Discovery DiscoveryConfig     `yaml:"discovery"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelaySeconds int `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int `yaml:"max_delay_seconds"`
}

// DiscoveryConfig controls Home Assistant MQTT discovery publication.
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

// APIConfig contains the diagnostics HTTP API server settings. The API
// is ambient tooling around the core bridge, off by default, and
// expected to bind to loopback when enabled.
type APIConfig struct {
	Enabled bool      `yaml:"enabled"`
	Host    string    `yaml:"host"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS certificate settings for the diagnostics API.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// EventLogConfig contains the append-only SQLite event log settings.
type EventLogConfig struct {
	Path        string `yaml:"path"`
	RetainDays  int    `yaml:"retain_days"`
	BusyTimeout int    `yaml:"busy_timeout_ms"`
}

// InfluxDBConfig contains optional InfluxDB metrics sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	FlushInterval int    `yaml:"flush_interval_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DevicesConfig describes where device/group definitions come from and
// the Kelvin range used for temperature conversion.
type DevicesConfig struct {
	ConfigFile  string `yaml:"config_file"`
	KelvinMin   int    `yaml:"kelvin_min"`
	KelvinMax   int    `yaml:"kelvin_max"`
	FanAsDimmer bool   `yaml:"fan_as_dimmer"`
}

// SecurityConfig contains diagnostics-API authentication settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings for the diagnostics API.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl_minutes"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern CYNCBRIDGE_SECTION_KEY, e.g.
// CYNCBRIDGE_MQTT_HOST, CYNCBRIDGE_BRIDGE_PORT.
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

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{ID: "site-001", Name: "cync-bridge"},
		Bridge: BridgeConfig{
			Host:        "0.0.0.0",
			Port:        23779,
			MeshRefresh: true,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{Host: "localhost", Port: 1883},
			QoS:    1,
			Reconnect: MQTTReconnectConfig{
				InitialDelaySeconds: 1,
				MaxDelaySeconds:     60,
			},
			Discovery: DiscoveryConfig{Enabled: true, Prefix: "homeassistant"},
		},
		API: APIConfig{Enabled: false, Host: "127.0.0.1", Port: 8443},
		EventLog: EventLogConfig{
			Path:        "./data/cyncbridge.db",
			RetainDays:  30,
			BusyTimeout: 5000,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Devices: DevicesConfig{
			ConfigFile: "./devices.yaml",
			KelvinMin:  2000,
			KelvinMax:  7000,
		},
		Security: SecurityConfig{JWT: JWTConfig{AccessTokenTTL: 15}},
	}
}

// applyEnvOverrides applies CYNCBRIDGE_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CYNCBRIDGE_BRIDGE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.Port = n
		}
	}
	if v := os.Getenv("CYNCBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CYNCBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CYNCBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("CYNCBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CYNCBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("CYNCBRIDGE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		errs = append(errs, "bridge.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Devices.KelvinMin >= c.Devices.KelvinMax {
		errs = append(errs, "devices.kelvin_min must be less than devices.kelvin_max")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set CYNCBRIDGE_JWT_SECRET)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ReconnectInitialDelay returns the MQTT reconnect initial delay as a Duration.
func (c *Config) ReconnectInitialDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.InitialDelaySeconds) * time.Second
}

// ReconnectMaxDelay returns the MQTT reconnect max delay as a Duration.
func (c *Config) ReconnectMaxDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.MaxDelaySeconds) * time.Second
}
