package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the CEC proxy.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Topic   TopicConfig   `yaml:"topic"`
	Device  DeviceConfig  `yaml:"device"`
	CEC     CECConfig     `yaml:"cec"`
	Logging LoggingConfig `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker       MQTTBrokerConfig       `yaml:"broker"`
	Auth         MQTTAuthConfig         `yaml:"auth"`
	QoS          int                    `yaml:"qos"`
	KeepAlive    int                    `yaml:"keep_alive"`
	Reconnect    MQTTReconnectConfig    `yaml:"reconnect"`
	Availability MQTTAvailabilityConfig `yaml:"availability"`
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

// MQTTAvailabilityConfig controls the retained online/offline messages and
// the Last Will registered with the broker.
type MQTTAvailabilityConfig struct {
	Enabled bool `yaml:"enabled"`

	// Topic defaults to "{device.object_id or device.unique_id}/availability".
	Topic          string `yaml:"topic"`
	PayloadOnline  string `yaml:"payload_online"`
	PayloadOffline string `yaml:"payload_offline"`
}

// TopicConfig contains the Home Assistant discovery topic settings.
type TopicConfig struct {
	// Prefix is the discovery topic prefix. Home Assistant uses "homeassistant" by default.
	Prefix string `yaml:"prefix"`

	// Status is the topic Home Assistant publishes its birth ("online") and
	// will ("offline") messages to.
	Status string `yaml:"status"`
}

// DeviceConfig identifies the device all entities are grouped under.
type DeviceConfig struct {
	// UniqueID must be changed when running several proxies against one
	// Home Assistant instance.
	UniqueID string `yaml:"unique_id"`

	// ObjectID is used in topic names. Defaults to UniqueID when empty.
	ObjectID string `yaml:"object_id"`

	// Name is the device name shown in Home Assistant. Defaults to UniqueID when empty.
	Name string `yaml:"name"`
}

// CECConfig contains settings for the cec-client subprocess.
type CECConfig struct {
	Binary          string        `yaml:"binary"`
	Args            []string      `yaml:"args"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`

	// Sources lists HDMI inputs that get a "source_N" button.
	Sources []int `yaml:"sources"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CECPROXY_SECTION_KEY
// For example: CECPROXY_MQTT_HOST, CECPROXY_DEVICE_UNIQUE_ID
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

	cfg.resolveDerived()

	return cfg, nil
}

// defaultConfig returns a Config with every default applied.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hdmi-cec-proxy",
			},
			QoS:       1,
			KeepAlive: 5,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Availability: MQTTAvailabilityConfig{
				Enabled:        true,
				PayloadOnline:  "online",
				PayloadOffline: "offline",
			},
		},
		Topic: TopicConfig{
			Prefix: "homeassistant",
			Status: "homeassistant/status",
		},
		Device: DeviceConfig{
			UniqueID: "hdmi-device",
		},
		CEC: CECConfig{
			Binary:          "cec-client",
			Args:            []string{"-d", "1"},
			PollInterval:    10 * time.Second,
			GracefulTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CECPROXY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("CECPROXY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CECPROXY_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("CECPROXY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CECPROXY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Device
	if v := os.Getenv("CECPROXY_DEVICE_UNIQUE_ID"); v != "" {
		cfg.Device.UniqueID = v
	}

	// Logging
	if v := os.Getenv("CECPROXY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive < 0 {
		errs = append(errs, "mqtt.keep_alive must not be negative")
	}

	// Topic validation
	if c.Topic.Prefix == "" {
		errs = append(errs, "topic.prefix is required")
	}
	if c.Topic.Status == "" {
		errs = append(errs, "topic.status is required")
	}

	// Device validation. Topic segments must not contain MQTT separators or wildcards.
	if c.Device.UniqueID == "" {
		errs = append(errs, "device.unique_id is required")
	} else if strings.ContainsAny(c.Device.UniqueID, "/#+") {
		errs = append(errs, "device.unique_id must not contain '/', '#' or '+'")
	}
	if strings.ContainsAny(c.Device.ObjectID, "/#+") {
		errs = append(errs, "device.object_id must not contain '/', '#' or '+'")
	}

	// CEC validation
	if c.CEC.Binary == "" {
		errs = append(errs, "cec.binary is required")
	}
	if c.CEC.PollInterval < 0 {
		errs = append(errs, "cec.poll_interval must not be negative")
	}
	for _, src := range c.CEC.Sources {
		if src < 1 || src > 15 {
			errs = append(errs, fmt.Sprintf("cec.sources: %d is not between 1 and 15", src))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ObjectIDOrUniqueID returns the identifier used in topic names.
func (d DeviceConfig) ObjectIDOrUniqueID() string {
	if d.ObjectID != "" {
		return d.ObjectID
	}
	return d.UniqueID
}

// AvailabilityTopic returns the availability topic, or "" when availability
// is disabled.
func (c *Config) AvailabilityTopic() string {
	if !c.MQTT.Availability.Enabled {
		return ""
	}
	return c.MQTT.Availability.Topic
}

// resolveDerived fills values that default from other sections.
func (c *Config) resolveDerived() {
	if c.MQTT.Availability.Enabled && c.MQTT.Availability.Topic == "" {
		c.MQTT.Availability.Topic = c.Device.ObjectIDOrUniqueID() + "/availability"
	}
}

// GetKeepAlive returns the MQTT keep-alive interval as a Duration.
func (c *MQTTConfig) GetKeepAlive() time.Duration {
	return time.Duration(c.KeepAlive) * time.Second
}
