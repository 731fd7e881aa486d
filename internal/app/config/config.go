package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

type Config struct {
	MQTT           MQTTConfig                  `yaml:"mqtt"`
	Influx         InfluxConfig                `yaml:"influx"`
	Postgres       PostgresConfig              `yaml:"postgres"`
	HTTP           HTTPConfig                  `yaml:"http"`
	Policy         ports.Policy                `yaml:"policy"`
	Log            LogConfig                   `yaml:"log"`
	Thresholds     map[string]domain.Threshold `yaml:"thresholds"`
	DeviceFamilies []string                    `yaml:"device_families"`
}

type MQTTConfig struct {
	BrokerURL         string        `yaml:"broker_url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	ClientID          string        `yaml:"client_id"`
	QoS               byte          `yaml:"qos"`
	Topics            []string      `yaml:"topics"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	SubscribeAttempts int           `yaml:"subscribe_attempts"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	KeepAlive         time.Duration `yaml:"keep_alive"`
}

type InfluxConfig struct {
	URL         string        `yaml:"url"`
	Token       string        `yaml:"token"`
	Org         string        `yaml:"org"`
	Bucket      string        `yaml:"bucket"`
	Measurement string        `yaml:"measurement"`
	Timeout     time.Duration `yaml:"timeout"`
	// MappingBucket holds sensor-to-room assignments.
	MappingBucket string `yaml:"mapping_bucket"`
}

// PostgresConfig enables the rooms API when ConnString is set.
type PostgresConfig struct {
	ConnString string `yaml:"conn_string"`
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML file. ${VAR} references are expanded from the environment
// before parsing so secrets can stay out of the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MQTT.BrokerURL == "" {
		c.MQTT.BrokerURL = "ssl://mqtt.htl-leonding.ac.at:8883"
	}
	if c.MQTT.RetryInterval == 0 {
		c.MQTT.RetryInterval = 5 * time.Second
	}
	if c.MQTT.SubscribeAttempts == 0 {
		c.MQTT.SubscribeAttempts = 3
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = 10 * time.Second
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = 30 * time.Second
	}
	if c.Influx.URL == "" {
		c.Influx.URL = "http://127.0.0.1:8086"
	}
	if c.Influx.Org == "" {
		c.Influx.Org = "sensor_org"
	}
	if c.Influx.Bucket == "" {
		c.Influx.Bucket = "sensor-data"
	}
	if c.Influx.Measurement == "" {
		c.Influx.Measurement = "sensor_data"
	}
	if c.Influx.MappingBucket == "" {
		c.Influx.MappingBucket = "sensor_mappings"
	}
	if c.Influx.Timeout == 0 {
		c.Influx.Timeout = 10 * time.Second
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.Policy.Mode == "" {
		c.Policy.Mode = "direct"
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.WriteTimeout == 0 {
		c.Policy.WriteTimeout = c.Influx.Timeout
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if c.MQTT.RetryInterval < 0 || c.MQTT.SubscribeAttempts < 0 {
		return fmt.Errorf("mqtt retry settings must not be negative")
	}
	if c.Influx.Token == "" {
		return fmt.Errorf("influx.token is required")
	}
	switch c.Policy.Mode {
	case "direct", "queued":
	default:
		return fmt.Errorf("policy.mode must be direct or queued, got %q", c.Policy.Mode)
	}
	switch c.Policy.OnQueueFull {
	case "block", "drop":
	default:
		return fmt.Errorf("policy.on_queue_full must be block or drop, got %q", c.Policy.OnQueueFull)
	}
	if c.Policy.MaxQueueLen < 0 || c.Policy.MaxBatchSize < 0 {
		return fmt.Errorf("policy sizes must not be negative")
	}
	for name, th := range c.Thresholds {
		if _, err := domain.ParseSensorType(name); err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		if err := th.Validate(); err != nil {
			return fmt.Errorf("thresholds.%s: %w", name, err)
		}
	}
	return nil
}
