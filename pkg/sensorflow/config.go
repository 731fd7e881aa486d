package sensorflow

import (
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/app/config"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy selects direct or queued writes and the queue limits.
	Policy = ports.Policy
	// MQTTConfig holds broker connection and subscription settings.
	MQTTConfig = config.MQTTConfig
	// InfluxConfig configures the time-series store.
	InfluxConfig = config.InfluxConfig
	// PostgresConfig enables the rooms API.
	PostgresConfig = config.PostgresConfig
	// HTTPConfig configures the REST/metrics/live server.
	HTTPConfig = config.HTTPConfig
	// LogConfig sets the log level.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig parses YAML held in memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}
