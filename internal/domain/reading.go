package domain

import (
	"fmt"
	"strings"
	"time"
)

// SensorType is the closed set of measurements SensorFlow stores.
type SensorType string

const (
	Temperature SensorType = "temperature"
	Humidity    SensorType = "humidity"
	CO2         SensorType = "co2"
)

// SensorTypes lists every accepted sensor type in a stable order.
var SensorTypes = []SensorType{Temperature, Humidity, CO2}

// ParseSensorType accepts the canonical lower-case names only.
func ParseSensorType(s string) (SensorType, error) {
	switch t := SensorType(strings.ToLower(strings.TrimSpace(s))); t {
	case Temperature, Humidity, CO2:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported sensor type %q", s)
	}
}

// RawMessage is one inbound broker message before normalization.
type RawMessage struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Reading is a normalized measurement ready for storage.
type Reading struct {
	Floor      string     `json:"floor"`
	SensorID   string     `json:"sensor_id"`
	Type       SensorType `json:"type"`
	Value      float64    `json:"value"`
	ObservedAt time.Time  `json:"observed_at"`
}

// SensorValue is one (time, value) row of a value query.
type SensorValue struct {
	Time  time.Time `json:"timestamp"`
	Value float64   `json:"value"`
}

// SensorSeries is one (time, field, value) row of an all-values query.
type SensorSeries struct {
	Time  time.Time `json:"timestamp"`
	Field string    `json:"sensor_type"`
	Value float64   `json:"value"`
}
