package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMappingNotFound = errors.New("sensor mapping not found")
	ErrInvalidMapping  = errors.New("invalid sensor mapping")
)

// SensorMapping assigns one sensor of a floor to a room of the building plan.
type SensorMapping struct {
	SensorID  string    `json:"sensorId"`
	Floor     string    `json:"floor"`
	RoomID    int       `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

func (m SensorMapping) Validate() error {
	if m.SensorID == "" || m.Floor == "" {
		return fmt.Errorf("%w: sensorId and floor are required", ErrInvalidMapping)
	}
	if m.RoomID < 0 {
		return fmt.Errorf("%w: roomId %d is negative", ErrInvalidMapping, m.RoomID)
	}
	return nil
}
