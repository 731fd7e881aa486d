package domain

import (
	"errors"
	"fmt"
)

var ErrRoomNotFound = errors.New("room not found")

// Room is a physical room of the building plan. Neighbour references are room IDs.
type Room struct {
	ID                 int    `json:"roomId"`
	Label              string `json:"roomLabel,omitempty"`
	Name               string `json:"roomName"`
	Type               string `json:"roomType"`
	CorridorID         *int   `json:"corridorId,omitempty"`
	NeighbourInsideID  *int   `json:"neighbourInsideId,omitempty"`
	NeighbourOutsideID *int   `json:"neighbourOutsideId,omitempty"`
	Direction          string `json:"direction,omitempty"`
}

// Threshold bounds for one sensor type.
type Threshold struct {
	WarningLow  float64 `json:"warningLow" yaml:"warning_low"`
	WarningHigh float64 `json:"warningHigh" yaml:"warning_high"`
	DangerLow   float64 `json:"dangerLow" yaml:"danger_low"`
	DangerHigh  float64 `json:"dangerHigh" yaml:"danger_high"`
}

// Validate checks DangerLow <= WarningLow <= WarningHigh <= DangerHigh.
func (t Threshold) Validate() error {
	if t.DangerLow > t.WarningLow || t.WarningLow > t.WarningHigh || t.WarningHigh > t.DangerHigh {
		return fmt.Errorf("threshold bounds out of order: danger_low=%g warning_low=%g warning_high=%g danger_high=%g",
			t.DangerLow, t.WarningLow, t.WarningHigh, t.DangerHigh)
	}
	return nil
}

// Level is the classification of a value against a Threshold.
type Level string

const (
	LevelOK      Level = "ok"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)
