// Package thresholds holds the warning and danger bands per sensor type.
package thresholds

import (
	"errors"
	"fmt"
	"sync"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
)

var ErrUnknownType = errors.New("unknown sensor type")

// Defaults mirror the dashboard's comfort bands.
func Defaults() map[domain.SensorType]domain.Threshold {
	return map[domain.SensorType]domain.Threshold{
		domain.Temperature: {WarningLow: 15, WarningHigh: 25, DangerLow: 10, DangerHigh: 30},
		domain.Humidity:    {WarningLow: 30, WarningHigh: 60, DangerLow: 20, DangerHigh: 70},
		domain.CO2:         {WarningLow: 600, WarningHigh: 1000, DangerLow: 0, DangerHigh: 1200},
	}
}

type Store struct {
	mu     sync.RWMutex
	bounds map[domain.SensorType]domain.Threshold
}

// NewStore seeds the defaults and applies overrides keyed by sensor type name.
func NewStore(overrides map[string]domain.Threshold) (*Store, error) {
	s := &Store{bounds: Defaults()}
	for name, th := range overrides {
		typ, err := domain.ParseSensorType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownType, err)
		}
		if err := s.Set(typ, th); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) All() map[domain.SensorType]domain.Threshold {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.SensorType]domain.Threshold, len(s.bounds))
	for k, v := range s.bounds {
		out[k] = v
	}
	return out
}

func (s *Store) Get(typ domain.SensorType) (domain.Threshold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.bounds[typ]
	if !ok {
		return domain.Threshold{}, fmt.Errorf("%w %q", ErrUnknownType, typ)
	}
	return th, nil
}

func (s *Store) Set(typ domain.SensorType, th domain.Threshold) error {
	if _, err := domain.ParseSensorType(string(typ)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownType, err)
	}
	if err := th.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.bounds[typ] = th
	s.mu.Unlock()
	return nil
}

// Classify places value in a band. Bounds are inclusive on the safer side:
// a value equal to WarningHigh is still ok, equal to DangerHigh still a warning.
func (s *Store) Classify(typ domain.SensorType, value float64) domain.Level {
	th, err := s.Get(typ)
	if err != nil {
		return domain.LevelOK
	}
	switch {
	case value < th.DangerLow || value > th.DangerHigh:
		return domain.LevelDanger
	case value < th.WarningLow || value > th.WarningHigh:
		return domain.LevelWarning
	default:
		return domain.LevelOK
	}
}
