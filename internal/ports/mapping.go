package ports

import (
	"context"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
)

// MappingStore persists sensor-to-room assignments. A sensor is identified by
// (floor, sensorID) and has at most one room.
type MappingStore interface {
	ListMappings(ctx context.Context) ([]domain.SensorMapping, error)
	// SaveMapping replaces any previous assignment of the sensor.
	SaveMapping(ctx context.Context, m domain.SensorMapping) (domain.SensorMapping, error)
	// RemoveMapping returns domain.ErrMappingNotFound when the sensor has no room.
	RemoveMapping(ctx context.Context, floor, sensorID string) error
	RoomForSensor(ctx context.Context, floor, sensorID string) (int, error)
	SensorsForRoom(ctx context.Context, roomID int) ([]domain.SensorMapping, error)
}
