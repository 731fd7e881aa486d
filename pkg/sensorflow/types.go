package sensorflow

import (
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/app/pipeline"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

// Reading is a normalized measurement as stored in the time-series database.
type Reading = domain.Reading

// RawMessage is one broker message before normalization.
type RawMessage = domain.RawMessage

// SensorType is temperature, humidity or co2.
type SensorType = domain.SensorType

// Transport delivers broker messages (MQTT by default).
type Transport = ports.Transport

// Sink persists batches of readings (InfluxDB by default).
type Sink = ports.Sink

// QueryExecutor runs Flux and returns the raw CSV answer.
type QueryExecutor = ports.QueryExecutor

// RoomRepository serves the building plan.
type RoomRepository = ports.RoomRepository

// ReadingQueue buffers readings in queued mode.
type ReadingQueue = ports.ReadingQueue

// ReadingListener observes every accepted reading.
type ReadingListener = ports.ReadingListener

// Observability emits metrics and structured logs.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Outcome reports what happened to one published message.
type Outcome = pipeline.Outcome

// Stats are cumulative pipeline counters.
type Stats = pipeline.Stats

// Room is one room of the building plan.
type Room = domain.Room

// MessageHandler receives every message delivered on a subscription.
type MessageHandler = ports.MessageHandler

// MappingStore persists sensor-to-room assignments (InfluxDB by default).
type MappingStore = ports.MappingStore

// SensorMapping assigns a sensor to a room.
type SensorMapping = domain.SensorMapping
