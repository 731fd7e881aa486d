package sensorflow

import (
	base "github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/pkg/sensorflow"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import the module root directly.
type (
	Config           = base.Config
	Policy           = base.Policy
	MQTTConfig       = base.MQTTConfig
	InfluxConfig     = base.InfluxConfig
	PostgresConfig   = base.PostgresConfig
	HTTPConfig       = base.HTTPConfig
	LogConfig        = base.LogConfig
	Runtime          = base.Runtime
	RuntimeOption    = base.RuntimeOption
	Reading          = base.Reading
	RawMessage       = base.RawMessage
	SensorType       = base.SensorType
	Room             = base.Room
	ReadingBatchSink = base.ReadingBatchSink
	Transport        = base.Transport
	MessageHandler   = base.MessageHandler
	Sink             = base.Sink
	QueryExecutor    = base.QueryExecutor
	RoomRepository   = base.RoomRepository
	MappingStore     = base.MappingStore
	SensorMapping    = base.SensorMapping
	ReadingQueue     = base.ReadingQueue
	ReadingListener  = base.ReadingListener
	Observability    = base.Observability
	Field            = base.Field
	Outcome          = base.Outcome
	Stats            = base.Stats
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithTransport(t Transport) RuntimeOption {
	return base.WithTransport(t)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithQueryExecutor(e QueryExecutor) RuntimeOption {
	return base.WithQueryExecutor(e)
}

func WithRoomRepository(r RoomRepository) RuntimeOption {
	return base.WithRoomRepository(r)
}

func WithMappingStore(m MappingStore) RuntimeOption {
	return base.WithMappingStore(m)
}

func WithReadingQueue(q ReadingQueue) RuntimeOption {
	return base.WithReadingQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithListener(l ReadingListener) RuntimeOption {
	return base.WithListener(l)
}

// Sink adapters.
func NewCallbackSink(name string, fn ReadingBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []Reading, func()) {
	return base.NewChannelSink(name, buffer)
}
