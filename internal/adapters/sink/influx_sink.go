package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

// DefaultMeasurement is the measurement every reading is written to.
const DefaultMeasurement = "sensor_data"

// WriteError reports a batch the store did not accept. The batch is not retried.
type WriteError struct {
	Count int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %d reading(s): %v", e.Count, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// pointWriter is satisfied by api.WriteAPIBlocking.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type InfluxSink struct {
	writer      pointWriter
	measurement string
	timeout     time.Duration
	now         func() time.Time
}

func NewInfluxSink(writer pointWriter, measurement string, timeout time.Duration) *InfluxSink {
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InfluxSink{writer: writer, measurement: measurement, timeout: timeout, now: time.Now}
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) WriteBatch(ctx context.Context, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		if r.Floor == "" || r.SensorID == "" || r.Type == "" {
			return &WriteError{Count: len(readings), Err: errors.New("reading without floor, sensor or type")}
		}
		points = append(points, s.point(r))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return &WriteError{Count: len(readings), Err: err}
	}
	return nil
}

// point tags by floor and sensor; the field is named after the sensor type.
func (s *InfluxSink) point(r domain.Reading) *write.Point {
	ts := r.ObservedAt
	if ts.IsZero() {
		ts = s.now()
	}
	return write.NewPoint(
		s.measurement,
		map[string]string{"floor": r.Floor, "sensor": r.SensorID},
		map[string]interface{}{string(r.Type): r.Value},
		ts,
	)
}

var _ ports.Sink = (*InfluxSink)(nil)
