package sink

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
)

func TestInfluxSinkWriteBatch(t *testing.T) {
	w := &fakeWriter{}
	sink := NewInfluxSink(w, "", time.Second)
	ts := time.Unix(1700000000, 123)

	readings := []domain.Reading{
		{Floor: "eg", SensorID: "U08", Type: domain.Temperature, Value: 21.5, ObservedAt: ts},
		{Floor: "sensors", SensorID: "tupper_box_v1", Type: domain.Humidity, Value: 55.2, ObservedAt: ts},
	}
	if err := sink.WriteBatch(context.Background(), readings); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if len(w.points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(w.points))
	}
	lines := []string{
		"sensor_data,floor=eg,sensor=U08 temperature=21.5 1700000000000000123",
		"sensor_data,floor=sensors,sensor=tupper_box_v1 humidity=55.2 1700000000000000123",
	}
	for i, want := range lines {
		got := strings.TrimSpace(write.PointToLineProtocol(w.points[i], time.Nanosecond))
		if got != want {
			t.Fatalf("point %d: expected %q, got %q", i, want, got)
		}
	}
	if !w.hadDeadline {
		t.Fatalf("expected write to run under a deadline")
	}
}

func TestInfluxSinkWriteBatchNoReadings(t *testing.T) {
	w := &fakeWriter{}
	sink := NewInfluxSink(w, "sensor_data", 0)
	if err := sink.WriteBatch(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if w.calls != 0 {
		t.Fatalf("expected no store call, got %d", w.calls)
	}
}

func TestInfluxSinkWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("503 service unavailable")}
	sink := NewInfluxSink(w, "", time.Second)

	err := sink.WriteBatch(context.Background(), []domain.Reading{
		{Floor: "ug", SensorID: "U90", Type: domain.CO2, Value: 800},
	})
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if werr.Count != 1 || !errors.Is(err, w.err) {
		t.Fatalf("unexpected write error %+v", werr)
	}
}

func TestInfluxSinkRejectsIncompleteReading(t *testing.T) {
	w := &fakeWriter{}
	sink := NewInfluxSink(w, "", time.Second)
	err := sink.WriteBatch(context.Background(), []domain.Reading{{Floor: "eg", Type: domain.CO2}})
	if err == nil {
		t.Fatalf("expected error for reading without sensor")
	}
	if w.calls != 0 {
		t.Fatalf("expected no store call")
	}
}

func TestInfluxSinkStampsZeroTime(t *testing.T) {
	w := &fakeWriter{}
	sink := NewInfluxSink(w, "", time.Second)
	fixed := time.Unix(1700000100, 0)
	sink.now = func() time.Time { return fixed }

	if err := sink.WriteBatch(context.Background(), []domain.Reading{
		{Floor: "eg", SensorID: "U08", Type: domain.CO2, Value: 410},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !w.points[0].Time().Equal(fixed) {
		t.Fatalf("expected ingestion time %s, got %s", fixed, w.points[0].Time())
	}
}

func TestInfluxSinkName(t *testing.T) {
	sink := NewInfluxSink(&fakeWriter{}, "", 0)
	if sink.Name() != "influxdb" {
		t.Fatalf("expected sink name influxdb, got %s", sink.Name())
	}
}

type fakeWriter struct {
	points      []*write.Point
	calls       int
	err         error
	hadDeadline bool
}

func (f *fakeWriter) WritePoint(ctx context.Context, points ...*write.Point) error {
	f.calls++
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, points...)
	return nil
}
