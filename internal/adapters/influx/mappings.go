package influx

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/app/query"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

const (
	DefaultMappingBucket      = "sensor_mappings"
	DefaultMappingMeasurement = "sensor_room_mapping"

	mappingSensorTag = "sensorId"
	mappingFloorTag  = "floor"
	mappingField     = "roomId"
)

// pointWriter is satisfied by api.WriteAPIBlocking.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// pointDeleter is satisfied by api.DeleteAPI.
type pointDeleter interface {
	DeleteWithName(ctx context.Context, orgName, bucketName string, start, stop time.Time, predicate string) error
}

type MappingConfig struct {
	Org         string
	Bucket      string
	Measurement string
	Timeout     time.Duration
}

// MappingStore keeps sensor-to-room assignments as points in their own bucket:
// tags sensorId and floor, integer field roomId. The latest point per sensor wins.
type MappingStore struct {
	cfg     MappingConfig
	writer  pointWriter
	deleter pointDeleter
	exec    ports.QueryExecutor
	obs     ports.Observability
	now     func() time.Time
}

func NewMappingStore(client influxdb2.Client, exec ports.QueryExecutor, cfg MappingConfig, obs ports.Observability) *MappingStore {
	cfg = mappingDefaults(cfg)
	return newMappingStore(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), client.DeleteAPI(), exec, cfg, obs)
}

func newMappingStore(w pointWriter, d pointDeleter, exec ports.QueryExecutor, cfg MappingConfig, obs ports.Observability) *MappingStore {
	return &MappingStore{cfg: mappingDefaults(cfg), writer: w, deleter: d, exec: exec, obs: obs, now: time.Now}
}

func mappingDefaults(cfg MappingConfig) MappingConfig {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultMappingBucket
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMappingMeasurement
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

// ListMappings returns the current assignment of every sensor, ordered by floor then sensor.
func (s *MappingStore) ListMappings(ctx context.Context) ([]domain.SensorMapping, error) {
	mappings, err := s.latest(ctx, nil)
	if err != nil {
		return []domain.SensorMapping{}, err
	}
	sort.Slice(mappings, func(i, j int) bool {
		if mappings[i].Floor != mappings[j].Floor {
			return mappings[i].Floor < mappings[j].Floor
		}
		return mappings[i].SensorID < mappings[j].SensorID
	})
	return mappings, nil
}

// SaveMapping deletes the sensor's previous points and writes the new assignment.
func (s *MappingStore) SaveMapping(ctx context.Context, m domain.SensorMapping) (domain.SensorMapping, error) {
	if err := m.Validate(); err != nil {
		return domain.SensorMapping{}, err
	}
	if err := s.delete(ctx, m.Floor, m.SensorID); err != nil {
		return domain.SensorMapping{}, err
	}

	m.Timestamp = s.now().UTC()
	p := write.NewPoint(
		s.cfg.Measurement,
		map[string]string{mappingSensorTag: m.SensorID, mappingFloorTag: m.Floor},
		map[string]interface{}{mappingField: int64(m.RoomID)},
		m.Timestamp,
	)
	wctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.writer.WritePoint(wctx, p); err != nil {
		return domain.SensorMapping{}, fmt.Errorf("write mapping %s/%s: %w", m.Floor, m.SensorID, err)
	}
	s.obs.LogInfo("mapping_saved",
		ports.Field{Key: "floor", Value: m.Floor},
		ports.Field{Key: "sensor", Value: m.SensorID},
		ports.Field{Key: "room", Value: m.RoomID})
	return m, nil
}

func (s *MappingStore) RemoveMapping(ctx context.Context, floor, sensorID string) error {
	if _, err := s.RoomForSensor(ctx, floor, sensorID); err != nil {
		return err
	}
	if err := s.delete(ctx, floor, sensorID); err != nil {
		return err
	}
	s.obs.LogInfo("mapping_removed",
		ports.Field{Key: "floor", Value: floor},
		ports.Field{Key: "sensor", Value: sensorID})
	return nil
}

func (s *MappingStore) RoomForSensor(ctx context.Context, floor, sensorID string) (int, error) {
	mappings, err := s.latest(ctx, []query.TagFilter{
		{Column: mappingSensorTag, Value: sensorID},
		{Column: mappingFloorTag, Value: floor},
	})
	if err != nil {
		return 0, err
	}
	if len(mappings) == 0 {
		return 0, fmt.Errorf("%w: %s/%s", domain.ErrMappingNotFound, floor, sensorID)
	}
	return mappings[0].RoomID, nil
}

// SensorsForRoom filters the current assignments, so a sensor moved to
// another room is not reported for its old one.
func (s *MappingStore) SensorsForRoom(ctx context.Context, roomID int) ([]domain.SensorMapping, error) {
	all, err := s.ListMappings(ctx)
	if err != nil {
		return []domain.SensorMapping{}, err
	}
	out := []domain.SensorMapping{}
	for _, m := range all {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MappingStore) latest(ctx context.Context, tags []query.TagFilter) ([]domain.SensorMapping, error) {
	q, err := query.Build(query.Spec{
		Bucket:      s.cfg.Bucket,
		Measurement: s.cfg.Measurement,
		Range:       query.RangeAll,
		Tags:        tags,
		Field:       mappingField,
		Group:       []string{mappingSensorTag, mappingFloorTag},
		Last:        true,
		Keep:        []string{"_time", "_value", mappingSensorTag, mappingFloorTag},
	})
	if err != nil {
		return nil, err
	}
	raw, err := s.exec.ExecuteQuery(ctx, q)
	if err != nil {
		s.obs.IncCounter("sensorflow_query_failures_total", 1)
		s.obs.LogError("mapping_query_failed", err, ports.Field{Key: "query", Value: q})
		return nil, fmt.Errorf("%w: %w", query.ErrQueryExecution, err)
	}
	mappings, rowErrs := query.ParseMappings(raw, mappingSensorTag, mappingFloorTag)
	if len(rowErrs) > 0 {
		s.obs.IncCounter("sensorflow_query_rows_skipped_total", float64(len(rowErrs)))
		for _, e := range rowErrs {
			s.obs.LogError("mapping_row_skipped", e, ports.Field{Key: "line", Value: e.Line})
		}
	}
	return mappings, nil
}

func (s *MappingStore) delete(ctx context.Context, floor, sensorID string) error {
	predicate := fmt.Sprintf(`_measurement=%s AND %s=%s AND %s=%s`,
		quote(s.cfg.Measurement), mappingSensorTag, quote(sensorID), mappingFloorTag, quote(floor))
	dctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.deleter.DeleteWithName(dctx, s.cfg.Org, s.cfg.Bucket, time.Unix(0, 0).UTC(), s.now().UTC(), predicate); err != nil {
		return fmt.Errorf("delete mapping %s/%s: %w", floor, sensorID, err)
	}
	return nil
}

var predicateEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quote renders v as a delete-predicate string literal.
func quote(v string) string {
	return `"` + predicateEscaper.Replace(v) + `"`
}

var _ ports.MappingStore = (*MappingStore)(nil)
