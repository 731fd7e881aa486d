package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

var ErrQueryExecution = errors.New("query execution failed")

type Config struct {
	Bucket      string
	Measurement string
}

// Translator answers dashboard lookups through a QueryExecutor.
// Every method returns a non-nil slice, empty when nothing matched or the query failed.
type Translator struct {
	cfg  Config
	exec ports.QueryExecutor
	obs  ports.Observability
}

func NewTranslator(cfg Config, exec ports.QueryExecutor, obs ports.Observability) (*Translator, error) {
	if exec == nil {
		return nil, fmt.Errorf("query executor is required")
	}
	if obs == nil {
		return nil, fmt.Errorf("observability is required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	return &Translator{cfg: cfg, exec: exec, obs: obs}, nil
}

func (t *Translator) Floors(ctx context.Context, timeRange string) ([]string, error) {
	return t.distinct(ctx, Spec{
		Range:    orDefault(timeRange, DefaultEnumerationRange),
		Exists:   []string{"floor"},
		Keep:     []string{"floor"},
		Distinct: "floor",
	})
}

func (t *Translator) Sensors(ctx context.Context, floor, timeRange string) ([]string, error) {
	return t.distinct(ctx, Spec{
		Range:    orDefault(timeRange, DefaultEnumerationRange),
		Tags:     []TagFilter{{Column: "floor", Value: floor}},
		Keep:     []string{"sensor"},
		Distinct: "sensor",
	})
}

func (t *Translator) Fields(ctx context.Context, floor, sensor, timeRange string) ([]string, error) {
	return t.distinct(ctx, Spec{
		Measurement: t.cfg.Measurement,
		Range:       orDefault(timeRange, DefaultEnumerationRange),
		Tags:        []TagFilter{{Column: "floor", Value: floor}, {Column: "sensor", Value: sensor}},
		Keep:        []string{colField},
		Distinct:    colField,
	})
}

func (t *Translator) Values(ctx context.Context, floor, sensor, field, timeRange string) ([]domain.SensorValue, error) {
	raw, err := t.run(ctx, Spec{
		Measurement: t.cfg.Measurement,
		Range:       orDefault(timeRange, DefaultValueRange),
		Tags:        []TagFilter{{Column: "floor", Value: floor}, {Column: "sensor", Value: sensor}},
		Field:       field,
		Keep:        []string{colTime, colValue},
	})
	if err != nil {
		return []domain.SensorValue{}, err
	}
	values, rowErrs := ParseValues(raw)
	t.reportRows(rowErrs)
	sort.SliceStable(values, func(i, j int) bool { return values[i].Time.Before(values[j].Time) })
	return values, nil
}

func (t *Translator) AllValues(ctx context.Context, floor, sensor, timeRange string) ([]domain.SensorSeries, error) {
	raw, err := t.run(ctx, Spec{
		Measurement: t.cfg.Measurement,
		Range:       orDefault(timeRange, DefaultValueRange),
		Tags:        []TagFilter{{Column: "floor", Value: floor}, {Column: "sensor", Value: sensor}},
		Keep:        []string{colTime, colField, colValue},
	})
	if err != nil {
		return []domain.SensorSeries{}, err
	}
	series, rowErrs := ParseSeries(raw)
	t.reportRows(rowErrs)
	sort.SliceStable(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	return series, nil
}

func (t *Translator) distinct(ctx context.Context, s Spec) ([]string, error) {
	raw, err := t.run(ctx, s)
	if err != nil {
		return []string{}, err
	}
	values, rowErrs := ParseDistinct(raw, s.Distinct)
	t.reportRows(rowErrs)
	return values, nil
}

// run builds and executes s. Invalid ranges are returned unwrapped; store
// failures are logged, counted and wrapped in ErrQueryExecution.
func (t *Translator) run(ctx context.Context, s Spec) (string, error) {
	s.Bucket = t.cfg.Bucket
	q, err := Build(s)
	if err != nil {
		return "", err
	}

	start := time.Now()
	raw, err := t.exec.ExecuteQuery(ctx, q)
	t.obs.ObserveLatency("sensorflow_query_latency_seconds", time.Since(start).Seconds())
	if err != nil {
		t.obs.IncCounter("sensorflow_query_failures_total", 1)
		t.obs.LogError("query_failed", err, ports.Field{Key: "query", Value: q})
		return "", fmt.Errorf("%w: %w", ErrQueryExecution, err)
	}
	return raw, nil
}

func (t *Translator) reportRows(errs []RowError) {
	if len(errs) == 0 {
		return
	}
	t.obs.IncCounter("sensorflow_query_rows_skipped_total", float64(len(errs)))
	for _, e := range errs {
		t.obs.LogError("query_row_skipped", e, ports.Field{Key: "line", Value: e.Line})
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
