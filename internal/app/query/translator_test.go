package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

func TestTranslatorFloorsDefaultsRange(t *testing.T) {
	exec := &fakeExecutor{response: ",result,table,_value\n,_result,0,eg\n,_result,0,ug\n"}
	tr := newTestTranslator(t, exec, &recordingObs{})

	floors, err := tr.Floors(context.Background(), "")
	if err != nil {
		t.Fatalf("floors: %v", err)
	}
	if len(floors) != 2 || floors[0] != "eg" || floors[1] != "ug" {
		t.Fatalf("unexpected floors %v", floors)
	}
	if !strings.Contains(exec.last(), "range(start: -30d)") {
		t.Fatalf("expected default enumeration range, got %s", exec.last())
	}
}

func TestTranslatorValuesDefaultsRangeAndSorts(t *testing.T) {
	exec := &fakeExecutor{response: ",result,table,_time,_value\n" +
		",_result,0,2025-03-01T12:05:00Z,22\n" +
		",_result,0,2025-03-01T12:00:00Z,21\n" +
		",_result,0,2025-03-01T12:05:00Z,23\n"}
	tr := newTestTranslator(t, exec, &recordingObs{})

	values, err := tr.Values(context.Background(), "eg", "U08", "temperature", "")
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if len(values) != 3 || values[0].Value != 21 || values[1].Value != 22 || values[2].Value != 23 {
		t.Fatalf("expected stable time order, got %+v", values)
	}
	q := exec.last()
	if !strings.Contains(q, "range(start: -6h)") || !strings.Contains(q, `r["_field"] == "temperature"`) {
		t.Fatalf("unexpected query %s", q)
	}
}

func TestTranslatorCountsSkippedRows(t *testing.T) {
	exec := &fakeExecutor{response: ",result,table,_time,_field,_value\n" +
		",_result,0,2025-03-01T12:00:00Z,co2,800\n" +
		",_result,0,2025-03-01T12:00:00Z,co2,high\n"}
	obs := &recordingObs{}
	tr := newTestTranslator(t, exec, obs)

	series, err := tr.AllValues(context.Background(), "eg", "U08", "-1h")
	if err != nil {
		t.Fatalf("all values: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("expected 1 row, got %+v", series)
	}
	if obs.counter("sensorflow_query_rows_skipped_total") != 1 {
		t.Fatalf("expected skipped row to be counted")
	}
}

func TestTranslatorExecutionFailure(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("connection refused")}
	obs := &recordingObs{}
	tr := newTestTranslator(t, exec, obs)

	sensors, err := tr.Sensors(context.Background(), "eg", "")
	if !errors.Is(err, ErrQueryExecution) || !errors.Is(err, exec.err) {
		t.Fatalf("expected wrapped execution error, got %v", err)
	}
	if sensors == nil || len(sensors) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", sensors)
	}
	if obs.counter("sensorflow_query_failures_total") != 1 {
		t.Fatalf("expected failure to be counted")
	}
}

func TestTranslatorInvalidRangeSkipsStore(t *testing.T) {
	exec := &fakeExecutor{}
	tr := newTestTranslator(t, exec, &recordingObs{})

	values, err := tr.Values(context.Background(), "eg", "U08", "co2", "-6h) |> yield(")
	if !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
	if values == nil || len(values) != 0 {
		t.Fatalf("expected empty non-nil slice")
	}
	if len(exec.queries) != 0 {
		t.Fatalf("expected no store call, got %v", exec.queries)
	}
}

func TestTranslatorEmptyResponse(t *testing.T) {
	tr := newTestTranslator(t, &fakeExecutor{}, &recordingObs{})
	fields, err := tr.Fields(context.Background(), "eg", "U08", "")
	if err != nil || fields == nil || len(fields) != 0 {
		t.Fatalf("expected empty result, got %v %v", fields, err)
	}
}

func TestTranslatorUsesConfiguredBucket(t *testing.T) {
	exec := &fakeExecutor{}
	tr, err := NewTranslator(Config{Bucket: "building-a"}, exec, &recordingObs{})
	if err != nil {
		t.Fatalf("new translator: %v", err)
	}
	_, _ = tr.Floors(context.Background(), "")
	if !strings.HasPrefix(exec.last(), `from(bucket: "building-a")`) {
		t.Fatalf("unexpected query %s", exec.last())
	}
}

func newTestTranslator(t *testing.T, exec ports.QueryExecutor, obs ports.Observability) *Translator {
	t.Helper()
	tr, err := NewTranslator(Config{}, exec, obs)
	if err != nil {
		t.Fatalf("new translator: %v", err)
	}
	return tr
}

type fakeExecutor struct {
	mu       sync.Mutex
	response string
	err      error
	queries  []string
}

func (f *fakeExecutor) ExecuteQuery(_ context.Context, q string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.response, f.err
}

func (f *fakeExecutor) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

type recordingObs struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (o *recordingObs) counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

func (o *recordingObs) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counters == nil {
		o.counters = make(map[string]float64)
	}
	o.counters[name] += v
}

func (o *recordingObs) LogInfo(string, ...ports.Field)                  {}
func (o *recordingObs) LogError(string, error, ...ports.Field)          {}
func (o *recordingObs) LogCritical(string, error, ...ports.Field)       {}
func (o *recordingObs) ObserveLatency(string, float64)                  {}
func (o *recordingObs) SetGauge(string, float64)                        {}
func (o *recordingObs) RecordRejected(domain.RawMessage, string, error) {}
