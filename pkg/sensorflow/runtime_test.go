package sensorflow

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(`
influx:
  token: test
http:
  addr: 127.0.0.1:0
mqtt:
  retry_interval: 10ms
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestNewRuntimeWithCustomAdapters(t *testing.T) {
	tr := newStubTransport()
	sinkStub := &stubSink{}
	exec := &stubExecutor{}
	rooms := &stubRooms{}
	obs := &stubObservability{}

	rt, err := NewRuntime(testConfig(t),
		WithTransport(tr),
		WithSink(sinkStub),
		WithQueryExecutor(exec),
		WithRoomRepository(rooms),
		WithMappingStore(&stubMappings{}),
		WithObservability(obs),
	)
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	if rt.obs != obs {
		t.Fatalf("expected custom observability to be used")
	}
	if rt.influx != nil || rt.db != nil {
		t.Fatalf("expected no store clients when adapters are injected")
	}
}

func TestRuntimeDeliversBrokerMessagesToSink(t *testing.T) {
	tr := newStubTransport()
	sinkStub := &stubSink{}
	rt, err := NewRuntime(testConfig(t),
		WithTransport(tr),
		WithSink(sinkStub),
		WithQueryExecutor(&stubExecutor{}),
		WithObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rt.Shutdown(context.Background())

	waitFor(t, func() bool { return tr.subscribed("eg/#") })
	tr.deliver("eg/#", RawMessage{Topic: "eg/U08/temp", Payload: []byte(`{"value": 21.5}`), ReceivedAt: time.Now()})

	got := sinkStub.all()
	if len(got) != 1 || got[0].SensorID != "U08" || got[0].Value != 21.5 {
		t.Fatalf("unexpected readings %+v", got)
	}
	if rt.State().String() != "connected" {
		t.Fatalf("expected connected, got %s", rt.State())
	}
	if s := rt.Stats(); s.Received != 1 || s.Written != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestRuntimeServesQueries(t *testing.T) {
	exec := &stubExecutor{response: ",result,table,_value\n,_result,0,eg\n"}
	rt, err := NewRuntime(testConfig(t),
		WithTransport(newStubTransport()),
		WithSink(&stubSink{}),
		WithQueryExecutor(exec),
		WithObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	resp, err := http.Get("http://" + rt.Addr() + "/sensors/floors")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != `["eg"]` {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}

	resp, err = http.Get("http://" + rt.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", resp.StatusCode)
	}

	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestRuntimePublishQueuedMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Policy.Mode = "queued"
	sink, ch, closeSink := NewChannelSink("chan", 4)
	defer closeSink()

	rt, err := NewRuntime(cfg,
		WithTransport(newStubTransport()),
		WithSink(sink),
		WithQueryExecutor(&stubExecutor{}),
		WithObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rt.Shutdown(context.Background())

	out := rt.Publish(RawMessage{Topic: "plug-in_box/sensor/plug-in_box_co2/state", Payload: []byte("812")})
	if out.Status.String() != "accepted" {
		t.Fatalf("expected accepted, got %s", out.Status)
	}
	select {
	case batch := <-ch:
		if len(batch) != 1 || batch[0].Floor != "sensors" || batch[0].Type != "co2" {
			t.Fatalf("unexpected batch %+v", batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("queued reading was not written")
	}
}

func TestRuntimeStartTwice(t *testing.T) {
	rt, err := NewRuntime(testConfig(t),
		WithTransport(newStubTransport()),
		WithSink(&stubSink{}),
		WithQueryExecutor(&stubExecutor{}),
		WithObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rt.Shutdown(context.Background())
	if err := rt.Start(ctx); err == nil {
		t.Fatalf("expected second start to fail")
	}
}

func TestNewRuntimeRequiresConfig(t *testing.T) {
	if _, err := NewRuntime(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

type stubTransport struct {
	mu       sync.Mutex
	handlers map[string]MessageHandler
}

func newStubTransport() *stubTransport {
	return &stubTransport{handlers: make(map[string]MessageHandler)}
}

func (s *stubTransport) Connect(context.Context) (<-chan error, error) {
	return make(chan error), nil
}

func (s *stubTransport) Subscribe(_ context.Context, filter string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[filter] = handler
	return nil
}

func (s *stubTransport) Disconnect() {}

func (s *stubTransport) subscribed(filter string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handlers[filter]
	return ok
}

func (s *stubTransport) deliver(filter string, msg RawMessage) {
	s.mu.Lock()
	h := s.handlers[filter]
	s.mu.Unlock()
	h(msg)
}

type stubSink struct {
	mu       sync.Mutex
	readings []Reading
}

func (s *stubSink) WriteBatch(_ context.Context, readings []Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, readings...)
	return nil
}

func (s *stubSink) Name() string { return "stub" }

func (s *stubSink) all() []Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reading(nil), s.readings...)
}

type stubExecutor struct {
	response string
}

func (s *stubExecutor) ExecuteQuery(context.Context, string) (string, error) {
	return s.response, nil
}

type stubRooms struct{}

func (s *stubRooms) ListRooms(context.Context) ([]Room, error) { return nil, nil }
func (s *stubRooms) GetRoom(context.Context, int) (Room, error) { return Room{}, nil }

type stubMappings struct{}

func (s *stubMappings) ListMappings(context.Context) ([]SensorMapping, error) { return nil, nil }
func (s *stubMappings) SaveMapping(_ context.Context, m SensorMapping) (SensorMapping, error) {
	return m, nil
}
func (s *stubMappings) RemoveMapping(context.Context, string, string) error { return nil }
func (s *stubMappings) RoomForSensor(context.Context, string, string) (int, error) {
	return 0, nil
}
func (s *stubMappings) SensorsForRoom(context.Context, int) ([]SensorMapping, error) {
	return nil, nil
}

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)                  {}
func (s *stubObservability) LogError(string, error, ...Field)          {}
func (s *stubObservability) LogCritical(string, error, ...Field)       {}
func (s *stubObservability) IncCounter(string, float64)                {}
func (s *stubObservability) ObserveLatency(string, float64)            {}
func (s *stubObservability) SetGauge(string, float64)                  {}
func (s *stubObservability) RecordRejected(RawMessage, string, error) {}
