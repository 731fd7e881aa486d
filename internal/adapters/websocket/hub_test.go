package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

func TestHubBroadcastsReadings(t *testing.T) {
	hub := NewHub(fixedLevel(domain.LevelWarning), nopObs{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.OnReading(domain.Reading{Floor: "eg", SensorID: "U08", Type: domain.Temperature, Value: 27})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev struct {
		Type    string `json:"type"`
		Payload struct {
			Floor    string  `json:"floor"`
			SensorID string  `json:"sensor_id"`
			Value    float64 `json:"value"`
			Level    string  `json:"level"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	if ev.Type != "reading" || ev.Payload.SensorID != "U08" || ev.Payload.Value != 27 || ev.Payload.Level != "warning" {
		t.Fatalf("unexpected event %s", data)
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub := NewHub(nil, nopObs{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestOnReadingNeverBlocks(t *testing.T) {
	hub := NewHub(nil, nopObs{})
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.OnReading(domain.Reading{Floor: "eg", SensorID: "U08", Type: domain.CO2, Value: float64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("OnReading blocked without a running hub")
	}
}

type fixedLevel domain.Level

func (f fixedLevel) Classify(domain.SensorType, float64) domain.Level { return domain.Level(f) }

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

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)                  {}
func (nopObs) LogError(string, error, ...ports.Field)          {}
func (nopObs) LogCritical(string, error, ...ports.Field)       {}
func (nopObs) IncCounter(string, float64)                      {}
func (nopObs) ObserveLatency(string, float64)                  {}
func (nopObs) SetGauge(string, float64)                        {}
func (nopObs) RecordRejected(domain.RawMessage, string, error) {}
