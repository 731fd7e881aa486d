package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
influx:
  token: secret
policy:
  max_queue_len: 1000
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Policy.MaxQueueLen != 1000 {
		t.Fatalf("expected MaxQueueLen 1000, got %d", cfg.Policy.MaxQueueLen)
	}
	if cfg.Policy.Mode != "direct" || cfg.Policy.OnQueueFull != "block" {
		t.Fatalf("unexpected policy defaults %+v", cfg.Policy)
	}
	if cfg.Policy.WriteTimeout != 10*time.Second {
		t.Fatalf("expected write timeout to follow influx timeout, got %s", cfg.Policy.WriteTimeout)
	}
	if cfg.MQTT.RetryInterval != 5*time.Second || cfg.MQTT.SubscribeAttempts != 3 {
		t.Fatalf("unexpected mqtt defaults %+v", cfg.MQTT)
	}
	if cfg.Influx.MappingBucket != "sensor_mappings" {
		t.Fatalf("unexpected mapping bucket %q", cfg.Influx.MappingBucket)
	}
	if cfg.Influx.Bucket != "sensor-data" || cfg.Influx.Measurement != "sensor_data" || cfg.Influx.Org != "sensor_org" {
		t.Fatalf("unexpected influx defaults %+v", cfg.Influx)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected default http addr :8080, got %s", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.Log.Level)
	}
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("SENSORFLOW_INFLUX_TOKEN", "from-env")
	t.Setenv("SENSORFLOW_MQTT_PASSWORD", "pw")

	cfg, err := Parse([]byte(`
mqtt:
  broker_url: tcp://localhost:1883
  username: iot
  password: ${SENSORFLOW_MQTT_PASSWORD}
  retry_interval: 2s
  topics: ["eg/#", "ug/#"]
influx:
  token: ${SENSORFLOW_INFLUX_TOKEN}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Influx.Token != "from-env" || cfg.MQTT.Password != "pw" {
		t.Fatalf("expected env expansion, got token=%q password=%q", cfg.Influx.Token, cfg.MQTT.Password)
	}
	if cfg.MQTT.RetryInterval != 2*time.Second || len(cfg.MQTT.Topics) != 2 {
		t.Fatalf("unexpected mqtt config %+v", cfg.MQTT)
	}
}

func TestParseThresholds(t *testing.T) {
	cfg, err := Parse([]byte(`
influx: {token: t}
thresholds:
  co2:
    warning_low: 500
    warning_high: 900
    danger_low: 0
    danger_high: 1500
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Thresholds["co2"].WarningHigh != 900 {
		t.Fatalf("unexpected thresholds %+v", cfg.Thresholds)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing token":  `mqtt: {qos: 1}`,
		"bad qos":        "influx: {token: t}\nmqtt: {qos: 3}",
		"bad mode":       "influx: {token: t}\npolicy: {mode: batch}",
		"bad queue":      "influx: {token: t}\npolicy: {on_queue_full: reject}",
		"unknown type":   "influx: {token: t}\nthresholds: {pressure: {warning_low: 1}}",
		"unordered band": "influx: {token: t}\nthresholds: {humidity: {warning_low: 60, warning_high: 30, danger_low: 20, danger_high: 70}}",
	}
	for name, data := range cases {
		if _, err := Parse([]byte(data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected file error, got %v", err)
	}
}
