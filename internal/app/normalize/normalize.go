// Package normalize maps broker topics and payloads onto readings.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

// Reason classifies why a message was rejected.
type Reason string

const (
	MalformedTopic  Reason = "malformed_topic"
	UnsupportedType Reason = "unsupported_type"
	MissingField    Reason = "missing_field"
	NotANumber      Reason = "not_a_number"
)

// DeviceFloor is the floor assigned to every device-family reading.
const DeviceFloor = "sensors"

// DefaultDeviceFamilies are topic roots published by off-the-shelf devices
// that do not follow the floor/sensor/type layout.
var DefaultDeviceFamilies = []string{"tupper_box_v1", "plug-in_box"}

var typeAliases = map[string]domain.SensorType{
	"temp":        domain.Temperature,
	"temperature": domain.Temperature,
	"hum":         domain.Humidity,
	"humidity":    domain.Humidity,
	"co2":         domain.CO2,
}

// RejectError is returned for every message that cannot become a reading.
type RejectError struct {
	Reason Reason
	Topic  string
	Detail string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: topic %q: %s", e.Reason, e.Topic, e.Detail)
}

// ReasonOf returns the rejection reason carried by err, or "" if err is not a rejection.
func ReasonOf(err error) Reason {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

type Normalizer struct {
	families map[string]struct{}
}

// New builds a Normalizer. With no families, DefaultDeviceFamilies is used.
func New(families ...string) *Normalizer {
	if len(families) == 0 {
		families = DefaultDeviceFamilies
	}
	n := &Normalizer{families: make(map[string]struct{}, len(families))}
	for _, f := range families {
		if f = strings.TrimSpace(f); f != "" {
			n.families[f] = struct{}{}
		}
	}
	return n
}

// Normalize is pure: the same message always yields the same result.
func (n *Normalizer) Normalize(msg domain.RawMessage) (domain.Reading, error) {
	floor, sensorID, typ, err := n.parseTopic(msg.Topic)
	if err != nil {
		return domain.Reading{}, err
	}
	value, err := parsePayload(msg.Topic, msg.Payload)
	if err != nil {
		return domain.Reading{}, err
	}
	return domain.Reading{
		Floor:      floor,
		SensorID:   sensorID,
		Type:       typ,
		Value:      value,
		ObservedAt: msg.ReceivedAt,
	}, nil
}

func (n *Normalizer) parseTopic(topic string) (floor, sensorID string, typ domain.SensorType, err error) {
	parts := strings.Split(topic, "/")

	if _, ok := n.families[parts[0]]; ok {
		source := topic
		if len(parts) >= 3 {
			source = parts[2]
		}
		typ, ok := typeFromSubstring(source)
		if !ok {
			return "", "", "", &RejectError{Reason: UnsupportedType, Topic: topic, Detail: fmt.Sprintf("no sensor type in %q", source)}
		}
		return DeviceFloor, parts[0], typ, nil
	}

	if len(parts) < 3 {
		return "", "", "", &RejectError{Reason: MalformedTopic, Topic: topic, Detail: fmt.Sprintf("expected at least 3 segments, got %d", len(parts))}
	}
	if parts[0] == "" || parts[1] == "" {
		return "", "", "", &RejectError{Reason: MalformedTopic, Topic: topic, Detail: "empty floor or sensor segment"}
	}

	raw := strings.ToLower(parts[2])
	typ, ok := typeAliases[raw]
	if !ok {
		return "", "", "", &RejectError{Reason: UnsupportedType, Topic: topic, Detail: fmt.Sprintf("sensor type %q", raw)}
	}
	return parts[0], parts[1], typ, nil
}

// typeFromSubstring checks temperature, humidity and co2 in that order.
func typeFromSubstring(s string) (domain.SensorType, bool) {
	for _, t := range domain.SensorTypes {
		if strings.Contains(s, string(t)) {
			return t, true
		}
	}
	return "", false
}

func parsePayload(topic string, payload []byte) (float64, error) {
	trimmed := strings.TrimSpace(string(payload))

	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			for _, key := range []string{"value", "state"} {
				if v, ok := numericField(obj[key]); ok {
					return v, nil
				}
			}
			return 0, &RejectError{Reason: MissingField, Topic: topic, Detail: "no numeric value or state field"}
		}
	}

	literal := trimmed
	if strings.HasPrefix(literal, `"`) {
		var s string
		if err := json.Unmarshal([]byte(literal), &s); err == nil {
			literal = strings.TrimSpace(s)
		}
	}
	v, err := strconv.ParseFloat(literal, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &RejectError{Reason: NotANumber, Topic: topic, Detail: fmt.Sprintf("payload %q", truncate(trimmed, 64))}
	}
	return v, nil
}

// numericField accepts JSON numbers and strings holding a number.
func numericField(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ ports.Normalizer = (*Normalizer)(nil)
