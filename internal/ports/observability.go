package ports

import "github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	RecordRejected(msg domain.RawMessage, reason string, err error)
}

type Field struct {
	Key   string
	Value any
}
