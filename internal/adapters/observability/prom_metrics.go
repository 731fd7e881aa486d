package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	rejected *prometheus.CounterVec
}

// NewPromObs registers the SensorFlow metrics on reg and logs JSON to w.
// A nil reg means prometheus.DefaultRegisterer; a nil w means stdout.
func NewPromObs(reg prometheus.Registerer, w io.Writer, level string) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if w == nil {
		w = os.Stdout
	}

	received := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_messages_received_total",
		Help: "Broker messages delivered to the pipeline.",
	})
	written := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_readings_written_total",
		Help: "Readings accepted by the time-series store.",
	})
	writeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_write_failures_total",
		Help: "Readings lost because the store rejected the write.",
	})
	queueDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_queue_dropped_total",
		Help: "Readings lost due to queue backpressure policies.",
	})
	connectFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_connect_failures_total",
		Help: "Failed broker connection attempts.",
	})
	subscribeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_subscribe_failures_total",
		Help: "Failed topic subscription attempts.",
	})
	queryFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_query_failures_total",
		Help: "Queries the store failed to execute.",
	})
	rowsSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_query_rows_skipped_total",
		Help: "Response rows skipped because they could not be parsed.",
	})
	liveDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_live_dropped_total",
		Help: "Live frames dropped because the broadcast buffer was full.",
	})
	connState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensorflow_connection_state",
		Help: "Broker connection state (0 disconnected, 1 connecting, 2 connected, 3 retry backoff).",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensorflow_queue_length",
		Help: "Current number of readings buffered in the in-memory queue.",
	})
	writeLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sensorflow_write_latency_seconds",
		Help:    "Latency of store writes.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	queryLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sensorflow_query_latency_seconds",
		Help:    "Latency of store queries.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorflow_readings_rejected_total",
		Help: "Messages dropped by the normalizer, by reason.",
	}, []string{"reason"})

	reg.MustRegister(received, written, writeFailures, queueDrops, connectFailures, subscribeFailures,
		queryFailures, rowsSkipped, liveDrops, connState, queueGauge, writeLatency, queryLatency, rejected)

	return &PromObs{
		logger: NewLogger(w, level),
		counters: map[string]prometheus.Counter{
			"sensorflow_messages_received_total":  received,
			"sensorflow_readings_written_total":   written,
			"sensorflow_write_failures_total":     writeFailures,
			"sensorflow_queue_dropped_total":      queueDrops,
			"sensorflow_connect_failures_total":   connectFailures,
			"sensorflow_subscribe_failures_total": subscribeFailures,
			"sensorflow_query_failures_total":     queryFailures,
			"sensorflow_query_rows_skipped_total": rowsSkipped,
			"sensorflow_live_dropped_total":       liveDrops,
		},
		gauges: map[string]prometheus.Gauge{
			"sensorflow_connection_state": connState,
			"sensorflow_queue_length":     queueGauge,
		},
		histos: map[string]prometheus.Observer{
			"sensorflow_write_latency_seconds": writeLatency,
			"sensorflow_query_latency_seconds": queryLatency,
		},
		rejected: rejected,
	}
}

// NewLogger returns a JSON slog logger at the given level (debug, info, warn, error).
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (p *PromObs) Logger() *slog.Logger { return p.logger }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err == nil {
		return
	}
	p.logger.Warn(msg, append(attrs(fields), slog.Any("error", err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err == nil {
		return
	}
	p.logger.Error(msg, append(attrs(fields), slog.Any("error", err))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordRejected(msg domain.RawMessage, reason string, err error) {
	p.rejected.WithLabelValues(reason).Inc()
	p.logger.Info("message_rejected",
		slog.String("topic", msg.Topic),
		slog.String("reason", reason),
		slog.Any("error", err))
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
