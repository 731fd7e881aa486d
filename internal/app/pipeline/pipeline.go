// Package pipeline moves broker messages through normalization into the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/app/normalize"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

const (
	ModeDirect = "direct"
	ModeQueued = "queued"

	OnFullBlock = "block"
	OnFullDrop  = "drop"
)

var (
	ErrClosed = errors.New("pipeline closed")
	// ErrNotRunning is returned by a blocking enqueue on a full queue that no drain loop empties.
	ErrNotRunning = errors.New("pipeline not running")
)

type Status int

const (
	Accepted Status = iota
	Rejected
	WriteFailed
	Dropped
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case WriteFailed:
		return "write_failed"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Outcome reports what happened to one message. Reason is set for rejections.
type Outcome struct {
	Status Status
	Reason string
	Err    error
}

// Stats are cumulative counts since the pipeline was created.
type Stats struct {
	Received    uint64 `json:"received"`
	Accepted    uint64 `json:"accepted"`
	Rejected    uint64 `json:"rejected"`
	Written     uint64 `json:"written"`
	WriteFailed uint64 `json:"write_failed"`
	Dropped     uint64 `json:"dropped"`
	QueueLength int    `json:"queue_length"`
}

// notifier is implemented by queues that can wake the drain loop.
type notifier interface {
	Notify() <-chan struct{}
}

type Pipeline struct {
	norm  ports.Normalizer
	sink  ports.Sink
	queue ports.ReadingQueue
	pol   ports.Policy
	obs   ports.Observability

	mu        sync.RWMutex
	listeners []ports.ReadingListener

	// gate orders enqueues against close so nothing lands after the final flush.
	gate    sync.RWMutex
	closed  bool
	running atomic.Bool

	received, accepted, rejected, written, writeFailed, dropped atomic.Uint64
}

// New builds a pipeline. A queue is required in queued mode and ignored otherwise.
func New(norm ports.Normalizer, sink ports.Sink, queue ports.ReadingQueue, pol ports.Policy, obs ports.Observability) (*Pipeline, error) {
	if norm == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if obs == nil {
		return nil, fmt.Errorf("observability is required")
	}
	applyPolicyDefaults(&pol)
	switch pol.Mode {
	case ModeDirect:
	case ModeQueued:
		if queue == nil {
			return nil, fmt.Errorf("queued mode requires a queue")
		}
	default:
		return nil, fmt.Errorf("unknown pipeline mode %q", pol.Mode)
	}
	if pol.OnQueueFull != OnFullBlock && pol.OnQueueFull != OnFullDrop {
		return nil, fmt.Errorf("unknown queue policy %q", pol.OnQueueFull)
	}
	return &Pipeline{norm: norm, sink: sink, queue: queue, pol: pol, obs: obs}, nil
}

func applyPolicyDefaults(pol *ports.Policy) {
	if pol.Mode == "" {
		pol.Mode = ModeDirect
	}
	if pol.OnQueueFull == "" {
		pol.OnQueueFull = OnFullBlock
	}
	if pol.MaxQueueLen <= 0 {
		pol.MaxQueueLen = 10000
	}
	if pol.MaxBatchSize <= 0 {
		pol.MaxBatchSize = 500
	}
	if pol.IdleSleep <= 0 {
		pol.IdleSleep = 5 * time.Millisecond
	}
	if pol.WriteTimeout <= 0 {
		pol.WriteTimeout = 10 * time.Second
	}
}

// AddListener registers l for every accepted reading.
func (p *Pipeline) AddListener(l ports.ReadingListener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

func (p *Pipeline) Mode() string { return p.pol.Mode }

// HandleMessage is the transport callback. It never panics on bad input.
func (p *Pipeline) HandleMessage(msg domain.RawMessage) Outcome {
	p.received.Add(1)
	p.obs.IncCounter("sensorflow_messages_received_total", 1)

	r, err := p.norm.Normalize(msg)
	if err != nil {
		reason := string(normalize.ReasonOf(err))
		if reason == "" {
			reason = "invalid"
		}
		p.rejected.Add(1)
		p.obs.RecordRejected(msg, reason, err)
		return Outcome{Status: Rejected, Reason: reason, Err: err}
	}

	if p.pol.Mode == ModeQueued {
		if err := p.enqueue(r); err != nil {
			p.dropped.Add(1)
			p.obs.IncCounter("sensorflow_queue_dropped_total", 1)
			return Outcome{Status: Dropped, Err: err}
		}
		p.accept(r)
		return Outcome{Status: Accepted}
	}

	p.accept(r)
	ctx, cancel := context.WithTimeout(context.Background(), p.pol.WriteTimeout)
	defer cancel()
	if err := p.write(ctx, []domain.Reading{r}); err != nil {
		return Outcome{Status: WriteFailed, Err: err}
	}
	return Outcome{Status: Accepted}
}

func (p *Pipeline) accept(r domain.Reading) {
	p.accepted.Add(1)
	p.mu.RLock()
	listeners := p.listeners
	p.mu.RUnlock()
	for _, l := range listeners {
		l.OnReading(r)
	}
}

// enqueue applies the queue-full policy. "block" waits until the drain loop
// makes room, and fails fast when no drain loop is running or the pipeline is closed.
func (p *Pipeline) enqueue(r domain.Reading) error {
	for {
		ok, err := p.tryEnqueue(r)
		if err != nil {
			return err
		}
		if ok {
			p.obs.SetGauge("sensorflow_queue_length", float64(p.queue.Len()))
			return nil
		}

		switch p.pol.OnQueueFull {
		case OnFullBlock:
			if !p.running.Load() {
				return ErrNotRunning
			}
			time.Sleep(p.pol.IdleSleep)
		default:
			err := fmt.Errorf("queue length exceeded capacity %d", p.pol.MaxQueueLen)
			p.obs.LogError("queue_full_drop", err,
				ports.Field{Key: "floor", Value: r.Floor},
				ports.Field{Key: "sensor", Value: r.SensorID})
			return err
		}
	}
}

func (p *Pipeline) tryEnqueue(r domain.Reading) (bool, error) {
	p.gate.RLock()
	defer p.gate.RUnlock()
	if p.closed {
		return false, ErrClosed
	}
	return p.queue.Enqueue(r), nil
}

// close waits for in-flight enqueues, after which no reading can enter the queue.
func (p *Pipeline) close() {
	p.gate.Lock()
	p.closed = true
	p.gate.Unlock()
}

// write stores a batch. Failed batches are logged and dropped.
func (p *Pipeline) write(ctx context.Context, batch []domain.Reading) error {
	start := time.Now()
	err := p.sink.WriteBatch(ctx, batch)
	p.obs.ObserveLatency("sensorflow_write_latency_seconds", time.Since(start).Seconds())
	if err != nil {
		p.writeFailed.Add(uint64(len(batch)))
		p.obs.IncCounter("sensorflow_write_failures_total", float64(len(batch)))
		p.obs.LogError("sink_write_failed", err,
			ports.Field{Key: "sink", Value: p.sink.Name()},
			ports.Field{Key: "readings", Value: len(batch)})
		return err
	}
	p.written.Add(uint64(len(batch)))
	p.obs.IncCounter("sensorflow_readings_written_total", float64(len(batch)))
	return nil
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
// In direct mode it returns immediately.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.pol.Mode != ModeQueued {
		return nil
	}
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline already running")
	}
	defer p.close()

	var wake <-chan struct{}
	if n, ok := p.queue.(notifier); ok {
		wake = n.Notify()
	}

	for {
		if p.drainOnce(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
			p.close()
			p.flush()
			return nil
		case <-wake:
		case <-time.After(p.pol.IdleSleep):
		}
	}
}

// drainOnce writes one batch. It reports whether anything was dequeued.
func (p *Pipeline) drainOnce(ctx context.Context) bool {
	batch := p.queue.DequeueBatch(p.pol.MaxBatchSize)
	p.obs.SetGauge("sensorflow_queue_length", float64(p.queue.Len()))
	if len(batch) == 0 {
		return false
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.pol.WriteTimeout)
	defer cancel()
	_ = p.write(wctx, batch)
	return true
}

func (p *Pipeline) flush() {
	for p.drainOnce(context.Background()) {
	}
}

func (p *Pipeline) Stats() Stats {
	s := Stats{
		Received:    p.received.Load(),
		Accepted:    p.accepted.Load(),
		Rejected:    p.rejected.Load(),
		Written:     p.written.Load(),
		WriteFailed: p.writeFailed.Load(),
		Dropped:     p.dropped.Load(),
	}
	if p.queue != nil && p.pol.Mode == ModeQueued {
		s.QueueLength = p.queue.Len()
	}
	return s
}
