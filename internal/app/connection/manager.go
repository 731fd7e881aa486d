// Package connection keeps one logical broker session alive.
//
// The Manager drives a small state machine:
//
//	Disconnected -> Connecting -> Connected -> RetryBackoff -> Connecting ...
//
// Connect failures, subscription failures that outlast their retries, and
// session losses all lead to RetryBackoff, which waits RetryInterval before the
// next attempt. There is no terminal state while the context is alive.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

// DefaultTopics covers per-floor sensor topics and the device-family sub-trees.
var DefaultTopics = []string{
	"+/+/+/+",
	"+/+/+",
	"ug/#",
	"eg/#",
	"tupper_box_v1/#",
	"plug-in_box/#",
}

var (
	ErrAlreadyStarted = errors.New("connection manager already started")
	ErrConnect        = errors.New("connect failed")
	ErrSubscribe      = errors.New("subscribe failed")
)

type Config struct {
	Topics            []string
	RetryInterval     time.Duration
	SubscribeAttempts int
}

func (c *Config) applyDefaults() {
	if len(c.Topics) == 0 {
		c.Topics = DefaultTopics
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 5 * time.Second
	}
	if c.SubscribeAttempts <= 0 {
		c.SubscribeAttempts = 3
	}
}

type Manager struct {
	cfg       Config
	transport ports.Transport
	handler   ports.MessageHandler
	obs       ports.Observability

	// after is swapped in tests to drive backoff without sleeping.
	after func(time.Duration) <-chan time.Time

	state    atomic.Int32
	started  atomic.Bool
	done     chan struct{}
	onChange func(domain.ConnectionState)
	mu       sync.Mutex
}

// NewManager wires a transport to the handler that receives every delivered message.
func NewManager(cfg Config, transport ports.Transport, handler ports.MessageHandler, obs ports.Observability) (*Manager, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}
	if obs == nil {
		return nil, fmt.Errorf("observability is required")
	}
	cfg.applyDefaults()
	return &Manager{
		cfg:       cfg,
		transport: transport,
		handler:   handler,
		obs:       obs,
		after:     time.After,
		done:      make(chan struct{}),
	}, nil
}

// OnStateChange registers a callback invoked on every transition, from the loop goroutine.
func (m *Manager) OnStateChange(fn func(domain.ConnectionState)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Manager) State() domain.ConnectionState {
	return domain.ConnectionState(m.state.Load())
}

// Done is closed once the loop has exited after context cancellation.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Start spawns the reconnect loop and returns immediately.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go m.run(ctx)
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	defer m.setState(domain.Disconnected)

	for {
		if ctx.Err() != nil {
			return
		}

		m.setState(domain.Connecting)
		lost, err := m.transport.Connect(ctx)
		if err != nil {
			m.obs.LogError("mqtt_connect_failed", fmt.Errorf("%w: %w", ErrConnect, err),
				ports.Field{Key: "retry_in", Value: m.cfg.RetryInterval.String()})
			m.obs.IncCounter("sensorflow_connect_failures_total", 1)
			if !m.backoff(ctx) {
				return
			}
			continue
		}

		m.setState(domain.Connected)
		if err := m.subscribeAll(ctx); err != nil {
			m.transport.Disconnect()
			if ctx.Err() != nil {
				return
			}
			m.obs.LogError("mqtt_resubscribe_exhausted", err)
			if !m.backoff(ctx) {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			m.transport.Disconnect()
			return
		case err := <-lost:
			if err == nil {
				err = errors.New("session closed")
			}
			m.obs.LogError("mqtt_connection_lost", err)
			m.transport.Disconnect()
			if !m.backoff(ctx) {
				return
			}
		}
	}
}

// subscribeAll subscribes to every filter, retrying each on the current session.
func (m *Manager) subscribeAll(ctx context.Context) error {
	for _, filter := range m.cfg.Topics {
		var err error
		for attempt := 1; attempt <= m.cfg.SubscribeAttempts; attempt++ {
			if attempt > 1 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-m.after(m.cfg.RetryInterval):
				}
			}
			if err = m.transport.Subscribe(ctx, filter, m.handler); err == nil {
				m.obs.LogInfo("mqtt_subscribed", ports.Field{Key: "topic", Value: filter})
				break
			}
			m.obs.LogError("mqtt_subscribe_failed", fmt.Errorf("%w: %w", ErrSubscribe, err),
				ports.Field{Key: "topic", Value: filter},
				ports.Field{Key: "attempt", Value: attempt})
			m.obs.IncCounter("sensorflow_subscribe_failures_total", 1)
		}
		if err != nil {
			return fmt.Errorf("%w: topic %q after %d attempts: %w", ErrSubscribe, filter, m.cfg.SubscribeAttempts, err)
		}
	}
	return nil
}

// backoff waits RetryInterval. It returns false if the context ended first.
func (m *Manager) backoff(ctx context.Context) bool {
	m.setState(domain.RetryBackoff)
	select {
	case <-ctx.Done():
		return false
	case <-m.after(m.cfg.RetryInterval):
		return true
	}
}

func (m *Manager) setState(s domain.ConnectionState) {
	prev := domain.ConnectionState(m.state.Swap(int32(s)))
	if prev == s {
		return
	}
	m.obs.SetGauge("sensorflow_connection_state", float64(s))
	m.obs.LogInfo("mqtt_state_changed",
		ports.Field{Key: "from", Value: prev.String()},
		ports.Field{Key: "to", Value: s.String()})

	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
