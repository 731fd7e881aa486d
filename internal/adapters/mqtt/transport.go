// Package mqtt adapts an Eclipse Paho client to ports.Transport.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

var ErrTimeout = errors.New("mqtt operation timed out")

type Config struct {
	BrokerURL      string
	Username       string
	Password       string
	ClientID       string // generated when empty
	QoS            byte
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

// client is the subset of paho.Client the transport drives.
type client interface {
	Connect() paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

// Transport owns at most one live Paho session. Reconnects are left to the
// caller; Paho's own auto-reconnect is disabled.
type Transport struct {
	cfg       Config
	newClient func(*paho.ClientOptions) client
	now       func() time.Time

	mu     sync.Mutex
	client client
}

func NewTransport(cfg Config) (*Transport, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("broker url is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid qos %d", cfg.QoS)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "sensorflow-" + uuid.NewString()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	return &Transport{
		cfg:       cfg,
		newClient: func(o *paho.ClientOptions) client { return paho.NewClient(o) },
		now:       time.Now,
	}, nil
}

func (t *Transport) options(lost chan<- error) *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(t.cfg.BrokerURL).
		SetClientID(t.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetConnectTimeout(t.cfg.ConnectTimeout).
		SetKeepAlive(t.cfg.KeepAlive)
	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
		opts.SetPassword(t.cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		if err == nil {
			err = errors.New("connection lost")
		}
		select {
		case lost <- err:
		default:
		}
	})
	return opts
}

// Connect opens a fresh session, replacing any previous one.
func (t *Transport) Connect(ctx context.Context) (<-chan error, error) {
	lost := make(chan error, 1)
	c := t.newClient(t.options(lost))
	if err := wait(ctx, c.Connect(), t.cfg.ConnectTimeout); err != nil {
		// The abandoned client must not complete a session under our client id.
		c.Disconnect(0)
		return nil, fmt.Errorf("connect %s: %w", t.cfg.BrokerURL, err)
	}

	t.mu.Lock()
	prev := t.client
	t.client = c
	t.mu.Unlock()
	if prev != nil {
		prev.Disconnect(0)
	}
	return lost, nil
}

func (t *Transport) Subscribe(ctx context.Context, filter string, handler ports.MessageHandler) error {
	t.mu.Lock()
	c := t.client
	t.mu.Unlock()
	if c == nil {
		return fmt.Errorf("subscribe %q: not connected", filter)
	}

	tok := c.Subscribe(filter, t.cfg.QoS, func(_ paho.Client, m paho.Message) {
		handler(domain.RawMessage{
			Topic:      m.Topic(),
			Payload:    m.Payload(),
			ReceivedAt: t.now(),
		})
	})
	if err := wait(ctx, tok, t.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("subscribe %q: %w", filter, err)
	}
	return nil
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	c := t.client
	t.client = nil
	t.mu.Unlock()
	if c != nil {
		c.Disconnect(250)
	}
}

func wait(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ ports.Transport = (*Transport)(nil)
