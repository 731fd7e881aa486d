package sensorflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/adapters/influx"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/adapters/mqtt"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/adapters/observability"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/adapters/postgres"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/adapters/queue"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/adapters/sink"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/adapters/websocket"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/api"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/app/connection"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/app/normalize"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/app/pipeline"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/app/query"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/app/thresholds"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	transport     Transport
	sink          Sink
	executor      QueryExecutor
	rooms         RoomRepository
	mappings      MappingStore
	queue         ReadingQueue
	observability Observability
	listeners     []ReadingListener
}

// WithTransport replaces the MQTT transport (simulators, other brokers).
func WithTransport(t Transport) RuntimeOption {
	return func(o *runtimeOverrides) { o.transport = t }
}

// WithSink replaces the InfluxDB writer.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) { o.sink = s }
}

// WithQueryExecutor replaces the InfluxDB query client.
func WithQueryExecutor(e QueryExecutor) RuntimeOption {
	return func(o *runtimeOverrides) { o.executor = e }
}

// WithRoomRepository serves rooms from r instead of PostgreSQL.
func WithRoomRepository(r RoomRepository) RuntimeOption {
	return func(o *runtimeOverrides) { o.rooms = r }
}

// WithMappingStore replaces the InfluxDB-backed sensor-to-room mappings.
func WithMappingStore(m MappingStore) RuntimeOption {
	return func(o *runtimeOverrides) { o.mappings = m }
}

// WithReadingQueue swaps the in-memory queue used in queued mode.
func WithReadingQueue(q ReadingQueue) RuntimeOption {
	return func(o *runtimeOverrides) { o.queue = q }
}

// WithObservability plugs in a custom metrics/logging backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) { o.observability = obs }
}

// WithListener adds a listener for accepted readings next to the live hub.
func WithListener(l ReadingListener) RuntimeOption {
	return func(o *runtimeOverrides) { o.listeners = append(o.listeners, l) }
}

// Runtime wires broker → normalizer → store and the dashboard API behind one
// lifecycle so SensorFlow can be embedded in any Go service.
type Runtime struct {
	cfg        *Config
	obs        ports.Observability
	registry   *prometheus.Registry
	manager    *connection.Manager
	pipeline   *pipeline.Pipeline
	translator *query.Translator
	thresholds *thresholds.Store
	hub        *websocket.Hub
	handler    http.Handler

	influx influxdb2.Client
	db     *sql.DB

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewRuntime bootstraps the default adapters (MQTT transport, InfluxDB sink,
// query client and sensor mappings, optional PostgreSQL rooms, Prometheus observability). Options
// override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var o runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	rt := &Runtime{cfg: cfg, registry: prometheus.NewRegistry()}
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt.obs = o.observability
	if rt.obs == nil {
		rt.obs = observability.NewPromObs(rt.registry, os.Stdout, cfg.Log.Level)
	}

	if err := rt.wireStore(cfg, &o); err != nil {
		rt.closeClients()
		return nil, err
	}

	tr := o.transport
	if tr == nil {
		var err error
		tr, err = mqtt.NewTransport(mqtt.Config{
			BrokerURL:      cfg.MQTT.BrokerURL,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			ClientID:       cfg.MQTT.ClientID,
			QoS:            cfg.MQTT.QoS,
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
			KeepAlive:      cfg.MQTT.KeepAlive,
		})
		if err != nil {
			rt.closeClients()
			return nil, err
		}
	}

	var err error
	rt.thresholds, err = thresholds.NewStore(cfg.Thresholds)
	if err != nil {
		rt.closeClients()
		return nil, err
	}

	q := o.queue
	if q == nil && cfg.Policy.Mode == pipeline.ModeQueued {
		q = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}
	families := cfg.DeviceFamilies
	if len(families) == 0 {
		families = normalize.DefaultDeviceFamilies
	}
	rt.pipeline, err = pipeline.New(normalize.New(families...), o.sink, q, cfg.Policy, rt.obs)
	if err != nil {
		rt.closeClients()
		return nil, err
	}

	rt.hub = websocket.NewHub(rt.thresholds, rt.obs)
	rt.pipeline.AddListener(rt.hub)
	for _, l := range o.listeners {
		rt.pipeline.AddListener(l)
	}

	rt.manager, err = connection.NewManager(connection.Config{
		Topics:            cfg.MQTT.Topics,
		RetryInterval:     cfg.MQTT.RetryInterval,
		SubscribeAttempts: cfg.MQTT.SubscribeAttempts,
	}, tr, func(msg domain.RawMessage) { rt.pipeline.HandleMessage(msg) }, rt.obs)
	if err != nil {
		rt.closeClients()
		return nil, err
	}

	rt.translator, err = query.NewTranslator(query.Config{
		Bucket:      cfg.Influx.Bucket,
		Measurement: cfg.Influx.Measurement,
	}, o.executor, rt.obs)
	if err != nil {
		rt.closeClients()
		return nil, err
	}

	rt.handler = api.NewRouter(api.NewHandler(rt.translator, rt.thresholds, rt.obs), api.Options{
		Rooms:          o.rooms,
		Mappings:       o.mappings,
		Live:           rt.hub.ServeWS,
		Metrics:        promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}),
		Health:         rt.health,
		Stats:          func() any { return rt.Stats() },
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	return rt, nil
}

// wireStore fills in the InfluxDB and PostgreSQL defaults that were not overridden.
func (rt *Runtime) wireStore(cfg *Config, o *runtimeOverrides) error {
	if o.sink == nil || o.executor == nil || o.mappings == nil {
		client, err := influx.NewClient(influx.ClientConfig{URL: cfg.Influx.URL, Token: cfg.Influx.Token, Timeout: cfg.Influx.Timeout})
		if err != nil {
			return err
		}
		rt.influx = client
		if o.sink == nil {
			o.sink = sink.NewInfluxSink(client.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket), cfg.Influx.Measurement, cfg.Influx.Timeout)
		}
		if o.executor == nil {
			o.executor = influx.NewQueryExecutor(client, cfg.Influx.Org, cfg.Influx.Timeout)
		}
		if o.mappings == nil {
			o.mappings = influx.NewMappingStore(client, o.executor, influx.MappingConfig{
				Org:     cfg.Influx.Org,
				Bucket:  cfg.Influx.MappingBucket,
				Timeout: cfg.Influx.Timeout,
			}, rt.obs)
		}
	}

	if o.rooms == nil && cfg.Postgres.ConnString != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := postgres.Open(ctx, cfg.Postgres.ConnString)
		if err != nil {
			return err
		}
		rt.db = db
		o.rooms = postgres.NewRoomRepository(db)
	}
	return nil
}

// Start launches the connection manager, the drain loop, the live hub and the
// HTTP server. It returns once the listener is bound.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.started {
		return fmt.Errorf("runtime already started")
	}

	ln, err := net.Listen("tcp", rt.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", rt.cfg.HTTP.Addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := rt.manager.Start(ctx); err != nil {
		cancel()
		ln.Close()
		return err
	}

	rt.wg.Add(2)
	go func() {
		defer rt.wg.Done()
		if err := rt.pipeline.Run(ctx); err != nil {
			rt.obs.LogError("pipeline_stopped", err)
		}
	}()
	go func() {
		defer rt.wg.Done()
		rt.hub.Run(ctx)
	}()

	rt.server = &http.Server{Handler: rt.handler, ReadHeaderTimeout: 10 * time.Second}
	rt.listener = ln
	go func() {
		if err := rt.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.obs.LogCritical("http_server_exited", err)
		}
	}()

	rt.cancel = cancel
	rt.started = true
	rt.obs.LogInfo("sensorflow_started",
		ports.Field{Key: "http_addr", Value: ln.Addr().String()},
		ports.Field{Key: "mode", Value: rt.pipeline.Mode()})
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled, then shuts down.
func (rt *Runtime) Run(ctx context.Context) error {
	if err := rt.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return rt.Shutdown(shutdownCtx)
}

// Shutdown stops the session, flushes the queue and closes every client.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var errs []error
	if rt.started {
		if rt.server != nil {
			if err := rt.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
		}
		rt.cancel()

		done := make(chan struct{})
		go func() {
			<-rt.manager.Done()
			rt.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
		rt.started = false
	}

	if err := rt.closeClients(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (rt *Runtime) closeClients() error {
	var err error
	if rt.influx != nil {
		rt.influx.Close()
		rt.influx = nil
	}
	if rt.db != nil {
		err = rt.db.Close()
		rt.db = nil
	}
	return err
}

// Publish pushes a message through the pipeline as if the broker had delivered it.
func (rt *Runtime) Publish(msg RawMessage) Outcome {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	return rt.pipeline.HandleMessage(msg)
}

// Handler exposes the REST/live/metrics router for embedding in another server.
func (rt *Runtime) Handler() http.Handler { return rt.handler }

// Addr is the bound HTTP address once started.
func (rt *Runtime) Addr() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.listener == nil {
		return ""
	}
	return rt.listener.Addr().String()
}

func (rt *Runtime) State() domain.ConnectionState { return rt.manager.State() }

func (rt *Runtime) Stats() Stats { return rt.pipeline.Stats() }

func (rt *Runtime) health() api.Health {
	return api.Health{Status: "ok", Connection: rt.manager.State().String()}
}
