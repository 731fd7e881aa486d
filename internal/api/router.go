// Package api serves the dashboard REST endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

// Options wires optional parts of the router. Nil handlers leave their routes unmounted.
type Options struct {
	Rooms          ports.RoomRepository
	Mappings       ports.MappingStore
	Live           http.HandlerFunc
	Metrics        http.Handler
	Health         func() Health
	Stats          func() any
	RequestTimeout time.Duration
}

func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.obs))
	r.Use(middleware.Recoverer)

	if opts.Live != nil {
		r.Get("/live", opts.Live)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Get("/healthz", h.health(opts.Health))
	if opts.Stats != nil {
		r.Get("/stats", h.stats(opts.Stats))
	}

	r.Group(func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}
		r.Route("/sensors", func(r chi.Router) {
			r.Get("/floors", h.Floors)
			r.Route("/mappings", func(r chi.Router) {
				if opts.Mappings == nil {
					r.HandleFunc("/", notConfigured("sensor mappings"))
					r.HandleFunc("/*", notConfigured("sensor mappings"))
					return
				}
				mappings := &mappingHandler{store: opts.Mappings, obs: h.obs}
				r.Get("/", mappings.List)
				r.Post("/", mappings.Save)
				r.Get("/room/{roomId}", mappings.SensorsForRoom)
				r.Get("/{floor}/{sensorId}/room", mappings.RoomForSensor)
				r.Delete("/{floor}/{sensorId}", mappings.Remove)
			})
			r.Get("/{floor}", h.Sensors)
			r.Get("/{floor}/{sensorId}", h.Fields)
			r.Get("/{floor}/{sensorId}/values", h.AllValues)
			r.Get("/{floor}/{sensorId}/{sensorType}", h.Values)
		})
		r.Route("/thresholds", func(r chi.Router) {
			r.Get("/", h.Thresholds)
			r.Get("/{sensorType}", h.Threshold)
			r.Put("/{sensorType}", h.SetThreshold)
		})
		if opts.Rooms != nil {
			rooms := &roomHandler{repo: opts.Rooms, obs: h.obs}
			r.Get("/room/all", rooms.List)
			r.Get("/room/{id}", rooms.Get)
		}
	})

	return r
}

func requestLogger(obs ports.Observability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			obs.LogInfo("http_request",
				ports.Field{Key: "method", Value: r.Method},
				ports.Field{Key: "path", Value: r.URL.Path},
				ports.Field{Key: "status", Value: ww.Status()},
				ports.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
				ports.Field{Key: "request_id", Value: middleware.GetReqID(r.Context())})
		})
	}
}
