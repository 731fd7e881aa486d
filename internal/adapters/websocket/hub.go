// Package websocket pushes accepted readings to dashboard clients.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 64
)

// Classifier rates a value against the configured thresholds.
type Classifier interface {
	Classify(typ domain.SensorType, value float64) domain.Level
}

// Event is the frame sent for every accepted reading.
type Event struct {
	Type    string      `json:"type"`
	Payload LiveReading `json:"payload"`
}

type LiveReading struct {
	domain.Reading
	Level domain.Level `json:"level"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub maintains the set of active clients and broadcasts readings to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	classify   Classifier
	obs        ports.Observability
	count      atomic.Int64
	done       chan struct{}
}

func NewHub(classify Classifier, obs ports.Observability) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		classify:   classify,
		obs:        obs,
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Add(1)
			h.obs.LogInfo("live_client_connected", ports.Field{Key: "remote", Value: c.conn.RemoteAddr().String()})

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				h.obs.LogInfo("live_client_disconnected", ports.Field{Key: "remote", Value: c.conn.RemoteAddr().String()})
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.obs.LogInfo("live_client_dropped", ports.Field{Key: "remote", Value: c.conn.RemoteAddr().String()})
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Add(-1)
}

func (h *Hub) ClientCount() int { return int(h.count.Load()) }

// OnReading never blocks; frames are dropped when the hub falls behind.
func (h *Hub) OnReading(r domain.Reading) {
	ev := Event{Type: "reading", Payload: LiveReading{Reading: r, Level: domain.LevelOK}}
	if h.classify != nil {
		ev.Payload.Level = h.classify.Classify(r.Type, r.Value)
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.obs.LogError("live_encode_failed", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.obs.IncCounter("sensorflow_live_dropped_total", 1)
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.obs.LogError("live_upgrade_failed", err)
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

var _ ports.ReadingListener = (*Hub)(nil)
