package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/relay"
)

// Hub tracks monitor clients and fans events out to them. Publishing
// never blocks the caller: when the queue is full the event is
// dropped, and a client that cannot drain its own queue is removed.
type Hub struct {
	logger *slog.Logger

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	// mu guards clients for counting from outside Run.
	mu sync.RWMutex

	eventsSent    atomic.Uint64
	eventsDropped atomic.Uint64
	clientsServed atomic.Uint64
}

// New creates a monitor hub. Start Run in a goroutine before
// registering routes.
func New() *Hub {
	return &Hub{
		logger:     log.Component("hub"),
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run owns the client set. Register, unregister and fan-out all pass
// through here, so no client is written to while being removed.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.clientsServed.Add(1)
			h.logger.Info("monitor client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("monitor client disconnected", "clients", count)

		case data := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					close(c.send)
					delete(h.clients, c)
					h.logger.Warn("dropped slow monitor client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for every connected client.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("event encode failed", "type", ev.Type, "error", err)
		return
	}

	select {
	case h.broadcast <- data:
		h.eventsSent.Add(1)
	default:
		h.eventsDropped.Add(1)
	}
}

// OnCallStarted implements relay.Monitor.
func (h *Hub) OnCallStarted(info relay.CallInfo) {
	h.Publish(callEvent(TypeCallStarted, info))
}

// OnCallEnded implements relay.Monitor.
func (h *Hub) OnCallEnded(info relay.CallInfo) {
	h.Publish(callEvent(TypeCallEnded, info))
}

// OnTranscript implements relay.Monitor.
func (h *Hub) OnTranscript(callSID, role, text string) {
	h.Publish(Event{
		Type:    TypeTranscript,
		CallSID: callSID,
		Time:    time.Now(),
		Role:    role,
		Text:    text,
	})
}

// OnCallEvent implements relay.Monitor.
func (h *Hub) OnCallEvent(callSID, event string) {
	h.Publish(Event{
		Type:    TypeCallEvent,
		CallSID: callSID,
		Time:    time.Now(),
		Text:    event,
	})
}

var _ relay.Monitor = (*Hub)(nil)

// RegisterRoutes mounts the monitor endpoint on a fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/monitor", websocket.New(h.handleMonitor))
}

// handleMonitor serves one dashboard connection until it drops.
func (h *Hub) handleMonitor(c *websocket.Conn) {
	newClient(h, c).run()
}

// ClientCount returns the number of connected monitor clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats are the hub's running counters.
type Stats struct {
	Clients       int    `json:"clients"`
	ClientsServed uint64 `json:"clients_served"`
	EventsSent    uint64 `json:"events_sent"`
	EventsDropped uint64 `json:"events_dropped"`
}

// GetStats returns a snapshot of the counters.
func (h *Hub) GetStats() Stats {
	return Stats{
		Clients:       h.ClientCount(),
		ClientsServed: h.clientsServed.Load(),
		EventsSent:    h.eventsSent.Load(),
		EventsDropped: h.eventsDropped.Load(),
	}
}
