// Package hub streams service events to map renderers over Server-Sent
// Events.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fibermap/internal/metrics"
	"fibermap/internal/service"
)

const keepAliveInterval = 30 * time.Second

// Client represents a connected SSE client
type Client struct {
	id     string
	events chan []byte
}

// Hub manages SSE client connections
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}

	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a new Hub. m may be nil.
func New(log zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		log:        log.With().Str("component", "hub").Logger(),
		metrics:    m,
	}
}

// Run starts the hub's event loop, relaying everything published on bus,
// until ctx is done. Connected clients are dropped on return.
func (h *Hub) Run(ctx context.Context, bus *service.EventBus) error {
	events := make(chan service.Event, 256)
	bus.Subscribe(events)
	defer bus.Unsubscribe(events)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetSSEClients(n)
			h.log.Debug().Str("client_id", client.id).Int("clients", n).Msg("SSE client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetSSEClients(n)
			h.log.Debug().Str("client_id", client.id).Int("clients", n).Msg("SSE client disconnected")

		case event := <-events:
			h.send(event)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) send(event service.Event) {
	msg, err := encode(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event.Type)).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.events <- msg:
		default:
			h.log.Warn().Str("client_id", client.id).Msg("SSE client is slow, skipping message")
		}
	}
}

func (h *Hub) closeAll() {
	close(h.stopped)
	h.mu.Lock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.events)
	}
	h.mu.Unlock()
	h.metrics.SetSSEClients(0)
}

// encode renders one SSE frame with the event id and type
func encode(event service.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)), nil
}

// ServeHTTP handles SSE connections
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := &Client{
		id:     uuid.NewString(),
		events: make(chan []byte, 64),
	}

	select {
	case h.register <- client:
	case <-h.stopped:
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}

	defer func() {
		select {
		case h.unregister <- client:
		case <-h.stopped:
		}
	}()

	fmt.Fprintf(w, ": connected %s\n\n", client.id)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
