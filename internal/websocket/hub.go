package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types published to admin listeners
const (
	EventSubmissionCreated = "submission.created"
	EventSubmissionDeleted = "submission.deleted"
	EventFormDeleted       = "form.deleted"
)

// Event is one message of the admin live feed
type Event struct {
	Type         string    `json:"type"`
	SubmissionID string    `json:"submissionId,omitempty"`
	FormID       string    `json:"formId,omitempty"`
	FormType     string    `json:"formType,omitempty"`
	CompanyName  string    `json:"companyName,omitempty"`
	At           time.Time `json:"at"`
}

// Hub maintains the set of active admin clients and broadcasts events
type Hub struct {
	// Registered clients
	clients map[*Client]struct{}

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Outbound messages for every client
	broadcast chan []byte

	// Closed when Run returns
	done chan struct{}

	// Guards clients for Count
	mu sync.RWMutex

	log zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "ws").Logger(),
	}
}

// Run starts the hub's main loop. It returns when ctx is done, closing all
// client connections.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.log.Info().Str("client", client.ID).Msg("📱 Admin listener connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Info().Str("client", client.ID).Msg("📴 Admin listener disconnected")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer, drop it
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for every connected client. It never blocks; the
// event is dropped when the queue is full.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("Error marshaling event")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn().Str("type", ev.Type).Msg("⚠️ Event queue full, dropping event")
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
