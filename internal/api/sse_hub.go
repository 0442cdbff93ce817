package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RunEvent announces a finished analysis to stream subscribers
type RunEvent struct {
	EventType   string    `json:"event_type"`
	RunID       string    `json:"run_id,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Sites       int       `json:"n_sites,omitempty"`
	Groups      int       `json:"n_groups,omitempty"`
	Diagnostics int       `json:"diagnostics,omitempty"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
)

// SSEHub fans run events out to Server-Sent Events subscribers
type SSEHub struct {
	clients    map[chan RunEvent]bool
	clientsMu  sync.RWMutex
	register   chan chan RunEvent
	unregister chan chan RunEvent
	broadcast  chan RunEvent
	done       chan struct{}
	stopOnce   sync.Once

	// PingInterval is how often idle streams receive a keep-alive
	PingInterval time.Duration
}

// NewSSEHub creates a hub and starts its dispatch loop
func NewSSEHub() *SSEHub {
	hub := &SSEHub{
		clients:      make(map[chan RunEvent]bool),
		register:     make(chan chan RunEvent, 10),
		unregister:   make(chan chan RunEvent, 10),
		broadcast:    make(chan RunEvent, 100),
		done:         make(chan struct{}),
		PingInterval: 30 * time.Second,
	}

	go hub.run()
	return hub
}

func (h *SSEHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			log.Printf("[SSE] Client registered (total clients: %d)", len(h.clients))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client)
				log.Printf("[SSE] Client unregistered (remaining clients: %d)", len(h.clients))
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for client := range h.clients {
				select {
				case client <- event:
				default:
					log.Printf("[SSE] Client channel full, skipping %s event", event.EventType)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			h.clientsMu.Lock()
			for client := range h.clients {
				close(client)
			}
			h.clients = make(map[chan RunEvent]bool)
			h.clientsMu.Unlock()
			return
		}
	}
}

// Broadcast queues an event for every subscriber. It never blocks.
func (h *SSEHub) Broadcast(event RunEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[SSE] Broadcast channel full, dropping event: %s", event.EventType)
	}
}

// Stop ends the dispatch loop and closes every subscriber stream
func (h *SSEHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// HandleSSE streams run events until the client goes away
func (h *SSEHub) HandleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientChan := make(chan RunEvent, 10)
	select {
	case h.register <- clientChan:
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream registration failed"})
		return
	}

	defer func() {
		select {
		case h.unregister <- clientChan:
		case <-h.done:
		}
	}()

	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	ping := time.NewTicker(h.PingInterval)
	defer ping.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-clientChan:
			if !ok {
				return false
			}
			eventJSON, err := json.Marshal(event)
			if err != nil {
				log.Printf("[SSE] Failed to marshal event: %v", err)
				return true
			}
			c.SSEvent("run", string(eventJSON))
			return true

		case <-ping.C:
			c.SSEvent("ping", `{"status": "alive"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

// ClientCount returns the number of registered subscribers
func (h *SSEHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}
