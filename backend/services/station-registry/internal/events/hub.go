package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Kind names a station change.
type Kind string

const (
	KindCreated Kind = "station.created"
	KindUpdated Kind = "station.updated"
	KindDeleted Kind = "station.deleted"
)

// Event is one message on the change feed. Station is omitted for deletes.
type Event struct {
	Type      Kind      `json:"type"`
	StationID string    `json:"stationId"`
	Station   any       `json:"station,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher receives station change events.
type Publisher interface {
	Publish(evt Event)
}

// Hub fans change events out to websocket subscribers.
type Hub struct {
	mu           sync.RWMutex
	subscribers  map[string]*subscriber
	pingInterval time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

// NewHub builds hub.
func NewHub(pingInterval, writeTimeout time.Duration, logger *zap.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		subscribers:  make(map[string]*subscriber),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Publish sends evt to every subscriber. Slow subscribers drop messages.
func (h *Hub) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to encode station event", zap.String("type", string(evt.Type)), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			h.logger.Warn("dropping station event, buffer full", zap.String("subscriber_id", sub.id))
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// ServeWS upgrades the request and registers a subscriber.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		id:   uuid.NewString(),
		ws:   conn,
		send: make(chan []byte, 16),
		hub:  h,
	}
	h.add(sub)
	go sub.writePump()
	go sub.readPump()
	h.logger.Info("event subscriber connected", zap.String("subscriber_id", sub.id))
}

// Run pings subscribers until ctx is done, then disconnects them.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case <-ticker.C:
			h.mu.RLock()
			for _, sub := range h.subscribers {
				_ = sub.ping()
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.id] = sub
}

// remove unregisters sub and closes its queue exactly once.
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub.id]; !ok {
		return
	}
	delete(h.subscribers, sub.id)
	close(sub.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.send)
	}
}
