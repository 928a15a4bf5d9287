package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub fans reservation and call events out to the dashboard sockets watching
// each restaurant. Clients are grouped by restaurant id; one user may hold
// several sockets at once.
type Hub struct {
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 256),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// Publish queues an event for every socket watching the restaurant. Never
// blocks the caller.
func (h *Hub) Publish(event *Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("event dropped, broadcast queue full",
			zap.String("type", string(event.Type)),
			zap.Int64("restaurant_id", event.RestaurantID),
		)
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.restaurantID] == nil {
		h.clients[client.restaurantID] = make(map[*Client]bool)
	}
	h.clients[client.restaurantID][client] = true

	h.logger.Info("socket connected",
		zap.Int64("identity_id", client.identityID),
		zap.Int64("restaurant_id", client.restaurantID),
		zap.Int("total", h.totalClients()),
	)

	client.send <- mustJSON(NewEvent(EventConnected, client.restaurantID, map[string]interface{}{
		"identity_id": client.identityID,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.restaurantID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.close()

			if len(clients) == 0 {
				delete(h.clients, client.restaurantID)
			}

			h.logger.Info("socket disconnected",
				zap.Int64("identity_id", client.identityID),
				zap.Int64("restaurant_id", client.restaurantID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) deliver(event *Event) {
	data, err := event.ToJSON()
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[event.RestaurantID] {
		select {
		case client.send <- data:
		default:
			// Slow consumer, drop the socket.
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// WatcherCount reports how many sockets are attached to a restaurant.
func (h *Hub) WatcherCount(restaurantID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[restaurantID])
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}

func mustJSON(e *Event) []byte {
	data, _ := e.ToJSON()
	return data
}
