package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"cc-intelligence-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "research_session_updates"

// Hub fans live session snapshots out to connected presentation clients.
// When Redis is available, snapshots are also relayed across instances.
type Hub struct {
	// Registered clients by connection id
	clients map[uuid.UUID]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fan-out
	rdb *redis.Client

	// Identifies this instance on the cluster channel so it can skip its
	// own relayed messages.
	instanceID uuid.UUID

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]*Client),
		rdb:        rdb,
		instanceID: uuid.New(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"client_id": client.ID})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"client_id": client.ID})
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastSnapshot pushes a serialized session snapshot to every local
// client and relays it to other instances through Redis.
func (h *Hub) BroadcastSnapshot(snapshot []byte) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "session_update",
		"data": json.RawMessage(snapshot),
	})

	h.sendLocal(data)

	if h.rdb != nil {
		envelope, _ := json.Marshal(map[string]interface{}{
			"origin":  h.instanceID.String(),
			"message": json.RawMessage(data),
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, envelope).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to relay snapshot to Redis", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) sendLocal(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"client_id": client.ID})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// subscribeToRedis mirrors snapshots published by other instances to the
// clients connected here.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var envelope struct {
			Origin  string          `json:"origin"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}
		if envelope.Origin == h.instanceID.String() {
			continue
		}
		h.sendLocal(envelope.Message)
	}
}
