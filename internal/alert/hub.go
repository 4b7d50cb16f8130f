package alert

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"thunderbird/internal/weather"

	"github.com/redis/go-redis/v9"
)

// AllZones subscribes a client to warnings for every zone.
const AllZones = "*"

// Hub fans severe-weather warnings out to in-process subscribers and, when
// redis is configured, across instances via pub/sub, so one instance's
// 15-minute poll reaches every dispatcher.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	log     *slog.Logger
}

type Client struct {
	ZoneID string
	Recv   chan weather.Warning
}

func NewHub(redisClient *redis.Client, log *slog.Logger) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
		log:     log.With("component", "alert-hub"),
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(zoneID string) *Client {
	client := &Client{
		ZoneID: zoneID,
		Recv:   make(chan weather.Warning, 16),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[zoneID] == nil {
		h.clients[zoneID] = map[*Client]struct{}{}
	}
	h.clients[zoneID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if zoneClients, ok := h.clients[client.ZoneID]; ok {
		delete(zoneClients, client)
		if len(zoneClients) == 0 {
			delete(h.clients, client.ZoneID)
		}
	}
	close(client.Recv)
}

// Publish delivers a warning to local subscribers of the zone (and of
// AllZones), then mirrors it to redis for other instances.
func (h *Hub) Publish(zoneID string, w weather.Warning) {
	h.deliver(zoneID, w)

	if h.redis != nil {
		payload, err := json.Marshal(w)
		if err != nil {
			return
		}
		if err := h.redis.Publish(context.Background(), redisChannel(zoneID), payload).Err(); err != nil {
			h.log.Warn("redis publish failed", "zone", zoneID, "error", err)
		}
	}
}

func (h *Hub) deliver(zoneID string, w weather.Warning) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, set := range []map[*Client]struct{}{h.clients[zoneID], h.clients[AllZones]} {
		for client := range set {
			select {
			case client.Recv <- w:
			default:
			}
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "alerts:*:warn")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var w weather.Warning
		if err := json.Unmarshal([]byte(msg.Payload), &w); err != nil {
			continue
		}
		h.deliver(zoneIDFromChannel(msg.Channel), w)
	}
}

func redisChannel(zoneID string) string {
	return "alerts:" + zoneID + ":warn"
}

func zoneIDFromChannel(ch string) string {
	// alerts:{zone}:warn
	ch = strings.TrimPrefix(ch, "alerts:")
	return strings.TrimSuffix(ch, ":warn")
}
