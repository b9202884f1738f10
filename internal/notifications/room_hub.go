package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"jammer/internal/models"
	"jammer/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// RoomKey identifies a chat room, either a DM or a jam.
type RoomKey struct {
	Type models.RoomType
	ID   uint
}

// RoomEvent is the JSON frame broadcast to everyone viewing a room.
type RoomEvent struct {
	Type     string          `json:"type"` // "message", "typing", "member_update"
	RoomType models.RoomType `json:"room_type"`
	RoomID   uint            `json:"room_id"`
	UserID   uint            `json:"user_id,omitempty"`
	Username string          `json:"username,omitempty"`
	Payload  interface{}     `json:"payload,omitempty"`
}

// RoomHub manages websocket connections for chat rooms. Unlike Hub, which is
// user-centric, RoomHub tracks which rooms each user is actively viewing and
// fans messages out room by room.
type RoomHub struct {
	mu sync.RWMutex

	// room -> set of userIDs viewing it
	rooms map[RoomKey]map[uint]struct{}

	// userID -> set of rooms they are viewing
	userRooms map[uint]map[RoomKey]struct{}

	// userID -> active Clients, multiple devices per user
	userConns map[uint]map[*Client]struct{}
}

// NewRoomHub creates a RoomHub.
func NewRoomHub() *RoomHub {
	return &RoomHub{
		rooms:     make(map[RoomKey]map[uint]struct{}),
		userRooms: make(map[uint]map[RoomKey]struct{}),
		userConns: make(map[uint]map[*Client]struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *RoomHub) Name() string { return "room hub" }

// Register adds a websocket connection for a user.
func (h *RoomHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[*Client]struct{})
	}
	if len(h.userConns[userID]) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	h.userConns[userID][client] = struct{}{}
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes a connection. When it was the user's last one,
// every room subscription for that user is dropped too.
func (h *RoomHub) UnregisterClient(client *Client) {
	h.mu.Lock()

	clients, ok := h.userConns[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[client]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, client)

	if len(clients) > 0 {
		h.mu.Unlock()
		observability.WebSocketConnectionsTotal.Dec()
		return
	}
	delete(h.userConns, client.UserID)

	for key := range h.userRooms[client.UserID] {
		if viewers, ok := h.rooms[key]; ok {
			delete(viewers, client.UserID)
			if len(viewers) == 0 {
				delete(h.rooms, key)
			}
		}
	}
	delete(h.userRooms, client.UserID)

	h.mu.Unlock()
	observability.WebSocketConnectionsTotal.Dec()
}

// JoinRoom subscribes a connected user to a room's events.
func (h *RoomHub) JoinRoom(userID uint, key RoomKey) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.userConns[userID]; !ok {
		log.Printf("RoomHub: user %d not connected, cannot join %s:%d", userID, key.Type, key.ID)
		return
	}

	if h.rooms[key] == nil {
		h.rooms[key] = make(map[uint]struct{})
	}
	h.rooms[key][userID] = struct{}{}

	if h.userRooms[userID] == nil {
		h.userRooms[userID] = make(map[RoomKey]struct{})
	}
	h.userRooms[userID][key] = struct{}{}
}

// LeaveRoom unsubscribes a user from a room.
func (h *RoomHub) LeaveRoom(userID uint, key RoomKey) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if viewers, ok := h.rooms[key]; ok {
		delete(viewers, userID)
		if len(viewers) == 0 {
			delete(h.rooms, key)
		}
	}
	if keys, ok := h.userRooms[userID]; ok {
		delete(keys, key)
	}
}

// BroadcastToRoom sends an event to every client of every user viewing the room.
func (h *RoomHub) BroadcastToRoom(key RoomKey, event RoomEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	viewers, ok := h.rooms[key]
	if !ok {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("RoomHub: failed to marshal event: %v", err)
		return
	}

	for userID := range viewers {
		for client := range h.userConns[userID] {
			client.TrySend(data)
		}
	}
}

// ActiveUsers lists userIDs currently viewing a room.
func (h *RoomHub) ActiveUsers(key RoomKey) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	viewers, ok := h.rooms[key]
	if !ok {
		return []uint{}
	}
	result := make([]uint, 0, len(viewers))
	for userID := range viewers {
		result = append(result, userID)
	}
	return result
}

// IsUserActive reports whether a user is currently viewing a room.
func (h *RoomHub) IsUserActive(userID uint, key RoomKey) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	keys, ok := h.userRooms[userID]
	if !ok {
		return false
	}
	_, active := keys[key]
	return active
}

// StartWiring subscribes the hub to the Notifier's room channels and fans
// incoming payloads out to the matching room.
func (h *RoomHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartRoomSubscriber(ctx, func(channel, payload string) {
		key, ok := parseRoomChannel(channel)
		if !ok {
			log.Printf("RoomHub: invalid room channel: %s", channel)
			return
		}

		var event RoomEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Printf("RoomHub: failed to parse event from %s: %v", channel, err)
			return
		}
		if event.Type == "" {
			event.Type = "message"
		}
		event.RoomType = key.Type
		event.RoomID = key.ID

		h.BroadcastToRoom(key, event)
	})
}

// Shutdown gracefully closes all websocket connections.
func (h *RoomHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.userConns {
		for client := range clients {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}

	h.rooms = make(map[RoomKey]map[uint]struct{})
	h.userRooms = make(map[uint]map[RoomKey]struct{})
	h.userConns = make(map[uint]map[*Client]struct{})

	return nil
}

// parseRoomChannel maps "room:dm:<id>" or "room:jam:<id>" back to a RoomKey.
func parseRoomChannel(channel string) (RoomKey, bool) {
	var id uint
	if _, err := fmt.Sscanf(channel, "room:dm:%d", &id); err == nil {
		return RoomKey{Type: models.RoomTypeDM, ID: id}, true
	}
	if _, err := fmt.Sscanf(channel, "room:jam:%d", &id); err == nil {
		return RoomKey{Type: models.RoomTypeJam, ID: id}, true
	}
	return RoomKey{}, false
}
