package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"jammer/internal/middleware"
	"jammer/internal/models"
	"jammer/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// wsTicketTTL bounds how long an issued WebSocket ticket stays redeemable.
const wsTicketTTL = 30 * time.Second

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a single-use WebSocket ticket
// @Description Browsers cannot set an Authorization header on a WebSocket upgrade, so clients trade their JWT for a short-lived single-use ticket passed as ?ticket= on the upgrade request.
// @Tags websocket
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("websocket tickets require redis")))
	}

	ticket := uuid.New().String()
	key := fmt.Sprintf("ws_ticket:%s", ticket)
	if err := s.redis.Set(c.Context(), key, fmt.Sprint(userID), wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// WebsocketHandler returns a websocket handler that registers connections with the Hub.
// Authentication is handled by route middleware and userID is read from connection locals.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			if cerr := conn.Close(); cerr != nil {
				log.Printf("websocket close error: %v", cerr)
			}
			return
		}
		uid, ok := userIDVal.(uint)
		if !ok {
			if cerr := conn.Close(); cerr != nil {
				log.Printf("websocket close error: %v", cerr)
			}
			return
		}

		if s.hub == nil {
			_ = conn.Close()
			return
		}

		// Register connection with scaling guardrails
		client, err := s.hub.Register(uid, conn)
		if err != nil {
			log.Printf("WebSocket Notification: Failed to register user %d: %v", uid, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		defer s.hub.UnregisterClient(client)

		// Tell the client which of their connections are online right now
		s.sendConnectionsOnlineSnapshot(client, uid)

		// Start pumps
		go client.WritePump()
		client.ReadPump()
	})
}

// WebSocketChatHandler handles WebSocket connections for DM and jam room chat
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		ctx := context.Background()

		// Get userID from context locals (set by AuthRequired middleware)
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			log.Printf("WebSocket Chat: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			log.Printf("WebSocket Chat: Failed to get user %d: %v", userID, err)
			_ = conn.Close()
			return
		}
		username := user.Username

		if s.roomHub == nil {
			_ = conn.Close()
			return
		}

		client, err := s.roomHub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket Chat: Failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.roomHub.UnregisterClient(client)

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			var incomingMsg map[string]interface{}
			if err := json.Unmarshal(message, &incomingMsg); err != nil {
				log.Printf("WebSocket: Invalid message format from user %d", userID)
				return
			}

			msgType, ok := incomingMsg["type"].(string)
			if !ok {
				return
			}

			key, keyOK := parseRoomRef(incomingMsg)

			switch msgType {
			case "join":
				if !keyOK {
					return
				}
				// Verify membership before subscribing to the room's events
				if err := s.chatService.CanAccessRoom(ctx, userID, key.Type, key.ID); err != nil {
					return
				}
				s.roomHub.JoinRoom(userID, key)

				response := notifications.RoomEvent{
					Type:     "joined",
					RoomType: key.Type,
					RoomID:   key.ID,
				}
				if responseJSON, err := json.Marshal(response); err == nil {
					c.TrySend(responseJSON)
				}

			case "leave":
				if !keyOK {
					return
				}
				s.roomHub.LeaveRoom(userID, key)

			case "typing":
				// Typing indicator - limit to 10 per 10 seconds to prevent spam
				if !keyOK || s.notifier == nil {
					return
				}
				if err := s.chatService.CanAccessRoom(ctx, userID, key.Type, key.ID); err != nil {
					return
				}
				id := fmt.Sprintf("user:%d", userID)
				allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "typing", id, 10, 10*time.Second)
				if !allowed {
					return // Silently drop spammy typing indicators
				}

				isTyping, _ := incomingMsg["is_typing"].(bool)
				event := notifications.RoomEvent{
					Type:     "typing",
					RoomType: key.Type,
					RoomID:   key.ID,
					UserID:   userID,
					Username: username,
					Payload:  map[string]interface{}{"is_typing": isTyping},
				}
				eventJSON, merr := json.Marshal(event)
				if merr != nil {
					return
				}
				if perr := s.notifier.PublishRoom(ctx, key.Type, key.ID, string(eventJSON)); perr != nil {
					log.Printf("publish typing indicator error: %v", perr)
				}

			case "message":
				// Send a message (alternative to the HTTP endpoint)
				if !keyOK {
					return
				}
				content, _ := incomingMsg["content"].(string)
				if content == "" {
					return
				}

				// Rate limit messages - same as HTTP (15 per minute)
				id := fmt.Sprintf("user:%d", userID)
				allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "send_message", id, 15, time.Minute)
				if !allowed {
					response := notifications.RoomEvent{
						Type: "error",
						Payload: map[string]string{
							"message": "Rate limit exceeded. Please wait a moment.",
						},
					}
					if respJSON, err := json.Marshal(response); err == nil {
						c.TrySend(respJSON)
					}
					return
				}

				stored, serr := s.chatService.SendMessage(ctx, userID, key.Type, key.ID, content)
				if serr != nil {
					response := notifications.RoomEvent{
						Type:    "error",
						Payload: map[string]string{"message": serr.Error()},
					}
					if respJSON, err := json.Marshal(response); err == nil {
						c.TrySend(respJSON)
					}
					return
				}

				s.publishRoomMessage(ctx, stored)

			case "read":
				// Move the caller's DM watermark
				if dmIDFloat, ok := incomingMsg["dm_id"].(float64); ok {
					if rerr := s.chatService.MarkRead(ctx, userID, uint(dmIDFloat)); rerr != nil {
						log.Printf("mark read error: %v", rerr)
					}
				}
			}
		}

		// Send welcome message
		welcome := notifications.RoomEvent{
			Type:    "connected",
			UserID:  userID,
			Payload: map[string]interface{}{"username": username},
		}
		if welcomeJSON, err := json.Marshal(welcome); err == nil {
			client.TrySend(welcomeJSON)
		}

		// Start write pump in a goroutine
		go client.WritePump()

		// Read pump runs in the main handler goroutine (blocking)
		client.ReadPump()
	})
}

// parseRoomRef extracts the room reference carried by a chat frame.
func parseRoomRef(msg map[string]interface{}) (notifications.RoomKey, bool) {
	roomIDFloat, ok := msg["room_id"].(float64)
	if !ok || roomIDFloat <= 0 {
		return notifications.RoomKey{}, false
	}
	roomTypeStr, _ := msg["room_type"].(string)
	roomType := models.RoomType(roomTypeStr)
	if !models.ValidRoomType(roomType) {
		return notifications.RoomKey{}, false
	}
	return notifications.RoomKey{Type: roomType, ID: uint(roomIDFloat)}, true
}

// notifyConnectionsPresence pushes a presence change to everyone connected to
// the user. Invoked by the hub's presence tracker on first connect and on the
// last disconnect surviving the reconnect grace period.
func (s *Server) notifyConnectionsPresence(userID uint, status string) {
	if s.connRepo == nil {
		return
	}
	connections, err := s.connRepo.GetConnectedUsers(context.Background(), userID)
	if err != nil {
		log.Printf("failed to load connections for presence event: %v", err)
		return
	}
	user, err := s.userRepo.GetByID(context.Background(), userID)
	if err != nil {
		log.Printf("failed to load user for presence event: %v", err)
		return
	}
	for _, other := range connections {
		s.publishUserEvent(other.ID, EventConnectionPresenceChanged, map[string]interface{}{
			"user":       userSummaryPtr(user),
			"status":     status,
			"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// sendConnectionsOnlineSnapshot tells a fresh notification client which of
// their connections are currently online.
func (s *Server) sendConnectionsOnlineSnapshot(client *notifications.Client, userID uint) {
	if s.connRepo == nil || s.hub == nil {
		return
	}
	connections, err := s.connRepo.GetConnectedUsers(context.Background(), userID)
	if err != nil {
		log.Printf("failed to load connections for online snapshot: %v", err)
		return
	}

	onlineIDs := make([]uint, 0)
	for _, other := range connections {
		if s.hub.IsOnline(other.ID) {
			onlineIDs = append(onlineIDs, other.ID)
		}
	}

	snapshot := map[string]interface{}{
		"type": "connections_online_snapshot",
		"payload": map[string]interface{}{
			"online_user_ids": onlineIDs,
		},
	}
	if snapshotJSON, err := json.Marshal(snapshot); err == nil {
		client.TrySend(snapshotJSON)
	}
}
