package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"rallypoint/internal/middleware"
	"rallypoint/internal/models"
	"rallypoint/internal/notifications"
	"rallypoint/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler handles the realtime connection. One connection per user;
// a newer connection replaces the older one.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		// Get userID from context locals (set by WebSocketAuthRequired middleware)
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			log.Printf("WebSocket: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"unauthorized"}}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		client := s.registry.Register(userID, conn)

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			s.registry.Touch(userID)
			s.handleIncomingFrame(ctx, c, userID, message)
		}

		// Start write pump in a goroutine
		go client.WritePump()

		// Read pump runs in the main handler goroutine (blocking)
		client.ReadPump()
	})
}

// handleIncomingFrame dispatches one client frame. Malformed frames are
// dropped; domain failures go back as error frames so the client can surface
// them.
func (s *Server) handleIncomingFrame(ctx context.Context, c *notifications.Client, userID uint, message []byte) {
	var frame map[string]interface{}
	if err := json.Unmarshal(message, &frame); err != nil {
		log.Printf("WebSocket: Invalid frame from user %d", userID)
		return
	}

	frameType, ok := frame["type"].(string)
	if !ok {
		return
	}

	observability.RecordWebSocketEvent(frameType)

	switch frameType {
	case "identify":
		// The socket is already bound to a user at upgrade. Answer with a
		// fresh presence snapshot so reconnecting clients can resync.
		if snapshot, err := notifications.Encode(notifications.ConnectedUsersList{UserIDs: s.registry.ListOnline()}); err == nil {
			c.TrySend(snapshot)
		}

	case "message":
		recipientID := uintField(frame, "recipient_id")
		content, _ := frame["content"].(string)
		if recipientID == 0 || content == "" {
			return
		}

		// Same limit as the HTTP endpoint (15 per minute)
		id := fmt.Sprintf("user:%d", userID)
		allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "send_chat", id, 15, time.Minute)
		if !allowed {
			s.sendErrorFrame(c, "Rate limit exceeded. Please wait a moment.")
			return
		}

		if _, err := s.chatService.SendMessage(ctx, userID, recipientID, content, models.MessageKindText); err != nil {
			s.sendErrorFrame(c, serviceErrorMessage(err))
		}

	case "typing", "stop_typing":
		conversationID := uintField(frame, "conversation_id")
		if conversationID == 0 {
			return
		}

		// Typing indicators are spammy; drop silently past 10 per 10 seconds.
		id := fmt.Sprintf("user:%d", userID)
		allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "typing", id, 10, 10*time.Second)
		if !allowed {
			return
		}

		var err error
		if frameType == "typing" {
			err = s.chatService.NotifyTyping(ctx, userID, conversationID)
		} else {
			err = s.chatService.NotifyStoppedTyping(ctx, userID, conversationID)
		}
		if err != nil {
			log.Printf("WebSocket: typing relay error for user %d: %v", userID, err)
		}

	case "message_delivered":
		messageID := uintField(frame, "message_id")
		if messageID == 0 {
			return
		}
		if err := s.chatService.MarkDelivered(ctx, userID, messageID); err != nil {
			log.Printf("WebSocket: delivery receipt error for user %d: %v", userID, err)
		}

	case "message_read":
		conversationID := uintField(frame, "conversation_id")
		if conversationID == 0 {
			return
		}
		if err := s.chatService.MarkRead(ctx, userID, conversationID); err != nil {
			log.Printf("WebSocket: read receipt error for user %d: %v", userID, err)
		}
	}
}

// sendErrorFrame pushes an error frame to the client, best-effort.
func (s *Server) sendErrorFrame(c *notifications.Client, message string) {
	frame, err := json.Marshal(map[string]interface{}{
		"type": "error",
		"payload": map[string]string{
			"message": message,
		},
	})
	if err != nil {
		return
	}
	c.TrySend(frame)
}

// serviceErrorMessage extracts a client-safe message from a service failure.
func serviceErrorMessage(err error) string {
	if appErr, ok := err.(*models.AppError); ok {
		return appErr.Message
	}
	return "Something went wrong"
}

// uintField reads a numeric JSON field as a uint, returning 0 when absent or
// not a number.
func uintField(frame map[string]interface{}, key string) uint {
	if v, ok := frame[key].(float64); ok && v > 0 {
		return uint(v)
	}
	return 0
}
