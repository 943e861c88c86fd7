package server

import (
	"github.com/gofiber/fiber/v2"

	"rallypoint/internal/models"
)

// GetConversations returns the authenticated user's conversation list, most
// recently active first.
func (s *Server) GetConversations(c *fiber.Ctx) error {
	userID := currentUserID(c)

	conversations, err := s.chatService.GetConversations(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"conversations": conversations,
	})
}

// GetMessages returns a window of messages from a conversation in
// chronological order. Fetching a window marks the peer's messages read.
func (s *Server) GetMessages(c *fiber.Ctx) error {
	userID := currentUserID(c)

	conversationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	page := parsePagination(c, 50)

	messages, err := s.chatService.GetMessages(c.Context(), userID, conversationID, page.Limit, page.Offset)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"conversation_id": conversationID,
		"messages":        messages,
		"limit":           page.Limit,
		"offset":          page.Offset,
	})
}

type sendMessageRequest struct {
	RecipientID uint   `json:"recipient_id"`
	Content     string `json:"content"`
}

// SendMessage delivers a direct message over HTTP. Most clients send over the
// socket instead; this path exists for integrations without a socket.
func (s *Server) SendMessage(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.chatService.SendMessage(c.Context(), userID, req.RecipientID, req.Content, models.MessageKindText)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

// MarkConversationRead marks every unread message from the peer as read.
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	userID := currentUserID(c)

	conversationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.chatService.MarkRead(c.Context(), userID, conversationID); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
	})
}

// GetOnlineUsers returns the ids of users currently connected to this node.
func (s *Server) GetOnlineUsers(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user_ids": s.registry.ListOnline(),
	})
}
