package server

import (
	"github.com/gofiber/fiber/v2"

	"rallypoint/internal/models"
)

type createFriendInvitationRequest struct {
	InviteeID uint   `json:"invitee_id"`
	Content   string `json:"content"`
}

// CreateFriendInvitation opens a friend invitation and delivers its carrier
// message to the invitee.
func (s *Server) CreateFriendInvitation(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req createFriendInvitationRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	invitation, err := s.friendInviteService.Create(c.Context(), userID, req.InviteeID, req.Content)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(invitation)
}

// GetPendingFriendInvitations lists invitations waiting on the caller's answer.
func (s *Server) GetPendingFriendInvitations(c *fiber.Ctx) error {
	userID := currentUserID(c)

	invitations, err := s.friendInviteService.ListPending(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"invitations": invitations,
	})
}

// AcceptFriendInvitation accepts a pending invitation addressed to the caller.
// If the external friendship registration fails the acceptance still stands
// and the response says so.
func (s *Server) AcceptFriendInvitation(c *fiber.Ctx) error {
	userID := currentUserID(c)

	invitationID, err := s.parseID(c, "invitationId")
	if err != nil {
		return nil
	}

	result, svcErr := s.friendInviteService.Accept(c.Context(), userID, invitationID, bearerToken(c))
	if svcErr != nil {
		return respondWorkflow(c, svcErr, "")
	}

	message := "Friend invitation accepted"
	if !result.FriendshipPersisted {
		message = "Friend invitation accepted, friendship registration is delayed"
	}
	return respondWorkflow(c, nil, message)
}

// RejectFriendInvitation declines a pending invitation addressed to the caller.
func (s *Server) RejectFriendInvitation(c *fiber.Ctx) error {
	userID := currentUserID(c)

	invitationID, err := s.parseID(c, "invitationId")
	if err != nil {
		return nil
	}

	_, svcErr := s.friendInviteService.Reject(c.Context(), userID, invitationID)
	return respondWorkflow(c, svcErr, "Friend invitation rejected")
}

type createGameInvitationRequest struct {
	ToID     uint   `json:"to_id"`
	GameType string `json:"game_type"`
}

// CreateGameInvitation challenges another user to a match.
func (s *Server) CreateGameInvitation(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req createGameInvitationRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	invitation, err := s.gameInviteService.Create(c.Context(), userID, req.ToID, models.GameType(req.GameType), bearerToken(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(invitation)
}

// GetPendingGameInvitations lists challenges waiting on the caller's answer.
func (s *Server) GetPendingGameInvitations(c *fiber.Ctx) error {
	userID := currentUserID(c)

	invitations, err := s.gameInviteService.ListPending(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"invitations": invitations,
	})
}

// GetSentGameInvitations lists challenges the caller has issued.
func (s *Server) GetSentGameInvitations(c *fiber.Ctx) error {
	userID := currentUserID(c)

	invitations, err := s.gameInviteService.ListSent(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"invitations": invitations,
	})
}

// GetGameInvitation returns a single challenge the caller is a party to.
func (s *Server) GetGameInvitation(c *fiber.Ctx) error {
	userID := currentUserID(c)

	invitationID, err := s.parseID(c, "invitationId")
	if err != nil {
		return nil
	}

	invitation, svcErr := s.gameInviteService.Get(c.Context(), userID, invitationID)
	if svcErr != nil {
		return handleServiceError(c, svcErr)
	}

	return c.Status(fiber.StatusOK).JSON(invitation)
}

// AcceptGameInvitation accepts a pending challenge, provisioning a match room
// first when the game type needs one. The room id travels in the response so
// the accepter can join immediately.
func (s *Server) AcceptGameInvitation(c *fiber.Ctx) error {
	userID := currentUserID(c)

	invitationID, err := s.parseID(c, "invitationId")
	if err != nil {
		return nil
	}

	invitation, svcErr := s.gameInviteService.Accept(c.Context(), userID, invitationID, bearerToken(c))
	if svcErr != nil {
		return respondWorkflow(c, svcErr, "")
	}

	roomID := ""
	if invitation.RoomID != nil {
		roomID = *invitation.RoomID
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Game invitation accepted",
		"room_id": roomID,
	})
}

// RejectGameInvitation declines a pending challenge addressed to the caller.
func (s *Server) RejectGameInvitation(c *fiber.Ctx) error {
	userID := currentUserID(c)

	invitationID, err := s.parseID(c, "invitationId")
	if err != nil {
		return nil
	}

	_, svcErr := s.gameInviteService.Reject(c.Context(), userID, invitationID)
	return respondWorkflow(c, svcErr, "Game invitation rejected")
}
