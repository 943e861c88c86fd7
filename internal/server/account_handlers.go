package server

import (
	"github.com/gofiber/fiber/v2"

	"rallypoint/internal/models"
)

type syncUserRequest struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// SyncUser mirrors an identity-service user row locally. Callers may only
// sync their own identity.
func (s *Server) SyncUser(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req syncUserRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.ID != userID {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewUnauthorizedError("Cannot sync another user"))
	}

	if err := s.accountService.SyncUser(c.Context(), &models.User{
		ID:       req.ID,
		Username: req.Username,
	}); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
	})
}

// DeleteMyAccount purges the caller's chat and invitation footprint and fans
// out a deletion notice to connected users.
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	userID := currentUserID(c)

	if err := s.accountService.PurgeUser(c.Context(), userID); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
	})
}
