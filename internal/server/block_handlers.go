package server

import (
	"github.com/gofiber/fiber/v2"
)

// BlockUser blocks the target user. Blocking is idempotent.
func (s *Server) BlockUser(c *fiber.Ctx) error {
	userID := currentUserID(c)

	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.blockService.BlockUser(c.Context(), userID, targetID); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
	})
}

// UnblockUser removes the caller's block on the target user.
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	userID := currentUserID(c)

	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.blockService.UnblockUser(c.Context(), userID, targetID); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
	})
}
