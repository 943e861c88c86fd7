package service

import (
	"context"

	"rallypoint/internal/models"
	"rallypoint/internal/repository"
)

// BlockService provides user blocking business logic.
type BlockService struct {
	blockRepo repository.BlockRepository
}

// NewBlockService returns a new BlockService.
func NewBlockService(blockRepo repository.BlockRepository) *BlockService {
	return &BlockService{blockRepo: blockRepo}
}

// BlockUser records a block from blocker to blocked. Blocking is forward
// looking only: existing conversations and invitations are left untouched.
func (s *BlockService) BlockUser(ctx context.Context, blockerID, blockedID uint) error {
	if blockerID == blockedID {
		return models.NewValidationError("Cannot block yourself")
	}
	if err := s.blockRepo.Create(ctx, blockerID, blockedID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// UnblockUser removes the blocker's own block. The reverse block, if any,
// stays in force.
func (s *BlockService) UnblockUser(ctx context.Context, blockerID, blockedID uint) error {
	if blockerID == blockedID {
		return models.NewValidationError("Cannot unblock yourself")
	}
	if err := s.blockRepo.Delete(ctx, blockerID, blockedID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IsBlocked reports whether interaction between the two users is refused in
// either direction.
func (s *BlockService) IsBlocked(ctx context.Context, userA, userB uint) (bool, error) {
	blocked, err := s.blockRepo.AreBlocked(ctx, userA, userB)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return blocked, nil
}
