package repository

import (
	"context"

	"rallypoint/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlockRepository defines the interface for user block data operations.
type BlockRepository interface {
	Create(ctx context.Context, blockerID, blockedID uint) error
	Delete(ctx context.Context, blockerID, blockedID uint) error
	AreBlocked(ctx context.Context, userA, userB uint) (bool, error)
	DeleteAllForUser(ctx context.Context, userID uint) error
}

type blockRepository struct {
	db *gorm.DB
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

// Create records the block; re-blocking an already blocked user is a no-op.
func (r *blockRepository) Create(ctx context.Context, blockerID, blockedID uint) error {
	block := models.UserBlock{BlockerID: blockerID, BlockedID: blockedID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&block).Error
}

func (r *blockRepository) Delete(ctx context.Context, blockerID, blockedID uint) error {
	return r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.UserBlock{}).Error
}

// AreBlocked reports whether either user has blocked the other.
func (r *blockRepository) AreBlocked(ctx context.Context, userA, userB uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)",
			userA, userB, userB, userA).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *blockRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("blocker_id = ? OR blocked_id = ?", userID, userID).
		Delete(&models.UserBlock{}).Error
}
