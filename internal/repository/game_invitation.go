package repository

import (
	"context"
	"time"

	"rallypoint/internal/models"

	"gorm.io/gorm"
)

// GameInvitationRepository defines the interface for game invitation data operations.
type GameInvitationRepository interface {
	Create(ctx context.Context, inv *models.GameInvitation) error
	GetByID(ctx context.Context, id uint) (*models.GameInvitation, error)
	GetPendingBetween(ctx context.Context, fromID, toID uint) (*models.GameInvitation, error)
	// UpdateStatusIfPending transitions the invitation only while it is still
	// pending, optionally recording the provisioned room. Returns false when
	// another transition won the race.
	UpdateStatusIfPending(ctx context.Context, id uint, status models.InvitationStatus, roomID *string) (bool, error)
	ListPendingForUser(ctx context.Context, userID uint) ([]*models.GameInvitation, error)
	ListSentByUser(ctx context.Context, userID uint) ([]*models.GameInvitation, error)
	ExpireOld(ctx context.Context, now time.Time) (int64, error)
	DeleteAllForUser(ctx context.Context, userID uint) error
}

type gameInvitationRepository struct {
	db *gorm.DB
}

// NewGameInvitationRepository creates a new game invitation repository
func NewGameInvitationRepository(db *gorm.DB) GameInvitationRepository {
	return &gameInvitationRepository{db: db}
}

func (r *gameInvitationRepository) Create(ctx context.Context, inv *models.GameInvitation) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *gameInvitationRepository) GetByID(ctx context.Context, id uint) (*models.GameInvitation, error) {
	var inv models.GameInvitation
	if err := r.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetPendingBetween finds a live pending challenge from one user to another.
// Direction matters: A challenging B does not stop B challenging A.
func (r *gameInvitationRepository) GetPendingBetween(ctx context.Context, fromID, toID uint) (*models.GameInvitation, error) {
	var inv models.GameInvitation
	err := r.db.WithContext(ctx).
		Where("from_id = ? AND to_id = ? AND status = ? AND expires_at > ?",
			fromID, toID, models.InvitationStatusPending, time.Now()).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *gameInvitationRepository) UpdateStatusIfPending(ctx context.Context, id uint, status models.InvitationStatus, roomID *string) (bool, error) {
	updates := map[string]interface{}{"status": status}
	if roomID != nil {
		updates["room_id"] = *roomID
	}
	res := r.db.WithContext(ctx).Model(&models.GameInvitation{}).
		Where("id = ? AND status = ?", id, models.InvitationStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gameInvitationRepository) ListPendingForUser(ctx context.Context, userID uint) ([]*models.GameInvitation, error) {
	var invs []*models.GameInvitation
	err := r.db.WithContext(ctx).
		Where("to_id = ? AND status = ?", userID, models.InvitationStatusPending).
		Order("created_at DESC").
		Find(&invs).Error
	return invs, err
}

func (r *gameInvitationRepository) ListSentByUser(ctx context.Context, userID uint) ([]*models.GameInvitation, error) {
	var invs []*models.GameInvitation
	err := r.db.WithContext(ctx).
		Where("from_id = ? AND status = ?", userID, models.InvitationStatusPending).
		Order("created_at DESC").
		Find(&invs).Error
	return invs, err
}

// ExpireOld flips pending invitations past their expiry to expired. Called
// lazily before list reads and relied on by accept/reject, which refuse any
// invitation that is no longer pending.
func (r *gameInvitationRepository) ExpireOld(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.GameInvitation{}).
		Where("status = ? AND expires_at <= ?", models.InvitationStatusPending, now).
		Update("status", models.InvitationStatusExpired)
	return res.RowsAffected, res.Error
}

func (r *gameInvitationRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("from_id = ? OR to_id = ?", userID, userID).
		Delete(&models.GameInvitation{}).Error
}
