package repository

import (
	"context"
	"time"

	"rallypoint/internal/models"

	"gorm.io/gorm"
)

// FriendInvitationRepository defines the interface for friend invitation data operations.
type FriendInvitationRepository interface {
	Create(ctx context.Context, inv *models.FriendInvitation) error
	GetByID(ctx context.Context, id uint) (*models.FriendInvitation, error)
	GetActiveBetween(ctx context.Context, userA, userB uint) (*models.FriendInvitation, error)
	// UpdateStatusIfPending transitions the invitation only while it is still
	// pending. Returns false when another transition won the race.
	UpdateStatusIfPending(ctx context.Context, id uint, status models.InvitationStatus) (bool, error)
	ListPendingForUser(ctx context.Context, userID uint) ([]*models.FriendInvitation, error)
	ExpireOld(ctx context.Context, now time.Time) (int64, error)
	DeleteAllForUser(ctx context.Context, userID uint) error
}

type friendInvitationRepository struct {
	db *gorm.DB
}

// NewFriendInvitationRepository creates a new friend invitation repository
func NewFriendInvitationRepository(db *gorm.DB) FriendInvitationRepository {
	return &friendInvitationRepository{db: db}
}

func (r *friendInvitationRepository) Create(ctx context.Context, inv *models.FriendInvitation) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *friendInvitationRepository) GetByID(ctx context.Context, id uint) (*models.FriendInvitation, error) {
	var inv models.FriendInvitation
	if err := r.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetActiveBetween finds a pending or accepted invitation between the pair in
// either direction. Rejected and expired rows never match.
func (r *friendInvitationRepository) GetActiveBetween(ctx context.Context, userA, userB uint) (*models.FriendInvitation, error) {
	var inv models.FriendInvitation
	err := r.db.WithContext(ctx).
		Where("((inviter_id = ? AND invitee_id = ?) OR (inviter_id = ? AND invitee_id = ?)) AND status IN ?",
			userA, userB, userB, userA,
			[]models.InvitationStatus{models.InvitationStatusPending, models.InvitationStatusAccepted}).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *friendInvitationRepository) UpdateStatusIfPending(ctx context.Context, id uint, status models.InvitationStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.FriendInvitation{}).
		Where("id = ? AND status = ?", id, models.InvitationStatusPending).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *friendInvitationRepository) ListPendingForUser(ctx context.Context, userID uint) ([]*models.FriendInvitation, error) {
	var invs []*models.FriendInvitation
	err := r.db.WithContext(ctx).
		Where("invitee_id = ? AND status = ?", userID, models.InvitationStatusPending).
		Order("created_at DESC").
		Find(&invs).Error
	return invs, err
}

// ExpireOld flips pending invitations past their expiry to expired. Only runs
// when auto-expiry is enabled; by default friend invitation expiry is advisory.
func (r *friendInvitationRepository) ExpireOld(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.FriendInvitation{}).
		Where("status = ? AND expires_at <= ?", models.InvitationStatusPending, now).
		Update("status", models.InvitationStatusExpired)
	return res.RowsAffected, res.Error
}

func (r *friendInvitationRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("inviter_id = ? OR invitee_id = ?", userID, userID).
		Delete(&models.FriendInvitation{}).Error
}
