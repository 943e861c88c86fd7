package models

import "time"

// InvitationStatus represents the lifecycle state of an invitation.
type InvitationStatus string

const (
	// InvitationStatusPending indicates an invitation awaiting a response.
	InvitationStatusPending InvitationStatus = "pending"
	// InvitationStatusAccepted indicates an accepted invitation.
	InvitationStatusAccepted InvitationStatus = "accepted"
	// InvitationStatusRejected indicates a rejected invitation.
	InvitationStatusRejected InvitationStatus = "rejected"
	// InvitationStatusExpired indicates a game invitation that outlived its expiry.
	InvitationStatusExpired InvitationStatus = "expired"
)

// FriendInvitation lets one user propose friendship to another. Rows are
// never deleted on transition; history is retained. At most one active
// (pending or accepted) invitation may exist per user pair at a time.
type FriendInvitation struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	InviterID uint             `gorm:"not null;index:idx_friend_inv_pair" json:"inviter_id"`
	InviteeID uint             `gorm:"not null;index:idx_friend_inv_pair" json:"invitee_id"`
	Status    InvitationStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	MessageID uint             `gorm:"not null" json:"message_id"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (FriendInvitation) TableName() string {
	return "friend_invitations"
}

// IsActive reports whether the invitation still binds the pair: pending and
// accepted invitations both forbid a new one between the same two users.
func (f *FriendInvitation) IsActive() bool {
	return f.Status == InvitationStatusPending || f.Status == InvitationStatusAccepted
}

// GameType identifies the kind of match an invitation proposes.
type GameType string

const (
	// GameTypePong is the flagship match type; it requires a dedicated room.
	GameTypePong GameType = "pong"
)

// NeedsRoom reports whether accepting this game type requires a provisioned
// match room from the external room service.
func (t GameType) NeedsRoom() bool {
	return t == GameTypePong
}

// GameInvitation lets one user challenge another to a match. Short-lived:
// a stale challenge has no lasting value, so pending invitations flip to
// expired by a lazy sweep evaluated before every list read.
type GameInvitation struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	FromID    uint             `gorm:"not null;index:idx_game_inv_pair" json:"from_id"`
	ToID      uint             `gorm:"not null;index:idx_game_inv_pair" json:"to_id"`
	GameType  GameType         `gorm:"type:varchar(32);not null" json:"game_type"`
	Status    InvitationStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	RoomID    *string          `gorm:"type:varchar(64)" json:"room_id,omitempty"`
	ExpiresAt time.Time        `gorm:"index" json:"expires_at"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (GameInvitation) TableName() string {
	return "game_invitations"
}
