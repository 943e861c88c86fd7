package models

import (
	"time"

	"gorm.io/gorm"
)

// MessageKind tags a message row. Plain text aside, kinds exist so a single
// conversation message can act as the visible carrier for an invitation.
type MessageKind string

const (
	MessageKindText                 MessageKind = "text"
	MessageKindFriendInvite         MessageKind = "friend_invite"
	MessageKindFriendInviteAccepted MessageKind = "friend_invite_accepted"
	MessageKindFriendInviteRejected MessageKind = "friend_invite_rejected"
	MessageKindGameInvite           MessageKind = "game_invite"
)

// Conversation pairs exactly two users. The pair is stored in creation order
// but is semantically unordered: lookups must match either orientation and
// at most one conversation may exist per unordered pair.
type Conversation struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserAID   uint           `gorm:"not null;index:idx_conversation_pair" json:"user_a_id"`
	UserBID   uint           `gorm:"not null;index:idx_conversation_pair" json:"user_b_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Messages  []Message      `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// PeerOf returns the other participant's id, or 0 when the user is not a
// participant at all.
func (c *Conversation) PeerOf(userID uint) uint {
	switch userID {
	case c.UserAID:
		return c.UserBID
	case c.UserBID:
		return c.UserAID
	}
	return 0
}

// Message belongs to exactly one conversation. Messages are append-only; the
// one sanctioned mutation is rewriting Kind in place when the invitation the
// message carries changes status (see ChatRepository.UpdateMessageKind).
type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConversationID uint           `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint           `gorm:"not null;index" json:"sender_id"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	Kind           MessageKind    `gorm:"type:varchar(32);default:'text';index" json:"kind"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// ConversationSummary is the projection returned by conversation listings:
// the peer and the conversation's timestamps, never message bodies.
type ConversationSummary struct {
	ConversationID uint      `json:"conversation_id"`
	PeerID         uint      `json:"peer_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
