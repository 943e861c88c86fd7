package models

import "time"

// UserBlock is an ordered (blocker, blocked) pair. The check is symmetric at
// every call site: either direction refuses new interaction. Blocking never
// retroactively hides prior messages or invitations.
type UserBlock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_block_pair" json:"blocker_id"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_block_pair" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (UserBlock) TableName() string {
	return "user_blocks"
}
