// Package models contains data structures for the application's domain models.
package models

import "time"

// User is a reference entity owned by the external identity service. The
// core never creates or deletes users; rows are mirrored here so pushes and
// presence payloads can carry usernames.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
