package model

import "time"

// Account stores profile data for an authenticated user.
type Account struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      UserID `gorm:"uniqueIndex"`
	Email       string
	DisplayName string
	SyncEnabled bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
