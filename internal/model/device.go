package model

import "time"

// Device is a Telegram chat acting as one client of the app.
type Device struct {
	ID           uint  `gorm:"primaryKey"`
	ChatID       int64 `gorm:"uniqueIndex"`
	FirstName    string
	Username     string
	SessionToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
