package model

import "time"

// UserDocument is the cloud copy of a user's AppState.
type UserDocument struct {
	UserID          UserID   `gorm:"primaryKey"`
	Data            AppState `gorm:"serializer:json"`
	LastUpdated     time.Time
	ClientTimestamp int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName keeps documents in the users collection.
func (UserDocument) TableName() string {
	return "users"
}
