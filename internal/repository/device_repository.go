package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"brainbounce/internal/model"
)

// DeviceRepository remembers which chats use the bot and their sessions.
type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// UpsertFromTelegram finds or creates a device by chat id and refreshes its profile info.
func (r *DeviceRepository) UpsertFromTelegram(ctx context.Context, chatID int64, firstName, username string) (*model.Device, error) {
	var device model.Device
	db := r.db.WithContext(ctx)
	err := db.Where("chat_id = ?", chatID).First(&device).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name": firstName,
			"username":   username,
		}
		if err := db.Model(&device).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update device: %w", err)
		}
		device.FirstName = firstName
		device.Username = username
		return &device, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		device = model.Device{
			ChatID:    chatID,
			FirstName: firstName,
			Username:  username,
		}
		if err := db.Create(&device).Error; err != nil {
			return nil, fmt.Errorf("create device: %w", err)
		}
		return &device, nil
	default:
		return nil, fmt.Errorf("find device: %w", err)
	}
}

// SetSessionToken stores the sign-in token of a chat; an empty token signs it out.
func (r *DeviceRepository) SetSessionToken(ctx context.Context, chatID int64, token string) error {
	res := r.db.WithContext(ctx).Model(&model.Device{}).Where("chat_id = ?", chatID).Update("session_token", token)
	if res.Error != nil {
		return fmt.Errorf("set session token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DeviceRepository) ListAll(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	if err := r.db.WithContext(ctx).Order("chat_id ASC").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *DeviceRepository) FindByChatID(ctx context.Context, chatID int64) (*model.Device, error) {
	var device model.Device
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	return &device, nil
}
