package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"brainbounce/internal/model"
)

// AccountRepository manages user profiles and their cloud-sync permission.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Upsert creates the account on first sign-in and refreshes email afterwards.
// New accounts start with cloud sync enabled.
func (r *AccountRepository) Upsert(ctx context.Context, userID model.UserID, email, displayName string) (*model.Account, error) {
	var account model.Account
	db := r.db.WithContext(ctx)
	err := db.Where("user_id = ?", userID).First(&account).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{"email": email}
		if displayName != "" && account.DisplayName == "" {
			updates["display_name"] = displayName
		}
		if err := db.Model(&account).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update account: %w", err)
		}
		account.Email = email
		if name, ok := updates["display_name"].(string); ok {
			account.DisplayName = name
		}
		return &account, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		account = model.Account{
			UserID:      userID,
			Email:       email,
			DisplayName: displayName,
			SyncEnabled: true,
		}
		if err := db.Create(&account).Error; err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
		return &account, nil
	default:
		return nil, fmt.Errorf("find account: %w", err)
	}
}

func (r *AccountRepository) FindByUserID(ctx context.Context, userID model.UserID) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &account, nil
}

func (r *AccountRepository) UpdateProfile(ctx context.Context, userID model.UserID, displayName string) (*model.Account, error) {
	res := r.db.WithContext(ctx).Model(&model.Account{}).Where("user_id = ?", userID).Update("display_name", displayName)
	if res.Error != nil {
		return nil, fmt.Errorf("update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByUserID(ctx, userID)
}

// SetSyncEnabled grants or revokes access to the user's cloud document.
func (r *AccountRepository) SetSyncEnabled(ctx context.Context, userID model.UserID, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&model.Account{}).Where("user_id = ?", userID).Update("sync_enabled", enabled)
	if res.Error != nil {
		return fmt.Errorf("set sync enabled: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
