package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"brainbounce/internal/model"
)

// WriteMeta describes who writes a document and from where.
type WriteMeta struct {
	Caller          model.UserID
	Origin          string
	ClientTimestamp int64
}

// DocumentRepository stores one AppState document per user and enforces that
// only the owner, with sync enabled, can read or write it.
type DocumentRepository struct {
	db   *gorm.DB
	feed Feed
	now  func() time.Time
}

func NewDocumentRepository(db *gorm.DB, feed Feed) *DocumentRepository {
	if feed == nil {
		feed = NewMemoryFeed()
	}
	return &DocumentRepository{db: db, feed: feed, now: time.Now}
}

func (r *DocumentRepository) authorize(ctx context.Context, caller, userID model.UserID) error {
	if caller == "" {
		return ErrUnauthenticated
	}
	if caller != userID {
		return ErrPermissionDenied
	}

	var account model.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("check account: %w", err)
	case !account.SyncEnabled:
		return ErrPermissionDenied
	}
	return nil
}

// Get returns the user's document or ErrNotFound.
func (r *DocumentRepository) Get(ctx context.Context, caller, userID model.UserID) (*model.UserDocument, error) {
	if err := r.authorize(ctx, caller, userID); err != nil {
		return nil, err
	}

	var doc model.UserDocument
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// Set replaces the user's document with state and announces the change.
func (r *DocumentRepository) Set(ctx context.Context, userID model.UserID, state model.AppState, meta WriteMeta) (*model.UserDocument, error) {
	if err := r.authorize(ctx, meta.Caller, userID); err != nil {
		return nil, err
	}

	doc := model.UserDocument{
		UserID:          userID,
		Data:            state,
		LastUpdated:     r.now().UTC(),
		ClientTimestamp: meta.ClientTimestamp,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "last_updated", "client_timestamp", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return nil, fmt.Errorf("set document: %w", err)
	}

	change := Change{UserID: userID, Origin: meta.Origin, ClientTimestamp: meta.ClientTimestamp}
	if err := r.feed.Publish(ctx, change); err != nil {
		log.Printf("publish change for %s: %v", userID, err)
	}
	return &doc, nil
}

// Delete removes the user's document.
func (r *DocumentRepository) Delete(ctx context.Context, caller, userID model.UserID) error {
	if err := r.authorize(ctx, caller, userID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.UserDocument{}).Error; err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Watch subscribes fn to changes of the user's document.
func (r *DocumentRepository) Watch(userID model.UserID, fn func(Change)) func() {
	return r.feed.Subscribe(userID, fn)
}

// Ping checks that the database answers.
func (r *DocumentRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
